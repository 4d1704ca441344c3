package request

import "github.com/nvidia-uda/uda/wire"

// Class is the broad dispatch category a Descriptor resolves to, used by
// Parse to decide which RequestBlock fields a matched format fills in.
type Class int

const (
	ClassUnknown Class = iota
	ClassFile
	ClassServer
	ClassFunction
	ClassDevice
	ClassMDS
	ClassOther
)

// Descriptor is what a FormatLookup returns for a recognised prefix or
// file extension: enough to route a request without request importing
// the plugin package that owns the match.
type Descriptor struct {
	Format         string
	Extension      string
	Class          Class
	PluginID       wire.PluginID
	DeviceProtocol string
	DeviceHost     string
	DevicePort     int
}

// FormatLookup is implemented by plugin.Registry. Keeping the interface
// here, rather than in plugin, lets request depend on nothing above it:
// plugin imports request and satisfies this contract, never the reverse.
type FormatLookup interface {
	// LookupPrefix resolves a `FORMAT::` or `FORMAT+::` style prefix
	// (case-insensitive, trailing '+' already stripped by the caller).
	LookupPrefix(prefix string) (Descriptor, bool)
	// LookupExtension resolves a bare file extension (without the dot)
	// against registered plugins, for source strings that name a path
	// with no explicit protocol prefix.
	LookupExtension(ext string) (Descriptor, bool)
	// LookupDevice resolves a registered device name to its
	// protocol/host/port triple. Parse strips the default device prefix
	// before consulting it, so it only sees foreign devices.
	LookupDevice(name string) (Descriptor, bool)
}
