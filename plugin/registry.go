package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/wire"
)

// Registry is the case-insensitive, lock-protected collection of
// registered plugins, grounded on xact/xreg's registry shape: a struct
// holding lookup maps behind a single mutex, built once at startup and
// read far more often than written.
type Registry struct {
	mtx      sync.RWMutex
	byPrefix map[string]entry
	byExt    map[string]entry
	byDevice map[string]entry
}

// NewRegistry returns an empty Registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		byPrefix: make(map[string]entry, 16),
		byExt:    make(map[string]entry, 16),
		byDevice: make(map[string]entry, 4),
	}
}

// Register binds a backend under the given prefix (e.g. "NETCDF",
// "MDS"), file extensions it claims (without the leading dot), and,
// for device-class backends, the device name it answers to. Prefix is
// mandatory; extensions and deviceNames may be empty.
func (r *Registry) Register(prefix string, backend Backend, extensions []string, deviceName string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	key := strings.ToUpper(prefix)
	if _, dup := r.byPrefix[key]; dup {
		return fmt.Errorf("plugin: prefix %q already registered", prefix)
	}
	e := entry{
		desc: request.Descriptor{
			Format:   backend.Format(),
			Class:    backend.Class(),
			PluginID: classToPluginID(backend.Class()),
		},
		backend: backend,
	}
	r.byPrefix[key] = e
	for _, ext := range extensions {
		r.byExt[strings.ToLower(ext)] = e
	}
	if deviceName != "" {
		r.byDevice[strings.ToUpper(deviceName)] = e
	}
	return nil
}

// RegisterDevice binds a configured device name to the server protocol,
// host and port request.Parse rewrites an indirected source into
// (spec.md §4.3 Scenario B "DEVICE class"; makeRequestBlock.cpp:327-368's
// deviceProtocol/deviceHost/devicePort triple). Unlike Register, this
// entry carries no Backend of its own — DEVICE class entries exist purely
// to be rewritten and recursed on, never dispatched to directly.
func (r *Registry) RegisterDevice(name, protocol, host string, port int) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	key := strings.ToUpper(name)
	if _, dup := r.byDevice[key]; dup {
		return fmt.Errorf("plugin: device %q already registered", name)
	}
	r.byDevice[key] = entry{desc: request.Descriptor{
		Class:          request.ClassDevice,
		DeviceProtocol: protocol,
		DeviceHost:     host,
		DevicePort:     port,
	}}
	return nil
}

func classToPluginID(c Class) wire.PluginID {
	switch c {
	case ClassFile:
		return wire.PluginFile
	case ClassServer:
		return wire.PluginServerSideFunction
	case ClassFunction:
		return wire.PluginFunction
	case ClassMDS:
		return wire.PluginMDS
	default:
		return wire.PluginGenericCatalog
	}
}

// LookupPrefix implements request.FormatLookup.
func (r *Registry) LookupPrefix(prefix string) (request.Descriptor, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byPrefix[strings.ToUpper(prefix)]
	return e.desc, ok
}

// LookupExtension implements request.FormatLookup.
func (r *Registry) LookupExtension(ext string) (request.Descriptor, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byExt[strings.ToLower(ext)]
	return e.desc, ok
}

// LookupDevice implements request.FormatLookup.
func (r *Registry) LookupDevice(name string) (request.Descriptor, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byDevice[strings.ToUpper(name)]
	return e.desc, ok
}

// Backend returns the backend registered under prefix (matched
// case-insensitively); Dispatch passes the request's Format.
func (r *Registry) Backend(prefix string) (Backend, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.byPrefix[strings.ToUpper(prefix)]
	if !ok {
		return nil, false
	}
	return e.backend, true
}

// Dispatch resolves req.Format against the registry and invokes the
// matching backend. Backends are required to be re-entrant: Dispatch
// never serializes calls across connections, matching the
// one-goroutine-per-stream discipline each connection runs under.
func (r *Registry) Dispatch(ctx context.Context, req *wire.RequestBlock, io *PluginIO) error {
	backend, ok := r.Backend(req.Format)
	if !ok {
		return fmt.Errorf("plugin: no backend registered for format %q", req.Format)
	}
	return backend.Invoke(ctx, req, io)
}
