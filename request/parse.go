package request

import (
	"strconv"
	"strings"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/wire"
)

// maxReqDepth bounds recursive device-indirection chasing (spec.md §4.3
// "Device indirection").
const maxReqDepth = 10

// maxArchiveLen bounds RequestBlock.Archive (spec.md §4.3 "Errors").
const maxArchiveLen = 64

// Parse turns a (signal, source) pair into a wire.RequestBlock, applying
// environment defaults and consulting lookup for plugin/device resolution.
// It is the sole entry point into C3.
func Parse(signal, source string, environment *env.Environment, lookup FormatLookup) (*wire.RequestBlock, error) {
	return parseDepth(signal, source, environment, lookup, 0)
}

func parseDepth(signal, source string, environment *env.Environment, lookup FormatLookup, depth int) (*wire.RequestBlock, error) {
	if depth > maxReqDepth {
		return nil, fails(RequestDepthExceeded, "exceeded %d device indirections", maxReqDepth)
	}

	signal = strings.TrimSpace(signal)
	source = strings.TrimSpace(source)
	if signal == "" && source == "" {
		return nil, fails(EmptyRequest, "both signal and source are empty")
	}

	rb := &wire.RequestBlock{
		Archive:  environment.DefaultArchive,
		PluginID: wire.PluginGenericCatalog,
		APIDelim: environment.APIDelim,
	}
	if rb.APIDelim == "" {
		rb.APIDelim = "::"
	}

	// Scenario: proxy configured short-circuits all local resolution, the
	// signal/source pair is forwarded to the proxy host unchanged.
	if environment.HasProxy() {
		rb.PluginID = wire.PluginForwardToPeer
		rb.Server = environment.Proxy
		rb.Signal = signal
		rb.Source = source
		return rb, nil
	}

	// Strip a leading default-device prefix ("device::") so callers don't
	// have to repeat it on every request.
	defaultDevicePrefix := environment.DefaultDevice + rb.APIDelim
	source = strings.TrimPrefix(source, defaultDevicePrefix)

	signal, err := extractArchive(rb, signal, environment)
	if err != nil {
		return nil, err
	}

	signal, subsetExpr, hasSubset := stripSubset(signal)
	if hasSubset {
		subset, err := parseSubset(subsetExpr)
		if err != nil {
			return nil, err
		}
		rb.Subset = subset
	}

	signal, nvExpr, hasNV := splitSignalNameValue(signal)
	if hasNV {
		nv, err := parseNameValueList(nvExpr)
		if err != nil {
			return nil, err
		}
		rb.NameValueList = nv
	}
	rb.Signal = signal

	if !strings.Contains(source, rb.APIDelim) {
		return parseNoDelimiter(rb, source, environment, lookup)
	}

	return parseDelimited(rb, source, environment, lookup, depth)
}

// splitSignalNameValue detaches a "core, name=value, name2=value2" style
// suffix from signal, returning the bare signal core unchanged when no
// comma-introduced name/value tail is present.
func splitSignalNameValue(signal string) (core, expr string, ok bool) {
	parts := splitTopLevel(signal, ',')
	if len(parts) < 2 {
		return signal, "", false
	}
	for _, p := range parts[1:] {
		if !strings.ContainsRune(p, '=') && !strings.HasPrefix(strings.TrimSpace(p), "/") {
			return signal, "", false
		}
	}
	return strings.TrimSpace(parts[0]), strings.Join(parts[1:], ","), true
}

// parseNoDelimiter handles Scenario A of spec.md §8: source contains no
// api_delim, so it's either a numeric exp_number (GENERIC_CATALOG) or a
// bare file path resolved by extension.
func parseNoDelimiter(rb *wire.RequestBlock, source string, environment *env.Environment, lookup FormatLookup) (*wire.RequestBlock, error) {
	if strings.ContainsAny(source, "()") {
		return nil, fails(PathWithParens, "bare path %q may not contain parentheses", source)
	}
	if n, err := strconv.ParseInt(source, 10, 64); err == nil {
		rb.ExpNumber = n
		rb.PluginID = wire.PluginGenericCatalog
		if len(rb.Archive) > maxArchiveLen {
			return nil, fails(ArchiveNameTooLong, "archive name %q exceeds %d bytes", rb.Archive, maxArchiveLen)
		}
		return rb, nil
	}
	rb.PluginID = wire.PluginFile
	rb.Path = source
	if i := strings.LastIndexByte(source, '/'); i >= 0 {
		rb.File = source[i+1:]
	} else {
		rb.File = source
	}
	ext := ""
	if i := strings.LastIndexByte(rb.File, '.'); i >= 0 {
		ext = strings.ToLower(rb.File[i+1:])
	}
	if lookup != nil {
		if desc, ok := lookup.LookupExtension(ext); ok {
			rb.Format = desc.Format
			if desc.PluginID != wire.PluginUnknown {
				rb.PluginID = desc.PluginID
			}
			return rb, nil
		}
	}
	if ext != "" {
		rb.Format = ext
	} else {
		rb.Format = environment.DefaultFormat
	}
	return rb, nil
}

// parseDelimited handles Scenarios B/C/device-indirection: source begins
// with a recognised PREFIX + api_delim.
func parseDelimited(rb *wire.RequestBlock, source string, environment *env.Environment, lookup FormatLookup, depth int) (*wire.RequestBlock, error) {
	i := strings.Index(source, rb.APIDelim)
	prefix := source[:i]
	tail := source[i+len(rb.APIDelim):]

	plusPrefix := strings.TrimSuffix(prefix, "+")
	isServerClass := strings.HasSuffix(prefix, "+")

	if lookup != nil {
		if desc, ok := lookup.LookupPrefix(strings.ToUpper(plusPrefix)); ok {
			return applyDescriptor(rb, desc, tail, isServerClass, environment)
		}
		if desc, ok := lookup.LookupDevice(plusPrefix); ok {
			// By this point parseDepth has already stripped a leading
			// default-device prefix (the DEVICE::LIBRARY::function()/
			// DEVICE::pulse forms: makeRequestBlock.cpp:157-172 gates that
			// strip specifically on environment->api_device). Anything
			// still matching LookupDevice here is therefore a *foreign*
			// device: resolve it through its declared access protocol.
			return deviceIndirect(rb, desc, tail, environment, lookup, depth)
		}
	}

	// FUNCTION(args) form: "name::library::function(args)" or
	// "name::function(args)" when no device/plugin prefix matched.
	if strings.HasSuffix(tail, ")") {
		return parseFunction(rb, plusPrefix, tail)
	}

	return nil, fails(UnknownFormat, "unrecognised source prefix %q", prefix)
}

// deviceIndirect implements spec.md §4.3 Scenario B "DEVICE class": look up
// the device's declared access protocol and rewrite source as
// "protocol::host[:port]/tail", then recurse with the depth guard already
// threaded through parseDepth (makeRequestBlock.cpp:327-368).
func deviceIndirect(rb *wire.RequestBlock, desc Descriptor, tail string, environment *env.Environment, lookup FormatLookup, depth int) (*wire.RequestBlock, error) {
	newSource := desc.DeviceProtocol + rb.APIDelim + desc.DeviceHost
	if desc.DevicePort != 0 {
		newSource += ":" + strconv.Itoa(desc.DevicePort)
	}
	if tail != "" {
		if !strings.HasPrefix(tail, "/") {
			newSource += "/"
		}
		newSource += tail
	}
	return parseDepth(rb.Signal, newSource, environment, lookup, depth+1)
}

func applyDescriptor(rb *wire.RequestBlock, desc Descriptor, tail string, isServerClass bool, environment *env.Environment) (*wire.RequestBlock, error) {
	rb.PluginID = desc.PluginID
	rb.Format = desc.Format

	switch {
	case desc.Class == ClassFunction || strings.HasSuffix(tail, ")"):
		return parseFunction(rb, "", tail)
	case desc.Class == ClassMDS || isServerClass:
		return parseServerTail(rb, tail)
	default:
		rb.Path = tail
		if i := strings.LastIndexByte(tail, '/'); i >= 0 {
			rb.File = tail[i+1:]
		} else {
			rb.File = tail
		}
		return rb, nil
	}
}

// parseServerTail handles "server/tree/shot" style tails used by MDS+ and
// other server-class plugins (spec.md §8 scenario 5).
func parseServerTail(rb *wire.RequestBlock, tail string) (*wire.RequestBlock, error) {
	fields := strings.Split(tail, "/")
	if len(fields) > 0 {
		rb.Server = fields[0]
	}
	if len(fields) > 1 {
		rb.File = fields[1]
	}
	if len(fields) > 2 {
		if n, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			rb.ExpNumber = n
		} else {
			rb.Tpass = fields[2]
		}
	}
	return rb, nil
}

// parseFunction handles the "name(arg1, arg2, ...)" call-syntax tail of
// spec.md §8 scenario 3.
func parseFunction(rb *wire.RequestBlock, libraryPrefix, tail string) (*wire.RequestBlock, error) {
	open := strings.IndexByte(tail, '(')
	if open < 0 || !strings.HasSuffix(tail, ")") {
		return nil, fails(FunctionSyntax, "malformed function call %q", tail)
	}
	rb.PluginID = wire.PluginFunction
	rb.Function = tail[:open]
	if libraryPrefix != "" {
		rb.Function = libraryPrefix + "::" + rb.Function
	}
	args := tail[open+1 : len(tail)-1]
	if strings.TrimSpace(args) != "" {
		nv, err := parseNameValueList(args)
		if err != nil {
			return nil, err
		}
		rb.NameValueList = nv
	}
	return rb, nil
}
