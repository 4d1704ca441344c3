// Package wire implements the framed binary protocol (C1): the record-level
// encoding for every typed message exchanged between a UDA client and
// server, plus the data-model types those messages carry.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import "github.com/nvidia-uda/uda/structs"

// PluginID names which backend serves a request (spec.md §3 RequestBlock).
type PluginID int

const (
	PluginUnknown PluginID = iota
	PluginGenericCatalog
	PluginFile
	PluginForwardToPeer
	PluginFunction
	PluginServerSideFunction
	PluginMDS
	PluginSQL
	PluginWeb
)

func (p PluginID) String() string {
	switch p {
	case PluginGenericCatalog:
		return "GENERIC_CATALOG"
	case PluginFile:
		return "FILE"
	case PluginForwardToPeer:
		return "FORWARD_TO_PEER"
	case PluginFunction:
		return "FUNCTION"
	case PluginServerSideFunction:
		return "SERVER_SIDE_FUNCTION"
	case PluginMDS:
		return "MDS"
	case PluginSQL:
		return "SQL"
	case PluginWeb:
		return "WEB"
	default:
		return "UNKNOWN"
	}
}

// DataSubset is the expanded form of a captured slice expression
// (spec.md §3, §4.3 "Subset grammar").
type DataSubset struct {
	Rank       int
	Start      []int64
	Stop       []int64 // -1 means "to end"
	Count      []int64 // -1 when not computable (open-ended stop)
	Stride     []int64
	SubsetFlag []bool // true for dimensions that were explicitly sliced
}

// NameValue is one parsed `k=v` (or `/k`) pair.
type NameValue struct {
	Name    string
	Value   string
	Quoted  bool // true if the original value was quote-wrapped (and stripped)
}

// NameValueList is the ordered argument list of a RequestBlock.
type NameValueList struct {
	Pairs []NameValue
}

// Get returns the value of the first pair named name, if present.
func (l *NameValueList) Get(name string) (string, bool) {
	for _, p := range l.Pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// PutDataBlock is one payload block carried by a PUTDATA_BLOCK_LIST message.
type PutDataBlock struct {
	Name  string
	Type  string
	Shape []int64
	Bytes []byte
}

// RequestBlock is the structured form of one client request
// (spec.md §3 "RequestBlock").
type RequestBlock struct {
	PluginID  PluginID
	Device    string
	Archive   string
	Format    string
	File      string
	Path      string
	Server    string
	Function  string
	ExpNumber int64
	Pass      int
	Tpass     string
	Signal    string
	Source    string
	Subset    DataSubset
	NameValueList NameValueList
	PutFlag   bool
	PutDataList []PutDataBlock
	APIDelim  string
}

// DataType is the atomic element tag of a DataBlock's flat array.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeCompound
)

// OpaqueType re-exports structs.OpaqueType under the wire package so callers
// never need to import structs just to compare a DataBlock's tag.
type OpaqueType = structs.OpaqueType

const (
	OpaqueUnknown     = structs.OpaqueUnknown
	OpaqueXMLDocument = structs.OpaqueXMLDocument
	OpaqueStructures  = structs.OpaqueStructures
	OpaqueXDRFile     = structs.OpaqueXDRFile
	OpaqueXDRObject   = structs.OpaqueXDRObject
	OpaqueEFit        = structs.OpaqueEFit
)

// Dimension is either a materialised coordinate array, or a compressed
// descriptor expanded lazily (spec.md §3 "dims[rank]").
type Dimension struct {
	N       int
	Label   string
	Units   string
	Coords  []float64 // materialised values, len N; nil if Compressed != nil
	ErrHi   []float64
	ErrLo   []float64
	Compressed *CompressedDim
}

// CompressedDim is the lazily-expandable {dim0, diff, method, n} descriptor.
type CompressedDim struct {
	Dim0   float64
	Diff   float64
	Method int
	N      int
}

// Expand materialises a compressed dimension into Coords. Method 0 is
// uniform-stride (dim0, dim0+diff, dim0+2*diff, ...); other methods are
// reserved for collaborator plugins and expand to a linear ramp here as a
// safe fallback.
func (c *CompressedDim) Expand() []float64 {
	out := make([]float64, c.N)
	for i := range out {
		out[i] = c.Dim0 + float64(i)*c.Diff
	}
	return out
}

// Coordinates returns the dimension's materialised values, expanding a
// compressed descriptor lazily on first access.
func (d *Dimension) Coordinates() []float64 {
	if d.Coords != nil {
		return d.Coords
	}
	if d.Compressed != nil {
		d.Coords = d.Compressed.Expand()
	}
	return d.Coords
}

// DataBlock is one result (spec.md §3 "DataBlock").
type DataBlock struct {
	DataType   DataType
	OpaqueType OpaqueType
	Rank       int
	DataN      int
	Order      int // index of the time dimension, or -1
	ErrorCode  int
	ErrorMsg   string
	DataLabel  string
	DataUnits  string
	DataDesc   string
	Status     int

	Data      []byte // DataN elements of DataType, packed big-endian
	ErrHi     []byte
	ErrLo     []byte
	Synthetic []byte

	Dims []Dimension

	OpaqueBlock *structs.GeneralBlock

	DataSystem   *DataSystem
	SystemConfig *SystemConfig
	DataSource   *DataSource
	SignalRec    *SignalRec
	SignalDesc   *SignalDesc

	Handle int // index in the handle table; -1 means free
}

// Metadata sidecars (spec.md §3). The server sends all five on every
// request cycle; session.Machine reads them off the wire but does not
// attach them to the DataBlock it returns. Fields are
// intentionally minimal: the SQL-backed catalog that fully populates them is
// an out-of-scope collaborator (spec.md §1).
type (
	DataSystem struct {
		SystemID  int64
		ConfigID  int64
		CreatedAt string
	}
	SystemConfig struct {
		ConfigID   int64
		Device     string
		DeviceType string
	}
	DataSource struct {
		SourceID int64
		Archive  string
		Device   string
		Format   string
		ExpNumber int64
		Pass      int
	}
	SignalRec struct {
		SignalID int64
		SourceID int64
		Status   int
	}
	SignalDesc struct {
		SignalDescID int64
		SignalName   string
		Description  string
	}
)

// ClientBlock carries the per-connection client flags negotiated at
// CLIENT_BLOCK time (spec.md §4.2 step 1, §4.8).
type ClientBlock struct {
	Version      int
	ClientFlags  uint32
	PrivateFlags uint32
	OSName       string
	DOI          string
	AuthToken    string // opaque signed token; cryptography out of scope (spec.md §1)
}

// ServerBlock carries server identity plus the request's error stack
// (spec.md §4.2 step 3).
type ServerBlock struct {
	Version   int
	ServerID  string
	Errors    []ErrorEntry
	Benign    bool // true if a non-empty stack should not fail the request
	AuthToken string
}

// ErrorEntry is the wire projection of uerrors.Entry (kept separate so wire
// never imports uerrors, preserving the layering C1 -> nothing).
type ErrorEntry struct {
	Kind    int
	Where   string
	Code    int
	Message string
}

// NextProtocol is the sleep-vs-closedown terminal message of a request
// cycle (spec.md §4.2 step 7, protocol_id 3).
type NextProtocol int

const (
	NextSleep NextProtocol = iota
	NextClosedown
)
