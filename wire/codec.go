package wire

import (
	"fmt"

	"github.com/nvidia-uda/uda/structs"
)

// Version gates: a field encoded/decoded only when negotiated >= the
// constant (spec.md §4.1 "Schemas are version-gated").
const (
	VCompressedDim = 6 // lazily-expandable dimension descriptors
	VDataDesc      = 5 // DataBlock.DataDesc free-text field
	VSynthetic     = 6 // DataBlock.Synthetic parallel array
	VAuthToken     = 8 // CLIENT_BLOCK/SERVER_BLOCK authentication token slot
)

// --- RequestBlock (protocol_id 1) ---

func EncodeRequestBlock(rb *RequestBlock, version int) []byte {
	e := NewEncoder()
	e.PutI32(int32(rb.PluginID))
	e.PutString(rb.Device)
	e.PutString(rb.Archive)
	e.PutString(rb.Format)
	e.PutString(rb.File)
	e.PutString(rb.Path)
	e.PutString(rb.Server)
	e.PutString(rb.Function)
	e.PutI64(rb.ExpNumber)
	e.PutI32(int32(rb.Pass))
	e.PutString(rb.Tpass)
	e.PutString(rb.Signal)
	e.PutString(rb.Source)
	e.PutString(rb.APIDelim)
	e.PutBool(rb.PutFlag)

	encodeSubset(e, rb.Subset)

	e.PutU32(uint32(len(rb.NameValueList.Pairs)))
	for _, p := range rb.NameValueList.Pairs {
		e.PutString(p.Name)
		e.PutString(p.Value)
		e.PutBool(p.Quoted)
	}

	e.PutU32(uint32(len(rb.PutDataList)))
	for _, pd := range rb.PutDataList {
		e.PutString(pd.Name)
		e.PutString(pd.Type)
		e.PutU32(uint32(len(pd.Shape)))
		for _, s := range pd.Shape {
			e.PutI64(s)
		}
		e.PutBytes(pd.Bytes)
	}
	return e.Bytes()
}

func encodeSubset(e *Encoder, s DataSubset) {
	e.PutI32(int32(s.Rank))
	put := func(v []int64) {
		e.PutU32(uint32(len(v)))
		for _, x := range v {
			e.PutI64(x)
		}
	}
	put(s.Start)
	put(s.Stop)
	put(s.Count)
	put(s.Stride)
	e.PutU32(uint32(len(s.SubsetFlag)))
	for _, f := range s.SubsetFlag {
		e.PutBool(f)
	}
}

func decodeSubset(d *Decoder) DataSubset {
	var s DataSubset
	s.Rank = int(d.GetI32())
	get := func() []int64 {
		n := d.GetU32()
		out := make([]int64, n)
		for i := range out {
			out[i] = d.GetI64()
		}
		return out
	}
	s.Start = get()
	s.Stop = get()
	s.Count = get()
	s.Stride = get()
	n := d.GetU32()
	s.SubsetFlag = make([]bool, n)
	for i := range s.SubsetFlag {
		s.SubsetFlag[i] = d.GetBool()
	}
	return s
}

func DecodeRequestBlock(payload []byte, version int) (*RequestBlock, error) {
	d := NewDecoder(payload)
	rb := &RequestBlock{}
	rb.PluginID = PluginID(d.GetI32())
	rb.Device = d.GetString()
	rb.Archive = d.GetString()
	rb.Format = d.GetString()
	rb.File = d.GetString()
	rb.Path = d.GetString()
	rb.Server = d.GetString()
	rb.Function = d.GetString()
	rb.ExpNumber = d.GetI64()
	rb.Pass = int(d.GetI32())
	rb.Tpass = d.GetString()
	rb.Signal = d.GetString()
	rb.Source = d.GetString()
	rb.APIDelim = d.GetString()
	rb.PutFlag = d.GetBool()
	rb.Subset = decodeSubset(d)

	n := d.GetU32()
	rb.NameValueList.Pairs = make([]NameValue, n)
	for i := range rb.NameValueList.Pairs {
		rb.NameValueList.Pairs[i] = NameValue{Name: d.GetString(), Value: d.GetString(), Quoted: d.GetBool()}
	}

	pn := d.GetU32()
	if pn > 0 {
		rb.PutDataList = make([]PutDataBlock, pn)
	}
	for i := range rb.PutDataList {
		pd := &rb.PutDataList[i]
		pd.Name = d.GetString()
		pd.Type = d.GetString()
		sn := d.GetU32()
		pd.Shape = make([]int64, sn)
		for j := range pd.Shape {
			pd.Shape[j] = d.GetI64()
		}
		pd.Bytes = d.GetBytes()
	}
	if d.Err() != nil {
		return nil, fmt.Errorf("wire: decode request block: %w", d.Err())
	}
	return rb, nil
}

// --- DataBlock (protocol_id 2): header + atomic arrays ---

func EncodeDataBlock(db *DataBlock, version int) []byte {
	e := NewEncoder()
	e.PutI32(int32(db.DataType))
	e.PutI32(int32(db.OpaqueType))
	e.PutI32(int32(db.Rank))
	e.PutI32(int32(db.DataN))
	e.PutI32(int32(db.Order))
	e.PutI32(int32(db.ErrorCode))
	e.PutString(db.ErrorMsg)
	e.PutString(db.DataLabel)
	e.PutString(db.DataUnits)
	if version >= VDataDesc {
		e.PutString(db.DataDesc)
	}
	e.PutI32(int32(db.Status))
	e.PutBytes(db.Data)
	e.PutBytes(db.ErrHi)
	e.PutBytes(db.ErrLo)
	if version >= VSynthetic {
		e.PutBytes(db.Synthetic)
	}
	e.PutU32(uint32(len(db.Dims)))
	for _, dim := range db.Dims {
		encodeDimension(e, dim, version)
	}
	e.PutI32(int32(db.Handle))
	return e.Bytes()
}

func encodeDimension(e *Encoder, dim Dimension, version int) {
	e.PutI32(int32(dim.N))
	e.PutString(dim.Label)
	e.PutString(dim.Units)
	isCompressed := version >= VCompressedDim && dim.Compressed != nil
	e.PutBool(isCompressed)
	if isCompressed {
		e.PutF64(dim.Compressed.Dim0)
		e.PutF64(dim.Compressed.Diff)
		e.PutI32(int32(dim.Compressed.Method))
		e.PutI32(int32(dim.Compressed.N))
	} else {
		coords := dim.Coordinates()
		e.PutU32(uint32(len(coords)))
		for _, c := range coords {
			e.PutF64(c)
		}
	}
	putF64Slice(e, dim.ErrHi)
	putF64Slice(e, dim.ErrLo)
}

func putF64Slice(e *Encoder, v []float64) {
	e.PutU32(uint32(len(v)))
	for _, x := range v {
		e.PutF64(x)
	}
}

func getF64Slice(d *Decoder) []float64 {
	n := d.GetU32()
	out := make([]float64, n)
	for i := range out {
		out[i] = d.GetF64()
	}
	return out
}

func DecodeDataBlock(payload []byte, version int) (*DataBlock, error) {
	d := NewDecoder(payload)
	db := &DataBlock{}
	db.DataType = DataType(d.GetI32())
	db.OpaqueType = OpaqueType(d.GetI32())
	db.Rank = int(d.GetI32())
	db.DataN = int(d.GetI32())
	db.Order = int(d.GetI32())
	db.ErrorCode = int(d.GetI32())
	db.ErrorMsg = d.GetString()
	db.DataLabel = d.GetString()
	db.DataUnits = d.GetString()
	if version >= VDataDesc {
		db.DataDesc = d.GetString()
	}
	db.Status = int(d.GetI32())
	db.Data = d.GetBytes()
	db.ErrHi = d.GetBytes()
	db.ErrLo = d.GetBytes()
	if version >= VSynthetic {
		db.Synthetic = d.GetBytes()
	}
	n := d.GetU32()
	db.Dims = make([]Dimension, n)
	for i := range db.Dims {
		db.Dims[i] = decodeDimension(d, version)
	}
	db.Handle = int(d.GetI32())
	if d.Err() != nil {
		return nil, fmt.Errorf("wire: decode data block: %w", d.Err())
	}
	return db, nil
}

func decodeDimension(d *Decoder, version int) Dimension {
	var dim Dimension
	dim.N = int(d.GetI32())
	dim.Label = d.GetString()
	dim.Units = d.GetString()
	compressed := d.GetBool()
	if compressed {
		c := &CompressedDim{}
		c.Dim0 = d.GetF64()
		c.Diff = d.GetF64()
		c.Method = int(d.GetI32())
		c.N = int(d.GetI32())
		dim.Compressed = c
	} else {
		n := d.GetU32()
		dim.Coords = make([]float64, n)
		for i := range dim.Coords {
			dim.Coords[i] = d.GetF64()
		}
	}
	dim.ErrHi = getF64Slice(d)
	dim.ErrLo = getF64Slice(d)
	return dim
}

// --- NEXT_PROTOCOL (protocol_id 3) ---

func EncodeNextProtocol(n NextProtocol) []byte {
	e := NewEncoder()
	e.PutI32(int32(n))
	return e.Bytes()
}

func DecodeNextProtocol(payload []byte) (NextProtocol, error) {
	d := NewDecoder(payload)
	n := NextProtocol(d.GetI32())
	if d.Err() != nil {
		return 0, d.Err()
	}
	return n, nil
}

// --- metadata sidecars (protocol_ids 4-8) ---

func EncodeDataSystem(v *DataSystem) []byte {
	e := NewEncoder()
	e.PutI64(v.SystemID)
	e.PutI64(v.ConfigID)
	e.PutString(v.CreatedAt)
	return e.Bytes()
}

func DecodeDataSystem(payload []byte) (*DataSystem, error) {
	d := NewDecoder(payload)
	v := &DataSystem{SystemID: d.GetI64(), ConfigID: d.GetI64(), CreatedAt: d.GetString()}
	return v, d.Err()
}

func EncodeSystemConfig(v *SystemConfig) []byte {
	e := NewEncoder()
	e.PutI64(v.ConfigID)
	e.PutString(v.Device)
	e.PutString(v.DeviceType)
	return e.Bytes()
}

func DecodeSystemConfig(payload []byte) (*SystemConfig, error) {
	d := NewDecoder(payload)
	v := &SystemConfig{ConfigID: d.GetI64(), Device: d.GetString(), DeviceType: d.GetString()}
	return v, d.Err()
}

func EncodeDataSource(v *DataSource) []byte {
	e := NewEncoder()
	e.PutI64(v.SourceID)
	e.PutString(v.Archive)
	e.PutString(v.Device)
	e.PutString(v.Format)
	e.PutI64(v.ExpNumber)
	e.PutI32(int32(v.Pass))
	return e.Bytes()
}

func DecodeDataSource(payload []byte) (*DataSource, error) {
	d := NewDecoder(payload)
	v := &DataSource{SourceID: d.GetI64(), Archive: d.GetString(), Device: d.GetString(),
		Format: d.GetString(), ExpNumber: d.GetI64(), Pass: int(d.GetI32())}
	return v, d.Err()
}

func EncodeSignalRec(v *SignalRec) []byte {
	e := NewEncoder()
	e.PutI64(v.SignalID)
	e.PutI64(v.SourceID)
	e.PutI32(int32(v.Status))
	return e.Bytes()
}

func DecodeSignalRec(payload []byte) (*SignalRec, error) {
	d := NewDecoder(payload)
	v := &SignalRec{SignalID: d.GetI64(), SourceID: d.GetI64(), Status: int(d.GetI32())}
	return v, d.Err()
}

func EncodeSignalDesc(v *SignalDesc) []byte {
	e := NewEncoder()
	e.PutI64(v.SignalDescID)
	e.PutString(v.SignalName)
	e.PutString(v.Description)
	return e.Bytes()
}

func DecodeSignalDesc(payload []byte) (*SignalDesc, error) {
	d := NewDecoder(payload)
	v := &SignalDesc{SignalDescID: d.GetI64(), SignalName: d.GetString(), Description: d.GetString()}
	return v, d.Err()
}

// --- CLIENT_BLOCK (protocol_id 9) ---

func EncodeClientBlock(v *ClientBlock, version int) []byte {
	e := NewEncoder()
	e.PutI32(int32(v.Version))
	e.PutU32(v.ClientFlags)
	e.PutU32(v.PrivateFlags)
	e.PutString(v.OSName)
	e.PutString(v.DOI)
	if version >= VAuthToken {
		e.PutString(v.AuthToken)
	}
	return e.Bytes()
}

func DecodeClientBlock(payload []byte, version int) (*ClientBlock, error) {
	d := NewDecoder(payload)
	v := &ClientBlock{}
	v.Version = int(d.GetI32())
	v.ClientFlags = d.GetU32()
	v.PrivateFlags = d.GetU32()
	v.OSName = d.GetString()
	v.DOI = d.GetString()
	if version >= VAuthToken {
		v.AuthToken = d.GetString()
	}
	return v, d.Err()
}

// --- SERVER_BLOCK (protocol_id 10) ---

func EncodeServerBlock(v *ServerBlock, version int) []byte {
	e := NewEncoder()
	e.PutI32(int32(v.Version))
	e.PutString(v.ServerID)
	e.PutBool(v.Benign)
	e.PutU32(uint32(len(v.Errors)))
	for _, er := range v.Errors {
		e.PutI32(int32(er.Kind))
		e.PutString(er.Where)
		e.PutI32(int32(er.Code))
		e.PutString(er.Message)
	}
	if version >= VAuthToken {
		e.PutString(v.AuthToken)
	}
	return e.Bytes()
}

func DecodeServerBlock(payload []byte, version int) (*ServerBlock, error) {
	d := NewDecoder(payload)
	v := &ServerBlock{}
	v.Version = int(d.GetI32())
	v.ServerID = d.GetString()
	v.Benign = d.GetBool()
	n := d.GetU32()
	v.Errors = make([]ErrorEntry, n)
	for i := range v.Errors {
		v.Errors[i] = ErrorEntry{Kind: int(d.GetI32()), Where: d.GetString(), Code: int(d.GetI32()), Message: d.GetString()}
	}
	if version >= VAuthToken {
		v.AuthToken = d.GetString()
	}
	return v, d.Err()
}

// --- PUTDATA_BLOCK_LIST (protocol_id 11) ---

func EncodePutDataBlockList(v []PutDataBlock) []byte {
	e := NewEncoder()
	e.PutU32(uint32(len(v)))
	for _, pd := range v {
		e.PutString(pd.Name)
		e.PutString(pd.Type)
		e.PutU32(uint32(len(pd.Shape)))
		for _, s := range pd.Shape {
			e.PutI64(s)
		}
		e.PutBytes(pd.Bytes)
	}
	return e.Bytes()
}

func DecodePutDataBlockList(payload []byte) ([]PutDataBlock, error) {
	d := NewDecoder(payload)
	n := d.GetU32()
	out := make([]PutDataBlock, n)
	for i := range out {
		out[i].Name = d.GetString()
		out[i].Type = d.GetString()
		sn := d.GetU32()
		out[i].Shape = make([]int64, sn)
		for j := range out[i].Shape {
			out[i].Shape[j] = d.GetI64()
		}
		out[i].Bytes = d.GetBytes()
	}
	return out, d.Err()
}

// --- META (protocol_id 12): an XML blob ---

func EncodeMeta(xml string) []byte {
	e := NewEncoder()
	e.PutString(xml)
	return e.Bytes()
}

func DecodeMeta(payload []byte) (string, error) {
	d := NewDecoder(payload)
	s := d.GetString()
	return s, d.Err()
}

// --- STRUCTURES / EFIT (protocol_ids 13, 14): the compound tree ---
//
// Both protocol_ids share an encoding: the type dictionary, then every
// logged allocation, then the root index. EFIT is a domain-specific
// compound result (spec.md §3 opaque_type EFIT) but its wire shape is
// identical to a generic STRUCTURES payload; only the outer protocol_id
// differs, letting the session state machine select the decoder by
// DataBlock.OpaqueType (spec.md §4.2 step 6) without the codec itself
// needing to know what EFIT means domain-wise.

func EncodeStructures(gb *structs.GeneralBlock) []byte {
	e := NewEncoder()
	encodeTypeList(e, gb.Types)
	e.PutU32(uint32(gb.Log.Len()))
	for i := 0; i < gb.Log.Len(); i++ {
		a, _ := gb.Log.At(i)
		e.PutString(a.TypeName)
		e.PutI32(int32(a.Count))
		e.PutI32(int32(a.ElementSize))
		e.PutBytes(a.Bytes)
	}
	e.PutI32(int32(gb.Root))
	return e.Bytes()
}

func encodeTypeList(e *Encoder, l *structs.UserDefinedTypeList) {
	e.PutU32(uint32(len(l.Types)))
	for _, t := range l.Types {
		e.PutString(t.Name)
		e.PutI32(int32(t.Size))
		e.PutU32(uint32(len(t.Fields)))
		for _, f := range t.Fields {
			e.PutString(f.Name)
			e.PutString(f.TypeName)
			e.PutI32(int32(f.Atomic))
			e.PutBool(f.IsPointer)
			e.PutI32(int32(f.Rank))
			e.PutU32(uint32(len(f.Shape)))
			for _, s := range f.Shape {
				e.PutI32(int32(s))
			}
			e.PutI32(int32(f.Count))
			e.PutI32(int32(f.Offset))
			e.PutI32(int32(f.Padding))
			e.PutI32(int32(f.Alignment))
		}
	}
}

func decodeTypeList(d *Decoder) *structs.UserDefinedTypeList {
	l := &structs.UserDefinedTypeList{}
	n := d.GetU32()
	l.Types = make([]*structs.UserDefinedType, n)
	for i := range l.Types {
		t := &structs.UserDefinedType{}
		t.Name = d.GetString()
		t.Size = int(d.GetI32())
		fn := d.GetU32()
		t.Fields = make([]structs.CompoundField, fn)
		for j := range t.Fields {
			f := &t.Fields[j]
			f.Name = d.GetString()
			f.TypeName = d.GetString()
			f.Atomic = structs.AtomicTag(d.GetI32())
			f.IsPointer = d.GetBool()
			f.Rank = int(d.GetI32())
			sn := d.GetU32()
			f.Shape = make([]int, sn)
			for k := range f.Shape {
				f.Shape[k] = int(d.GetI32())
			}
			f.Count = int(d.GetI32())
			f.Offset = int(d.GetI32())
			f.Padding = int(d.GetI32())
			f.Alignment = int(d.GetI32())
		}
		l.Types[i] = t
	}
	return l
}

func DecodeStructures(payload []byte) (*structs.GeneralBlock, error) {
	d := NewDecoder(payload)
	gb := &structs.GeneralBlock{Log: structs.NewMallocLog()}
	gb.Types = decodeTypeList(d)
	n := d.GetU32()
	for i := uint32(0); i < n; i++ {
		typeName := d.GetString()
		count := int(d.GetI32())
		elemSize := int(d.GetI32())
		bytes := d.GetBytes()
		gb.Log.Alloc(typeName, count, elemSize, bytes)
	}
	gb.Root = int(d.GetI32())
	if d.Err() != nil {
		return nil, fmt.Errorf("wire: decode structures: %w", d.Err())
	}
	return gb, nil
}
