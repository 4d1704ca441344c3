package structs

import (
	"encoding/binary"
	"fmt"
	"math"
)

// nullPtr is the sentinel written at a pointer field's offset when the field
// is a null pointer (as opposed to an index into the MallocLog).
const nullPtr = math.MaxUint64

// Node is an in-memory, pre-wire representation of one instance of a
// UserDefinedType: a set of scalar leaf values plus, for pointer fields,
// nested child Nodes (or nil for a null pointer, or a slice of children for
// a ranked/array-of-pointers field). Plugins build a Node tree; Materialize
// logs it into a MallocLog and GeneralBlock for transport.
type Node struct {
	Type     *UserDefinedType
	Scalars  map[string]any    // non-pointer field name -> Go value
	Children map[string]*Node  // single-pointer field name -> child (nil => null)
	Arrays   map[string][]*Node // ranked pointer field name -> children (nil entries => null)
}

func scalarSize(tag AtomicTag) (int, error) {
	switch tag {
	case TagInt8, TagUint8:
		return 1, nil
	case TagInt16, TagUint16:
		return 2, nil
	case TagInt32, TagUint32, TagFloat32:
		return 4, nil
	case TagInt64, TagUint64, TagFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("structs: no fixed size for atomic tag %d", tag)
	}
}

func putScalar(buf []byte, tag AtomicTag, v any) error {
	switch tag {
	case TagInt8:
		buf[0] = byte(toInt64(v))
	case TagUint8:
		buf[0] = byte(toUint64(v))
	case TagInt16:
		binary.BigEndian.PutUint16(buf, uint16(toInt64(v)))
	case TagUint16:
		binary.BigEndian.PutUint16(buf, uint16(toUint64(v)))
	case TagInt32:
		binary.BigEndian.PutUint32(buf, uint32(toInt64(v)))
	case TagUint32:
		binary.BigEndian.PutUint32(buf, uint32(toUint64(v)))
	case TagInt64:
		binary.BigEndian.PutUint64(buf, uint64(toInt64(v)))
	case TagUint64:
		binary.BigEndian.PutUint64(buf, toUint64(v))
	case TagFloat32:
		f, _ := v.(float32)
		binary.BigEndian.PutUint32(buf, math.Float32bits(f))
	case TagFloat64:
		f, _ := v.(float64)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	default:
		return fmt.Errorf("structs: cannot encode atomic tag %d as scalar", tag)
	}
	return nil
}

func getScalar(buf []byte, tag AtomicTag) (any, error) {
	switch tag {
	case TagInt8:
		return int64(int8(buf[0])), nil
	case TagUint8:
		return uint64(buf[0]), nil
	case TagInt16:
		return int64(int16(binary.BigEndian.Uint16(buf))), nil
	case TagUint16:
		return uint64(binary.BigEndian.Uint16(buf)), nil
	case TagInt32:
		return int64(int32(binary.BigEndian.Uint32(buf))), nil
	case TagUint32:
		return uint64(binary.BigEndian.Uint32(buf)), nil
	case TagInt64:
		return int64(binary.BigEndian.Uint64(buf)), nil
	case TagUint64:
		return binary.BigEndian.Uint64(buf), nil
	case TagFloat32:
		return math.Float32frombits(binary.BigEndian.Uint32(buf)), nil
	case TagFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
	default:
		return nil, fmt.Errorf("structs: cannot decode atomic tag %d as scalar", tag)
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	default:
		return 0
	}
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int:
		return uint64(x)
	default:
		return 0
	}
}

// Materialize logs n (and, recursively, every descendant it points to) into
// log and returns the index of n's own allocation, i.e. its "pointer". The
// returned index, together with log and n.Type's dictionary, is enough to
// reconstruct the tree later via Rebuild.
func Materialize(log *MallocLog, n *Node) (int, error) {
	if n == nil {
		return -1, fmt.Errorf("structs: cannot materialize nil node")
	}
	buf := make([]byte, n.Type.Size)
	for _, f := range n.Type.Fields {
		if f.IsPointer {
			continue // filled in below, after children are materialized
		}
		v, ok := n.Scalars[f.Name]
		if !ok {
			continue // zero-value field: leave as zeroed bytes
		}
		size, err := scalarSize(f.Atomic)
		if err != nil {
			return -1, err
		}
		if f.Offset+size > len(buf) {
			return -1, fmt.Errorf("structs: field %q offset %d overruns type size %d", f.Name, f.Offset, n.Type.Size)
		}
		if err := putScalar(buf[f.Offset:f.Offset+size], f.Atomic, v); err != nil {
			return -1, err
		}
	}
	for _, f := range n.Type.Fields {
		if !f.IsPointer {
			continue
		}
		if f.Offset+8 > len(buf) {
			return -1, fmt.Errorf("structs: pointer field %q offset %d overruns type size %d", f.Name, f.Offset, n.Type.Size)
		}
		if f.Rank > 0 {
			children := n.Arrays[f.Name]
			idx, err := materializeArray(log, children)
			if err != nil {
				return -1, err
			}
			binary.BigEndian.PutUint64(buf[f.Offset:f.Offset+8], idx)
			continue
		}
		child := n.Children[f.Name]
		if child == nil {
			binary.BigEndian.PutUint64(buf[f.Offset:f.Offset+8], nullPtr)
			continue
		}
		childIdx, err := Materialize(log, child)
		if err != nil {
			return -1, err
		}
		binary.BigEndian.PutUint64(buf[f.Offset:f.Offset+8], uint64(childIdx))
	}
	return log.Alloc(n.Type.Name, 1, n.Type.Size, buf), nil
}

// materializeArray logs a contiguous vector of pointer-to-struct entries
// (8 bytes per entry: a logged index, or nullPtr) and returns the vector's
// own allocation index.
func materializeArray(log *MallocLog, children []*Node) (uint64, error) {
	if children == nil {
		return nullPtr, nil
	}
	idxBuf := make([]byte, 8*len(children))
	for i, c := range children {
		if c == nil {
			binary.BigEndian.PutUint64(idxBuf[i*8:i*8+8], nullPtr)
			continue
		}
		childIdx, err := Materialize(log, c)
		if err != nil {
			return 0, err
		}
		binary.BigEndian.PutUint64(idxBuf[i*8:i*8+8], uint64(childIdx))
	}
	return uint64(log.Alloc("[]ptr", len(children), 8, idxBuf)), nil
}

// Rebuild walks the arena back into a Node tree, the inverse of Materialize.
func Rebuild(types *UserDefinedTypeList, log *MallocLog, root int) (*Node, error) {
	if root < 0 {
		return nil, nil
	}
	alloc, err := log.At(root)
	if err != nil {
		return nil, err
	}
	typ, ok := types.Find(alloc.TypeName)
	if !ok {
		return nil, fmt.Errorf("structs: unknown type %q referenced from malloc log", alloc.TypeName)
	}
	n := &Node{Type: typ, Scalars: map[string]any{}, Children: map[string]*Node{}, Arrays: map[string][]*Node{}}
	for _, f := range typ.Fields {
		if f.IsPointer {
			continue
		}
		size, err := scalarSize(f.Atomic)
		if err != nil {
			return nil, err
		}
		v, err := getScalar(alloc.Bytes[f.Offset:f.Offset+size], f.Atomic)
		if err != nil {
			return nil, err
		}
		n.Scalars[f.Name] = v
	}
	for _, f := range typ.Fields {
		if !f.IsPointer {
			continue
		}
		idx := binary.BigEndian.Uint64(alloc.Bytes[f.Offset : f.Offset+8])
		if f.Rank > 0 {
			children, err := rebuildArray(types, log, idx)
			if err != nil {
				return nil, err
			}
			n.Arrays[f.Name] = children
			continue
		}
		if idx == nullPtr {
			n.Children[f.Name] = nil
			continue
		}
		child, err := Rebuild(types, log, int(idx))
		if err != nil {
			return nil, err
		}
		n.Children[f.Name] = child
	}
	return n, nil
}

func rebuildArray(types *UserDefinedTypeList, log *MallocLog, idx uint64) ([]*Node, error) {
	if idx == nullPtr {
		return nil, nil
	}
	alloc, err := log.At(int(idx))
	if err != nil {
		return nil, err
	}
	n := alloc.Count
	out := make([]*Node, n)
	for i := 0; i < n; i++ {
		entryIdx := binary.BigEndian.Uint64(alloc.Bytes[i*8 : i*8+8])
		if entryIdx == nullPtr {
			continue
		}
		child, err := Rebuild(types, log, int(entryIdx))
		if err != nil {
			return nil, err
		}
		out[i] = child
	}
	return out, nil
}
