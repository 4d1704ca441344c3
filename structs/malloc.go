package structs

import "fmt"

// Allocation records one allocation made while materialising a value tree.
// Pointers inside the tree are stored as indices into the owning MallocLog
// rather than as raw addresses, so that cyclic and shared substructures can
// be rebuilt deterministically on the receiving side (SPEC_FULL.md §4.6,
// "arena-plus-index").
type Allocation struct {
	Index       int // position of this allocation in the log (== its "address")
	Count       int // number of elements
	ElementSize int // size in bytes of one element
	TypeName    string
	Bytes       []byte // the raw, decoded bytes for this allocation
}

// MallocLog is the arena: every allocation performed while decoding a
// compound tree is appended here, in order, and referenced thereafter only
// by its Index. Free walks the log in reverse, following the same
// pool-buffer discipline as acquire-forward/release-in-reverse pooled
// buffers, so nested/derived buffers never outlive what they were carved
// from.
type MallocLog struct {
	allocations []Allocation
}

// NewMallocLog returns an empty log.
func NewMallocLog() *MallocLog { return &MallocLog{} }

// Alloc appends a new allocation and returns its index (its "pointer").
func (m *MallocLog) Alloc(typeName string, count, elementSize int, bytes []byte) int {
	idx := len(m.allocations)
	m.allocations = append(m.allocations, Allocation{
		Index:       idx,
		Count:       count,
		ElementSize: elementSize,
		TypeName:    typeName,
		Bytes:       bytes,
	})
	return idx
}

// At resolves a logged pointer (an index) back to its Allocation.
func (m *MallocLog) At(index int) (Allocation, error) {
	if index < 0 || index >= len(m.allocations) {
		return Allocation{}, fmt.Errorf("structs: malloc log index %d out of range [0,%d)", index, len(m.allocations))
	}
	return m.allocations[index], nil
}

// Len reports how many allocations are currently logged.
func (m *MallocLog) Len() int { return len(m.allocations) }

// Free discards every allocation, walking the log in reverse so that an
// allocation is never released before anything that might still reference
// it by a higher index (later allocations may point back at earlier ones,
// never the other way around, by construction of the decoder).
func (m *MallocLog) Free() {
	for i := len(m.allocations) - 1; i >= 0; i-- {
		m.allocations[i].Bytes = nil
	}
	m.allocations = m.allocations[:0]
}

// OpaqueType is the tagged variant over the closed set of compound-result
// shapes, replacing the original's duck-typed `void*` + int tag.
type OpaqueType int

const (
	OpaqueUnknown OpaqueType = iota
	OpaqueXMLDocument
	OpaqueStructures
	OpaqueXDRFile
	OpaqueXDRObject
	OpaqueEFit
)

// GeneralBlock is the opaque payload attached to a DataBlock whenever
// OpaqueType != OpaqueUnknown: the type dictionary, the allocation log used
// to build it, and the index of the tree's root allocation.
type GeneralBlock struct {
	Types *UserDefinedTypeList
	Log   *MallocLog
	Root  int // index into Log of the root allocation; -1 if none
}

// NewGeneralBlock returns an empty compound-result container.
func NewGeneralBlock() *GeneralBlock {
	return &GeneralBlock{Types: &UserDefinedTypeList{}, Log: NewMallocLog(), Root: -1}
}

// Free releases the arena. Safe to call on a nil GeneralBlock.
func (g *GeneralBlock) Free() {
	if g == nil || g.Log == nil {
		return
	}
	g.Log.Free()
}
