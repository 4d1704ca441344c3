package handle

import (
	"testing"

	"github.com/nvidia-uda/uda/structs"
	"github.com/nvidia-uda/uda/wire"
	"github.com/stretchr/testify/require"
)

func TestAllocScanThenAppendReusesFreedSlot(t *testing.T) {
	tbl := NewTable(ScanThenAppend)
	h0 := tbl.Alloc(&wire.DataBlock{DataLabel: "a"})
	h1 := tbl.Alloc(&wire.DataBlock{DataLabel: "b"})
	require.NotEqual(t, h0, h1)

	tbl.Free(h0)
	require.False(t, tbl.Valid(h0))

	h2 := tbl.Alloc(&wire.DataBlock{DataLabel: "c"})
	require.Equal(t, h0, h2, "freed slot should be reused before appending")
}

func TestHandleEqualsTableIndex(t *testing.T) {
	tbl := NewTable(ScanThenAppend)
	block := &wire.DataBlock{DataLabel: "x"}
	h := tbl.Alloc(block)
	require.Equal(t, h, block.Handle, "handle must equal the table index, no off-by-one")
}

func TestReuseLastHandlePolicy(t *testing.T) {
	tbl := NewTable(ReuseLastHandle)
	h0 := tbl.Alloc(&wire.DataBlock{DataLabel: "a"})
	h1 := tbl.Alloc(&wire.DataBlock{DataLabel: "b"})
	require.Equal(t, h0, h1, "reuse-last-handle should reinitialise the same slot")
	require.Equal(t, "b", tbl.Get(h1).DataLabel)
}

func TestFreeReuseLastHandleFreesOpaqueBlock(t *testing.T) {
	tbl := NewTable(FreeReuseLastHandle)
	first := &wire.DataBlock{DataLabel: "a", OpaqueBlock: structs.NewGeneralBlock()}
	h0 := tbl.Alloc(first)

	second := &wire.DataBlock{DataLabel: "b"}
	h1 := tbl.Alloc(second)
	require.Equal(t, h0, h1)
	require.Equal(t, "b", tbl.Get(h1).DataLabel)
	require.Nil(t, first.OpaqueBlock, "reuse should free the previous block's opaque block")
	require.Nil(t, tbl.Get(h1).OpaqueBlock, "reused slot should start from a clean block")
}

func TestFreeAllClearsEveryHandle(t *testing.T) {
	tbl := NewTable(ScanThenAppend)
	h0 := tbl.Alloc(&wire.DataBlock{})
	h1 := tbl.Alloc(&wire.DataBlock{})
	tbl.FreeAll()
	require.False(t, tbl.Valid(h0))
	require.False(t, tbl.Valid(h1))
}

func TestFreeIsIdempotent(t *testing.T) {
	tbl := NewTable(ScanThenAppend)
	h := tbl.Alloc(&wire.DataBlock{})
	tbl.Free(h)
	require.NotPanics(t, func() { tbl.Free(h) })
	require.NotPanics(t, func() { tbl.Free(999) })
}
