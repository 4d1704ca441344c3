// Package handle implements the process-local handle table and the
// optional fingerprint cache (C5): spec.md §4.5.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package handle

import "github.com/nvidia-uda/uda/wire"

// Policy selects the allocation strategy applied on Alloc.
type Policy int

const (
	// ScanThenAppend reuses the first free slot (handle == -1) or
	// appends a new one; the default policy.
	ScanThenAppend Policy = iota
	// ReuseLastHandle reinitialises the previously returned handle in
	// place, provided it's still valid.
	ReuseLastHandle
	// FreeReuseLastHandle is ReuseLastHandle but first frees any heap
	// (OpaqueBlock) the slot holds before reinitialising it.
	FreeReuseLastHandle
)

// Table is the process-local, single-threaded (spec.md §4.5 "Shared
// resources": one thread only, no locking) array of DataBlock slots
// indexed by handle.
type Table struct {
	slots      []*wire.DataBlock
	lastHandle int
	policy     Policy
}

// NewTable returns an empty table using the given allocation policy.
func NewTable(policy Policy) *Table {
	return &Table{lastHandle: -1, policy: policy}
}

// Alloc reserves a slot for block and returns its handle. block.Handle
// is set to the returned index before Alloc returns, matching the
// invariant that index i always equals either block.handle or -1.
func (t *Table) Alloc(block *wire.DataBlock) int {
	var idx int
	switch t.policy {
	case ReuseLastHandle, FreeReuseLastHandle:
		if t.lastHandle >= 0 && t.lastHandle < len(t.slots) && t.slots[t.lastHandle] != nil {
			idx = t.lastHandle
			if t.policy == FreeReuseLastHandle {
				freeOpaque(t.slots[idx])
			}
		} else {
			idx = t.scanOrAppend()
		}
	default:
		idx = t.scanOrAppend()
	}
	block.Handle = idx
	t.slots[idx] = block
	t.lastHandle = idx
	return idx
}

func (t *Table) scanOrAppend() int {
	for i, s := range t.slots {
		if s == nil {
			return i
		}
	}
	t.slots = append(t.slots, nil)
	return len(t.slots) - 1
}

func freeOpaque(b *wire.DataBlock) {
	if b == nil || b.OpaqueBlock == nil {
		return
	}
	b.OpaqueBlock.Free()
	b.OpaqueBlock = nil
}

// Free releases handle h: the slot is cleared and may be reassigned by
// a subsequent Alloc. Freeing an already-free or out-of-range handle
// is a no-op, matching free(handle)/free_all() being safe to call
// repeatedly (spec.md §4.5.1).
func (t *Table) Free(h int) {
	if h < 0 || h >= len(t.slots) || t.slots[h] == nil {
		return
	}
	freeOpaque(t.slots[h])
	t.slots[h] = nil
}

// FreeAll releases every live handle.
func (t *Table) FreeAll() {
	for i := range t.slots {
		if t.slots[i] != nil {
			freeOpaque(t.slots[i])
			t.slots[i] = nil
		}
	}
	t.lastHandle = -1
}

// Get returns the block at handle h, or nil if the handle is free or
// out of range.
func (t *Table) Get(h int) *wire.DataBlock {
	if h < 0 || h >= len(t.slots) {
		return nil
	}
	return t.slots[h]
}

// Valid reports whether h currently indexes a live slot.
func (t *Table) Valid(h int) bool { return t.Get(h) != nil }

// Len returns the table's current slot count, including free slots.
func (t *Table) Len() int { return len(t.slots) }
