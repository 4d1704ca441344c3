package client

import (
	"fmt"

	"github.com/nvidia-uda/uda/wire"
)

// Handle is a client-side reference to a completed request's result,
// indexing the Client's handle table (spec.md §3 "handle").
type Handle struct {
	id int
	c  *Client
}

func (h Handle) block() *wire.DataBlock {
	if h.c == nil {
		return nil
	}
	return h.c.table.Get(h.id)
}

// Rank returns the result's dimensionality.
func (h Handle) Rank() int {
	if b := h.block(); b != nil {
		return b.Rank
	}
	return 0
}

// Data returns the flat, packed element array.
func (h Handle) Data() []byte {
	if b := h.block(); b != nil {
		return b.Data
	}
	return nil
}

// Units returns the result's unit label.
func (h Handle) Units() string {
	if b := h.block(); b != nil {
		return b.DataUnits
	}
	return ""
}

// Label returns the result's display label.
func (h Handle) Label() string {
	if b := h.block(); b != nil {
		return b.DataLabel
	}
	return ""
}

// Dims returns the result's per-axis dimension descriptors.
func (h Handle) Dims() []wire.Dimension {
	if b := h.block(); b != nil {
		return b.Dims
	}
	return nil
}

// Valid reports whether h still indexes a live slot.
func (h Handle) Valid() bool {
	return h.c != nil && h.c.table.Valid(h.id)
}

// StatusOf returns the pass/fail projection of h's result.
func (c *Client) StatusOf(h Handle) (Status, error) {
	b := c.table.Get(h.id)
	if b == nil {
		return Status{}, fmt.Errorf("client: invalid handle %d", h.id)
	}
	return Status{Code: b.ErrorCode, Message: b.ErrorMsg}, nil
}

// ErrorOf returns the error a result carries, or nil if it succeeded
// (spec.md §3: "errcode == 0 && status >= MIN_STATUS means the data is
// usable").
func (c *Client) ErrorOf(h Handle) error {
	b := c.table.Get(h.id)
	if b == nil {
		return fmt.Errorf("client: invalid handle %d", h.id)
	}
	if b.ErrorCode == 0 {
		return nil
	}
	return fmt.Errorf("client: (%d) %s", b.ErrorCode, b.ErrorMsg)
}

// Free releases h. Freeing an already-free or invalid handle is a no-op
// (spec.md §4.5.1).
func (c *Client) Free(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Free(h.id)
	return nil
}

// FreeAll releases every live handle this Client holds.
func (c *Client) FreeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.FreeAll()
}
