package client

import (
	"context"
	"time"

	"github.com/nvidia-uda/uda/handle"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/wire"
)

// Get parses (signal, source) into a RequestBlock, consults the
// fingerprint cache when enabled, and otherwise runs a full request
// cycle against the server, returning a Handle into the local handle
// table (spec.md §4.2, §4.5).
func (c *Client) Get(ctx context.Context, signal, source string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	rb, err := request.Parse(signal, source, c.environment, c.lookup)
	if err != nil {
		return Handle{}, err
	}
	c.applyProperties(rb)

	var fp handle.Fingerprint
	cacheable := c.cache != nil && c.environment.EnableCache
	if cacheable {
		fp = handle.Compute(rb)
		if cached, ok := c.cache.Get(fp); ok {
			db, derr := wire.DecodeDataBlock(cached, wire.CurrentVersion)
			if derr == nil {
				h := c.alloc(db)
				if c.recorder != nil {
					c.recorder.ObserveRequest(rb.PluginID, true, db.ErrorCode != 0, time.Since(start))
				}
				return h, nil
			}
		}
	}

	if err := c.ensureConnected(ctx); err != nil {
		return Handle{}, err
	}
	db, reqErr := c.machine.Do(ctx, rb)
	if db == nil {
		return Handle{}, reqErr
	}
	h := c.alloc(db)

	if cacheable && reqErr == nil {
		c.cache.Put(fp, wire.EncodeDataBlock(db, wire.CurrentVersion))
	}
	if c.recorder != nil {
		c.recorder.ObserveRequest(rb.PluginID, false, reqErr != nil, time.Since(start))
	}
	return h, reqErr
}

// Put ships data to the server under the source instruction names,
// returning the resulting Status (spec.md §6's Put/PutData pairing).
func (c *Client) Put(ctx context.Context, instruction string, data PutData) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rb, err := request.Parse("", instruction, c.environment, c.lookup)
	if err != nil {
		return Status{}, err
	}
	c.applyProperties(rb)
	rb.PutFlag = true
	rb.PutDataList = []wire.PutDataBlock{{Name: data.Name, Type: data.Type, Shape: data.Shape, Bytes: data.Bytes}}

	if err := c.ensureConnected(ctx); err != nil {
		return Status{}, err
	}
	db, reqErr := c.machine.Do(ctx, rb)
	if db == nil {
		return Status{}, reqErr
	}
	return Status{Code: db.ErrorCode, Message: db.ErrorMsg}, reqErr
}

func (c *Client) alloc(db *wire.DataBlock) Handle {
	id := c.table.Alloc(db)
	if c.recorder != nil {
		c.recorder.SetHandleCount(c.table.Len())
	}
	return Handle{id: id, c: c}
}
