// Package client is the public UDA client API: it ties the request
// parser (C3), the per-connection session machine (C2), and the
// process-local handle table and fingerprint cache (C5) together behind
// the get/put/free surface spec.md §6 describes. A thin,
// allocation-light facade over the lower transport/session layers,
// the one application code actually imports.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/handle"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/session"
	"github.com/nvidia-uda/uda/wire"
)

// ClientFlag mirrors the wire.ClientBlock.ClientFlags bits a caller may
// toggle per-session (spec.md §4.8).
type ClientFlag = uint32

const FlagCompressData ClientFlag = wire.FlagCompressData

// Status is the pass/fail projection of a completed request, spec.md §3
// "errcode/error_msg".
type Status struct {
	Code    int
	Message string
}

// PutData is the raw payload a Put call ships to the server.
type PutData struct {
	Name  string
	Type  string
	Shape []int64
	Bytes []byte
}

// Recorder is the narrow metrics seam, satisfied by metrics.Collector.
type Recorder interface {
	ObserveRequest(pluginID wire.PluginID, cacheHit bool, failed bool, dur time.Duration)
	SetHandleCount(n int)
}

// Client is a single logical session against one (or, after Switch, more
// than one) UDA server. It is not safe for concurrent use by more than
// one goroutine, matching spec.md §5's "single-threaded cooperative"
// connection model.
type Client struct {
	mu sync.Mutex

	environment *env.Environment
	lookup      request.FormatLookup
	machine     *session.Machine
	registry    *session.Registry
	table       *handle.Table
	cache       *handle.Cache
	recorder    Recorder

	clientFlags ClientFlag
	properties  map[string]string

	connected bool
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithCache enables the fingerprint cache with the given capacity
// (spec.md §4.5 "Optional fingerprint cache").
func WithCache(capacity int) Option {
	return func(c *Client) {
		cache, err := handle.NewCache(capacity)
		if err == nil {
			c.cache = cache
		}
	}
}

// WithHandlePolicy overrides the default ScanThenAppend allocation policy.
func WithHandlePolicy(policy handle.Policy) Option {
	return func(c *Client) { c.table = handle.NewTable(policy) }
}

// WithRecorder wires a metrics collector into the client.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New returns a Client ready for Get/Put. lookup resolves the same
// prefix/extension/device tables the target server's plugin.Registry
// uses, so local parsing (C3) agrees with server-side dispatch (C4).
func New(environment *env.Environment, lookup request.FormatLookup, opts ...Option) *Client {
	c := &Client{
		environment: environment,
		lookup:      lookup,
		registry:    session.NewRegistry(),
		table:       handle.NewTable(handle.ScanThenAppend),
		properties:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = session.NewMachine(environment, c.registry)
	return c
}

// SetFlag ORs flag into the flags sent on every subsequent CLIENT_BLOCK.
func (c *Client) SetFlag(flag ClientFlag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientFlags |= flag
	c.machine.SetClientFlags(c.clientFlags)
}

// SetProperty records a name/value pair merged into every subsequent
// RequestBlock.NameValueList, the generic escape hatch spec.md §3's
// NameValueList exists for.
func (c *Client) SetProperty(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.properties[key] = fmt.Sprint(value)
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.connected {
		return nil
	}
	host, port := c.environment.DefaultHost, c.environment.DefaultPort
	if c.environment.HasProxy() {
		host, port = splitProxy(c.environment.Proxy, port)
	}
	if err := c.machine.Connect(ctx, host, port); err != nil {
		return err
	}
	c.connected = true
	return nil
}

func splitProxy(proxy string, defaultPort int) (string, int) {
	for i := len(proxy) - 1; i >= 0; i-- {
		if proxy[i] == ':' {
			return proxy[:i], defaultPort
		}
	}
	return proxy, defaultPort
}

func (c *Client) applyProperties(rb *wire.RequestBlock) {
	for k, v := range c.properties {
		rb.NameValueList.Pairs = append(rb.NameValueList.Pairs, wire.NameValue{Name: k, Value: v})
	}
}
