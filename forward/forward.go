// Package forward implements the FORWARD_TO_PEER backend: a plugin.Backend
// that re-issues the request against another UDA server and copies its
// result back, rather than reading local data itself. Grounded on
// session.Machine, the same client-side connection driver package client
// uses, invoked recursively one hop deeper (spec.md §4.3 "Proxy
// short-circuit").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package forward

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/session"
	"github.com/nvidia-uda/uda/wire"
)

// Backend forwards a request to whatever peer req.Server names, reusing
// one session.Machine per peer for the life of the process rather than
// dialing fresh on every call.
type Backend struct {
	environment *env.Environment
	defaultPort int

	mu       sync.Mutex
	registry *session.Registry
	machines map[string]*session.Machine
}

// New returns a forwarding Backend. defaultPort is used when a peer is
// named without an explicit ":port" suffix.
func New(environment *env.Environment, defaultPort int) *Backend {
	return &Backend{
		environment: environment,
		defaultPort: defaultPort,
		registry:    session.NewRegistry(),
		machines:    make(map[string]*session.Machine),
	}
}

func (*Backend) Class() plugin.Class { return plugin.ClassOther }
func (*Backend) Format() string      { return "" }

// Invoke dials (or reuses) a connection to req.Server, replays req on it,
// and copies the peer's DataBlock into io.Out.
func (b *Backend) Invoke(ctx context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	host, port, err := splitHostPort(req.Server, b.defaultPort)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}

	m, err := b.machineFor(ctx, host, port)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}

	fwd := *req
	fwd.PluginID = wire.PluginGenericCatalog
	db, err := m.Do(ctx, &fwd)
	if err != nil {
		return fmt.Errorf("forward: peer %s:%d: %w", host, port, err)
	}
	*io.Out = *db
	return nil
}

func (b *Backend) machineFor(ctx context.Context, host string, port int) (*session.Machine, error) {
	key := fmt.Sprintf("%s:%d", host, port)

	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.machines[key]; ok {
		return m, nil
	}
	m := session.NewMachine(b.environment, b.registry)
	if err := m.Connect(ctx, host, port); err != nil {
		return nil, err
	}
	b.machines[key] = m
	return m, nil
}

func splitHostPort(server string, defaultPort int) (string, int, error) {
	if server == "" {
		return "", 0, fmt.Errorf("empty peer address")
	}
	if i := strings.LastIndexByte(server, ':'); i >= 0 {
		port, err := strconv.Atoi(server[i+1:])
		if err != nil {
			return "", 0, fmt.Errorf("invalid peer port in %q: %w", server, err)
		}
		return server[:i], port, nil
	}
	return server, defaultPort, nil
}
