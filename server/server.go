// Package server implements the server side of the per-connection state
// machine (C2) and the C4 dispatch loop: one goroutine per accepted
// connection, driving the same handshake/request/sleep cycle
// session.Machine drives client-side, following the same
// connection-per-goroutine stream handling. Config loading and signal
// handling live in cmd/udad, not here.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nvidia-uda/uda/auth"
	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/handle"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/session"
	"github.com/nvidia-uda/uda/uerrors"
	"github.com/nvidia-uda/uda/ulog"
	"github.com/nvidia-uda/uda/wire"
)

// Config bundles everything a Server needs at construction time. The
// fingerprint cache and handle table are client-side concerns (spec.md §4.5:
// "the dispatcher bypasses the server" on a cache hit) and have no home
// here.
type Config struct {
	Environment *env.Environment
	Registry    *plugin.Registry
	Auth        *auth.Validator // nil disables authentication
	Forwarder   plugin.Backend  // handles wire.PluginForwardToPeer, nil rejects it
	Recorder    Recorder        // nil disables metrics
}

// Recorder is the narrow seam metrics.Collector satisfies, kept here so
// server never imports metrics directly.
type Recorder interface {
	ObserveRequest(pluginID wire.PluginID, cacheHit bool, failed bool, dur time.Duration)
	SetHandleCount(n int)
}

// Server accepts connections and drives each through the session cycle.
type Server struct {
	cfg Config
}

// New returns a Server ready to Serve.
func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails
// permanently. Each connection runs in its own goroutine (spec.md §5:
// "connection-per-goroutine worker pool server-side").
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.serveConn(ctx, nc)
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	c := &conn{
		srv:   s,
		nc:    nc,
		state: session.Closed,
		errs:  uerrors.NewStack(),
		id:    handle.NewSessionID(),
	}
	defer nc.Close()

	log := ulog.WithSession(c.id)
	log.Info().Msgf("server: connection from %s", nc.RemoteAddr())

	if err := c.handshake(); err != nil {
		log.Warn().Msgf("server: handshake failed: %v", err)
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			return
		}
		more, err := c.requestCycle(ctx)
		if err != nil {
			log.Warn().Msgf("server: request cycle: %v", err)
			return
		}
		if !more {
			return
		}
	}
}
