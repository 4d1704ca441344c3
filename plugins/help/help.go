// Package help implements the trivial FUNCTION-class plugin used for
// server liveness checks and self-description, grounded on the
// original distribution's idamServerHelp plugin.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const (
	Prefix  = "HELP"
	Version = 1
)

// Backend answers "ping()" and "version()" calls without touching any
// storage backend; it exists so a client can confirm end-to-end
// connectivity before issuing a real data request.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Class() plugin.Class { return plugin.ClassFunction }
func (*Backend) Format() string      { return "help" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	switch strings.ToLower(req.Function) {
	case "ping":
		io.Out.DataLabel = "pong"
		io.Out.Data = []byte("pong")
		io.Out.DataN = len(io.Out.Data)
		io.Out.DataType = wire.TypeString
	case "version":
		v := fmt.Sprintf("help plugin v%d", Version)
		io.Out.DataLabel = "version"
		io.Out.Data = []byte(v)
		io.Out.DataN = len(v)
		io.Out.DataType = wire.TypeString
	default:
		return fmt.Errorf("help: unknown function %q", req.Function)
	}
	return nil
}
