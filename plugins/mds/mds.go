// Package mds is a boundary-contract stand-in for the real MDSplus
// backend: spec.md's Non-goals exclude shipping the MDSplus client
// library, so this backend validates the server/tree/shot triple
// request.Parse extracted and returns a synthetic signal record.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mds

import (
	"context"
	"fmt"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const Prefix = "MDS"

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Class() plugin.Class { return plugin.ClassMDS }
func (*Backend) Format() string      { return "mds" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	if req.Server == "" {
		return fmt.Errorf("mds: no server resolved from source")
	}
	io.Out.DataLabel = req.Signal
	io.Out.DataDesc = fmt.Sprintf("%s/%s/%d", req.Server, req.File, req.ExpNumber)
	io.SignalDesc = wire.SignalDesc{SignalName: req.Signal, Description: io.Out.DataDesc}
	return nil
}
