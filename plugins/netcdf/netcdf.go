// Package netcdf is a boundary-contract stand-in for the real NetCDF
// backend: spec.md's Non-goals exclude shipping an actual NetCDF reader,
// so this backend only proves out the PluginInterface wiring by reading
// the named file's raw bytes into an opaque blob.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package netcdf

import (
	"context"
	"fmt"
	"os"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const Prefix = "NETCDF"

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Class() plugin.Class { return plugin.ClassFile }
func (*Backend) Format() string      { return "netcdf" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	if req.Path == "" {
		return fmt.Errorf("netcdf: empty path")
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return fmt.Errorf("netcdf: %w", err)
	}
	io.Out.OpaqueType = wire.OpaqueXDRFile
	io.Out.DataLabel = req.Signal
	io.Out.DataN = len(data)
	io.Out.Data = data
	return nil
}
