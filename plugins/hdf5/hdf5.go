// Package hdf5 is a boundary-contract stand-in for the real HDF5 backend
// (see plugins/netcdf for the same rationale: Non-goals exclude a real
// decoder, only the PluginInterface boundary is exercised here).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package hdf5

import (
	"context"
	"fmt"
	"os"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const Prefix = "HDF5"

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Class() plugin.Class { return plugin.ClassFile }
func (*Backend) Format() string      { return "hdf5" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	if req.Path == "" {
		return fmt.Errorf("hdf5: empty path")
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return fmt.Errorf("hdf5: %w", err)
	}
	io.Out.OpaqueType = wire.OpaqueXDRFile
	io.Out.DataLabel = req.Signal
	io.Out.DataN = len(data)
	io.Out.Data = data
	return nil
}
