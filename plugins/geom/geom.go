// Package geom implements the machine-geometry plugin: it resolves a
// component name against the GeomDataRoot directory configured by
// MAST_GEOM_DATA (env.Environment.GeomDataRoot) and returns the file's
// bytes as an opaque XML document, the same boundary contract as
// plugins/xmlmeta.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package geom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const Prefix = "GEOM"

type Backend struct {
	Root string
}

func New(root string) *Backend { return &Backend{Root: root} }

func (*Backend) Class() plugin.Class { return plugin.ClassFile }
func (*Backend) Format() string      { return "geom" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	if b.Root == "" {
		return fmt.Errorf("geom: GeomDataRoot not configured")
	}
	if req.Signal == "" {
		return fmt.Errorf("geom: empty component signal")
	}
	path := filepath.Join(b.Root, req.Signal+".xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("geom: %w", err)
	}
	io.Out.OpaqueType = wire.OpaqueXMLDocument
	io.Out.DataLabel = req.Signal
	io.Out.DataN = len(data)
	io.Out.Data = data
	return nil
}
