// Package xmlmeta implements the metadata plugin that returns the
// static instrument/experiment description document used by scenario
// "geometry" requests (spec.md §4.4 "xml" stand-in).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xmlmeta

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
)

const Prefix = "XML"

// Backend validates that its input is well-formed XML (using the
// standard library decoder; no richer XML-to-struct mapper is needed
// here) and passes the raw document through as an opaque block.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Class() plugin.Class { return plugin.ClassFile }
func (*Backend) Format() string      { return "xml" }

func (b *Backend) Invoke(_ context.Context, req *wire.RequestBlock, io *plugin.PluginIO) error {
	if req.Path == "" {
		return fmt.Errorf("xmlmeta: empty path")
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return fmt.Errorf("xmlmeta: %w", err)
	}
	var probe struct{}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("xmlmeta: malformed document: %w", err)
	}
	io.Out.OpaqueType = wire.OpaqueXMLDocument
	io.Out.DataLabel = req.Signal
	io.Out.DataN = len(data)
	io.Out.Data = data
	return nil
}
