// Package plugin implements the plugin registry and dispatcher (C4): the
// format/class lookup request consults, and the Backend invocation path a
// matched request is handed off to.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package plugin

import (
	"context"

	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/structs"
	"github.com/nvidia-uda/uda/wire"
)

// Class is an alias of request.Class, so plugin and request share one
// class vocabulary.
type Class = request.Class

const (
	ClassUnknown  = request.ClassUnknown
	ClassFile     = request.ClassFile
	ClassServer   = request.ClassServer
	ClassFunction = request.ClassFunction
	ClassDevice   = request.ClassDevice
	ClassMDS      = request.ClassMDS
	ClassOther    = request.ClassOther
)

// PluginIO is what the dispatcher hands to a Backend's Invoke: the
// resolved request plus the sink the backend fills in.
type PluginIO struct {
	Request    *wire.RequestBlock
	Source     wire.DataSource
	SignalDesc wire.SignalDesc
	Out        *wire.DataBlock
	Types      *structs.UserDefinedTypeList
	Log        *structs.MallocLog
}

// Backend is implemented by every concrete plugin (netcdf, hdf5, mds,
// peer, xml, geom, help, ...).
type Backend interface {
	Class() Class
	Format() string
	Invoke(ctx context.Context, req *wire.RequestBlock, io *PluginIO) error
}

// entry pairs a request.Descriptor with its backend; Registry.LookupPrefix,
// LookupExtension and LookupDevice return the descriptor half.
type entry struct {
	desc    request.Descriptor
	backend Backend
}
