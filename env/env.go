// Package env parses the process environment into an immutable Environment
// value. Nothing in this package is mutated after Init returns.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package env

import (
	"os"
	"strconv"
	"strings"
)

// Names of the recognised environment variables (see docs/environment-vars.md
// in the original UDA distribution).
var Names = struct {
	Host          string
	Port          string
	Proxy         string
	PrivateFlags  string
	ClientDOI     string
	OSType        string
	DumpNetCDF    string
	DumpIDA       string
	GeomDataRoot  string
}{
	Host:         "UDA_HOST",
	Port:         "UDA_PORT",
	Proxy:        "UDA_PROXY",
	PrivateFlags: "UDA_PRIVATEFLAGS",
	ClientDOI:    "UDA_CLIENT_DOI",
	OSType:       "OSTYPE",
	DumpNetCDF:   "UDA_DUMP_NETCDF",
	DumpIDA:      "UDA_DUMP_IDA",
	GeomDataRoot: "MAST_GEOM_DATA",
}

const (
	DefaultAPIDelim  = "::"
	DefaultHost      = "localhost"
	DefaultPort      = 56565
	DefaultTimeout   = 30 // seconds
	DefaultArchive   = ""
	DefaultDevice    = ""
	DefaultFormat    = ""
)

// Environment is the process-wide, read-only configuration surface handed to
// the request parser (C3) and the session state machine (C2). It is the one
// genuinely process-wide value in the system (see SPEC_FULL.md §11, "Global
// singletons").
type Environment struct {
	DefaultHost    string
	DefaultPort    int
	Proxy          string
	DefaultDevice  string
	DefaultArchive string
	DefaultFormat  string
	APIDelim       string
	ClientFlags    uint32
	PrivateFlags   uint32
	TimeoutSeconds int
	EnableCache    bool
	ClientDOI      string
	OSName         string
	ClientVersion  int
	DumpNetCDFBin  string
	DumpIDABin     string
	GeomDataRoot   string
}

// Init reads the process environment exactly once and returns an immutable
// Environment. Callers are expected to stash the result in their own
// ClientContext rather than re-reading os.Environ later.
func Init(clientVersion int) *Environment {
	e := &Environment{
		DefaultHost:    DefaultHost,
		DefaultPort:    DefaultPort,
		APIDelim:       DefaultAPIDelim,
		TimeoutSeconds: DefaultTimeout,
		ClientVersion:  clientVersion,
		EnableCache:    true,
	}
	if v := os.Getenv(Names.Host); v != "" {
		e.DefaultHost = v
	}
	if v := os.Getenv(Names.Port); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			e.DefaultPort = p
		}
	}
	if v := os.Getenv(Names.Proxy); v != "" {
		e.Proxy = v
	}
	if v := os.Getenv(Names.PrivateFlags); v != "" {
		if f, err := strconv.ParseUint(v, 10, 32); err == nil {
			e.PrivateFlags = uint32(f)
		}
	}
	if v := os.Getenv(Names.ClientDOI); v != "" {
		e.ClientDOI = v
	}
	if v := os.Getenv(Names.OSType); v != "" {
		e.OSName = v
	} else {
		e.OSName = strings.TrimSpace(os.Getenv("GOOS"))
	}
	e.DumpNetCDFBin = os.Getenv(Names.DumpNetCDF)
	e.DumpIDABin = os.Getenv(Names.DumpIDA)
	e.GeomDataRoot = os.Getenv(Names.GeomDataRoot)
	return e
}

// HasProxy reports whether a forwarding proxy target is configured (spec.md
// §4.3 step 2: "Proxy short-circuit").
func (e *Environment) HasProxy() bool { return e != nil && e.Proxy != "" }
