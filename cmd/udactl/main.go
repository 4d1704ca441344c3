// Command udactl is the operator CLI: dry-run a (signal, source) parse
// without touching the network, or ping a server and report whether the
// handshake succeeded. Grounded on cmd/authn/main.go's flag-driven
// single-binary shape; json-iterator gives pretty-printed structured
// output, a deliberately thin diagnostic tool rather than a full
// cluster-administration CLI (see DESIGN.md).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/plugins/geom"
	"github.com/nvidia-uda/uda/plugins/hdf5"
	"github.com/nvidia-uda/uda/plugins/help"
	"github.com/nvidia-uda/uda/plugins/mds"
	"github.com/nvidia-uda/uda/plugins/netcdf"
	"github.com/nvidia-uda/uda/plugins/xmlmeta"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/session"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  udactl parse <signal> <source>")
	fmt.Fprintln(os.Stderr, "  udactl ping <host:port>")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "parse":
		runParse(args[1:])
	case "ping":
		runPing(args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func builtinRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	_ = r.Register("NETCDF", netcdf.New(), []string{"nc", "cdf"}, "")
	_ = r.Register("HDF5", hdf5.New(), []string{"h5", "hdf5"}, "")
	_ = r.Register("XML", xmlmeta.New(), []string{"xml"}, "")
	_ = r.Register("MDS", mds.New(), nil, "")
	_ = r.Register("GEOM", geom.New(""), nil, "")
	_ = r.Register("HELP", help.New(), nil, "")
	return r
}

func runParse(args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	environment := env.Init(1)
	rb, err := request.Parse(args[0], args[1], environment, builtinRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "udactl: parse: %v\n", err)
		os.Exit(1)
	}
	out, err := jsonAPI.MarshalIndent(rb, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "udactl: marshal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func runPing(args []string) {
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}
	host, port := splitHostPort(args[0])

	environment := env.Init(1)
	m := session.NewMachine(environment, session.NewRegistry())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Connect(ctx, host, port); err != nil {
		fmt.Fprintf(os.Stderr, "udactl: ping: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ok: connected to %s:%d\n", host, port)
	_ = m.Close()
}

func splitHostPort(addr string) (string, int) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			var port int
			fmt.Sscanf(addr[i+1:], "%d", &port)
			return addr[:i], port
		}
	}
	return addr, env.DefaultPort
}
