// Command udad is the UDA server daemon: it owns the TCP listener, the
// plugin registry, and (optionally) the metrics HTTP endpoint. Grounded
// on cmd/authn/main.go's daemon shape: flag-parsed config path, an
// installed signal handler, a "version" argument short-circuit before
// anything else runs.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nvidia-uda/uda/auth"
	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/forward"
	"github.com/nvidia-uda/uda/metrics"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/plugins/geom"
	"github.com/nvidia-uda/uda/plugins/hdf5"
	"github.com/nvidia-uda/uda/plugins/help"
	"github.com/nvidia-uda/uda/plugins/mds"
	"github.com/nvidia-uda/uda/plugins/netcdf"
	"github.com/nvidia-uda/uda/plugins/xmlmeta"
	"github.com/nvidia-uda/uda/server"
	"github.com/nvidia-uda/uda/ulog"
)

var (
	build     string
	buildtime string

	configPath string
)

func init() {
	flag.StringVar(&configPath, "config", "", "udad configuration YAML file")
}

func printVer() {
	fmt.Printf("udad version %s (build %s)\n", build, buildtime)
}

func installSignalHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		os.Exit(0)
	}
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}

	ulog.Init(os.Stderr, zerolog.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	installSignalHandler(cancel)

	registry := plugin.NewRegistry()
	mustRegister(registry, "NETCDF", netcdf.New(), []string{"nc", "cdf"}, "")
	mustRegister(registry, "HDF5", hdf5.New(), []string{"h5", "hdf5"}, "")
	mustRegister(registry, "XML", xmlmeta.New(), []string{"xml"}, "")
	mustRegister(registry, "MDS", mds.New(), nil, "")
	mustRegister(registry, "GEOM", geom.New(cfg.GeomDataRoot), nil, "")
	mustRegister(registry, "HELP", help.New(), nil, "")
	for _, d := range cfg.Devices {
		if err := registry.RegisterDevice(d.Name, d.Protocol, d.Host, d.Port); err != nil {
			ulog.Errorf("udad: register device %s: %v", d.Name, err)
			os.Exit(1)
		}
	}

	environment := env.Init(1)
	if cfg.Proxy != "" {
		environment.Proxy = cfg.Proxy
	}

	var validator *auth.Validator
	if cfg.Auth.Enabled {
		validator = auth.NewValidator([]byte(cfg.Auth.Secret))
	}

	collector := metrics.New(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	srv := server.New(server.Config{
		Environment: environment,
		Registry:    registry,
		Auth:        validator,
		Forwarder:   forward.New(environment, env.DefaultPort),
		Recorder:    collector,
	})

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		ulog.Errorf("udad: listen %s: %v", cfg.Listen, err)
		os.Exit(1)
	}
	ulog.Infof("udad: listening on %s", cfg.Listen)

	if err := srv.Serve(ctx, ln); err != nil {
		ulog.Errorf("udad: serve: %v", err)
		os.Exit(1)
	}
}

func mustRegister(r *plugin.Registry, prefix string, backend plugin.Backend, extensions []string, deviceName string) {
	if err := r.Register(prefix, backend, extensions, deviceName); err != nil {
		ulog.Errorf("udad: register %s: %v", prefix, err)
		os.Exit(1)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		ulog.Errorf("udad: metrics server: %v", err)
	}
}
