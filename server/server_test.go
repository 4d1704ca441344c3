package server_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-uda/uda/client"
	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/plugins/help"
	"github.com/nvidia-uda/uda/server"
)

func startServer(t *testing.T, reg *plugin.Registry) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(server.Config{
		Environment: env.Init(1),
		Registry:    reg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	return ln.Addr().String(), func() {
		cancel()
		<-done
	}
}

func TestEndToEndPing(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register("HELP", help.New(), nil, ""))

	addr, stop := startServer(t, reg)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	environment := env.Init(1)
	environment.DefaultHost = host
	environment.DefaultPort = port

	c := client.New(environment, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := c.Get(ctx, "", "HELP::ping()")
	require.NoError(t, err)
	require.NoError(t, c.ErrorOf(h))
	require.Equal(t, "pong", string(h.Data()))
	require.Equal(t, "pong", h.Label())

	require.NoError(t, c.Free(h))
}

func TestEndToEndUnknownFunctionFails(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register("HELP", help.New(), nil, ""))

	addr, stop := startServer(t, reg)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	environment := env.Init(1)
	environment.DefaultHost = host
	environment.DefaultPort = port

	c := client.New(environment, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := c.Get(ctx, "", "HELP::bogus()")
	require.Error(t, err)
	require.Error(t, c.ErrorOf(h))
}
