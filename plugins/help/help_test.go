package help

import (
	"context"
	"testing"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/wire"
	"github.com/stretchr/testify/require"
)

func TestPingReturnsPong(t *testing.T) {
	b := New()
	io := &plugin.PluginIO{Out: &wire.DataBlock{}}
	err := b.Invoke(context.Background(), &wire.RequestBlock{Function: "ping"}, io)
	require.NoError(t, err)
	require.Equal(t, "pong", string(io.Out.Data))
	require.Equal(t, wire.TypeString, io.Out.DataType)
}

func TestUnknownFunctionErrors(t *testing.T) {
	b := New()
	io := &plugin.PluginIO{Out: &wire.DataBlock{}}
	err := b.Invoke(context.Background(), &wire.RequestBlock{Function: "bogus"}, io)
	require.Error(t, err)
}
