package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/handle"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/plugins/help"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/wire"
)

func TestGetServesCacheHitWithoutConnecting(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register("HELP", help.New(), nil, ""))

	environment := env.Init(1)
	c := New(environment, reg, WithCache(8))

	rb, err := request.Parse("", "HELP::ping()", environment, reg)
	require.NoError(t, err)

	fp := handle.Compute(rb)
	db := &wire.DataBlock{DataLabel: "pong", Data: []byte("pong"), DataType: wire.TypeString}
	c.cache.Put(fp, wire.EncodeDataBlock(db, wire.CurrentVersion))

	h, err := c.Get(context.Background(), "", "HELP::ping()")
	require.NoError(t, err)
	require.Equal(t, "pong", string(h.Data()))
	require.False(t, c.connected)
}

func TestFreeInvalidatesHandle(t *testing.T) {
	environment := env.Init(1)
	c := New(environment, nil)

	db := &wire.DataBlock{DataLabel: "x"}
	h := c.alloc(db)
	require.True(t, h.Valid())

	require.NoError(t, c.Free(h))
	require.False(t, h.Valid())
}

func TestSetPropertyMergedIntoRequest(t *testing.T) {
	environment := env.Init(1)
	c := New(environment, nil)
	c.SetProperty("foo", "bar")

	rb := &wire.RequestBlock{}
	c.applyProperties(rb)
	require.Len(t, rb.NameValueList.Pairs, 1)
	require.Equal(t, "foo", rb.NameValueList.Pairs[0].Name)
	require.Equal(t, "bar", rb.NameValueList.Pairs[0].Value)
}
