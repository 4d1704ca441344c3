package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/plugins/mds"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/wire"
)

func TestRegisterDeviceRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.RegisterDevice("DIII", "MDS", "diii-server", 8000))
	require.Error(t, r.RegisterDevice("DIII", "MDS", "other-server", 9000))
}

func TestRegisterDeviceResolvesThroughRequestParse(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register("MDS", mds.New(), nil, ""))
	require.NoError(t, r.RegisterDevice("DIII", "MDS", "diii-server", 8000))

	environment := env.Init(1)
	environment.DefaultArchive = "mast"

	rb, err := request.Parse(`\ip`, "DIII::mytree/12345", environment, r)
	require.NoError(t, err)
	require.Equal(t, wire.PluginMDS, rb.PluginID)
	require.Equal(t, "diii-server:8000", rb.Server)
	require.Equal(t, "mytree", rb.File)
	require.Equal(t, int64(12345), rb.ExpNumber)
}
