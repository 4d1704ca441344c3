package env

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	for _, name := range []string{Names.Host, Names.Port, Names.Proxy, Names.PrivateFlags} {
		os.Unsetenv(name)
	}
	e := Init(7)
	require.Equal(t, DefaultHost, e.DefaultHost)
	require.Equal(t, DefaultPort, e.DefaultPort)
	require.False(t, e.HasProxy())
	require.Equal(t, DefaultAPIDelim, e.APIDelim)
	require.Equal(t, 7, e.ClientVersion)
}

func TestInitOverrides(t *testing.T) {
	t.Setenv(Names.Host, "uda.example.org")
	t.Setenv(Names.Port, "443")
	t.Setenv(Names.Proxy, "proxy.example.org:56565")
	t.Setenv(Names.PrivateFlags, "12")

	e := Init(7)
	require.Equal(t, "uda.example.org", e.DefaultHost)
	require.Equal(t, 443, e.DefaultPort)
	require.True(t, e.HasProxy())
	require.EqualValues(t, 12, e.PrivateFlags)
}
