package forward

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		server      string
		defaultPort int
		host        string
		port        int
		wantErr     bool
	}{
		{"", 56565, "", 0, true},
		{"mastdb", 56565, "mastdb", 56565, false},
		{"mastdb:8080", 56565, "mastdb", 8080, false},
		{"mastdb:bogus", 56565, "", 0, true},
	}
	for _, tc := range cases {
		host, port, err := splitHostPort(tc.server, tc.defaultPort)
		if tc.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.host, host)
		require.Equal(t, tc.port, port)
	}
}
