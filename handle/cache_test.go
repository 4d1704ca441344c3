package handle

import (
	"errors"
	"sync"
	"testing"

	"github.com/nvidia-uda/uda/wire"
	"github.com/stretchr/testify/require"
)

func TestComputeIsStableAndDiscriminating(t *testing.T) {
	a := &wire.RequestBlock{PluginID: wire.PluginGenericCatalog, Archive: "mast", Signal: "ip", ExpNumber: 1}
	b := &wire.RequestBlock{PluginID: wire.PluginGenericCatalog, Archive: "mast", Signal: "ip", ExpNumber: 1}
	c := &wire.RequestBlock{PluginID: wire.PluginGenericCatalog, Archive: "mast", Signal: "ip", ExpNumber: 2}

	require.Equal(t, Compute(a), Compute(b))
	require.NotEqual(t, Compute(a), Compute(c))
}

func TestComputeIgnoresVolatileFields(t *testing.T) {
	a := &wire.RequestBlock{Signal: "ip", APIDelim: "::"}
	b := &wire.RequestBlock{Signal: "ip", APIDelim: "->"}
	require.Equal(t, Compute(a), Compute(b))
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)
	fp := Fingerprint(42)
	_, ok := c.Get(fp)
	require.False(t, ok)

	c.Put(fp, []byte("payload"))
	v, ok := c.Get(fp)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), v)
}

func TestCacheMaterializeSuppressesDuplicateCalls(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	var calls int
	var mu sync.Mutex
	fn := func() ([]byte, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return []byte("result"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Materialize(Fingerprint(1), fn)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Equal(t, []byte("result"), r)
	}
	require.Equal(t, 1, calls)
}

func TestCacheMaterializePropagatesError(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)
	_, err = c.Materialize(Fingerprint(7), func() ([]byte, error) {
		return nil, errors.New("backend unavailable")
	})
	require.Error(t, err)
	_, ok := c.Get(Fingerprint(7))
	require.False(t, ok, "failed materialisation must not populate the cache")
}
