package handle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nvidia-uda/uda/wire"
)

// Fingerprint is the cache key: an xxhash digest of the canonicalised
// RequestBlock, minus volatile fields (APIDelim and PutDataList, which
// don't affect a GET's result).
type Fingerprint uint64

// Cache is the process-wide, GET-only fingerprint-to-serialised-block
// cache (spec.md §4.5 "Optional fingerprint cache"). Eviction is LRU
// (spec.md §9 open question "eviction policy", resolved in DESIGN.md);
// concurrent materialisation of the same fingerprint by more than one
// goroutine is suppressed with singleflight.
type Cache struct {
	lru   *lru.Cache[Fingerprint, []byte]
	group singleflight.Group
}

// NewCache returns a Cache holding up to capacity entries.
func NewCache(capacity int) (*Cache, error) {
	l, err := lru.New[Fingerprint, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("handle: new fingerprint cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Compute derives the fingerprint for a RequestBlock. PutFlag requests
// are never cached (spec.md: "never puts"); callers should check
// rb.PutFlag before consulting the cache.
func Compute(rb *wire.RequestBlock) Fingerprint {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(rb.PluginID)))
	sb.WriteByte('|')
	sb.WriteString(rb.Archive)
	sb.WriteByte('|')
	sb.WriteString(rb.Format)
	sb.WriteByte('|')
	sb.WriteString(rb.File)
	sb.WriteByte('|')
	sb.WriteString(rb.Path)
	sb.WriteByte('|')
	sb.WriteString(rb.Server)
	sb.WriteByte('|')
	sb.WriteString(rb.Function)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(rb.ExpNumber, 10))
	sb.WriteByte('|')
	sb.WriteString(rb.Signal)
	for _, p := range rb.NameValueList.Pairs {
		sb.WriteByte('|')
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
	h := xxhash.New64()
	_, _ = h.Write([]byte(sb.String()))
	return Fingerprint(h.Sum64())
}

// Get returns the cached serialised DataBlock for fp, if present.
func (c *Cache) Get(fp Fingerprint) ([]byte, bool) {
	return c.lru.Get(fp)
}

// Put records the serialised DataBlock for fp, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Put(fp Fingerprint, serialized []byte) {
	c.lru.Add(fp, serialized)
}

// Materialize runs fn at most once per fingerprint even if called
// concurrently from multiple goroutines for the same fp, so two
// simultaneous cache misses for the same request don't both hit the
// backend.
func (c *Cache) Materialize(fp Fingerprint, fn func() ([]byte, error)) ([]byte, error) {
	key := strconv.FormatUint(uint64(fp), 16)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.Get(fp); ok {
			return cached, nil
		}
		serialized, err := fn()
		if err != nil {
			return nil, err
		}
		c.Put(fp, serialized)
		return serialized, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
