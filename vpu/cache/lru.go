// Package cache provides the bounded LRU used to memoise estimator
// outputs per descriptor. Keys are the descriptor contents: a 64-bit
// content hash locates the slot and the stored vector is compared
// element-wise on lookup, so hash collisions can cost a recompute but
// never a wrong answer.
//
// The cache is not safe for concurrent mutation; the owning cost model
// serialises access.
package cache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	descriptor []float32
	value      float32
}

// FixedCache maps descriptor → estimator output with LRU eviction at a
// fixed capacity. A zero capacity disables the cache entirely.
type FixedCache struct {
	inner *lru.Cache[uint64, entry]
}

// DefaultCapacity matches the size used by the shipping cost models:
// large enough for a compilation session's working set, small enough to
// stay in L2-resident territory.
const DefaultCapacity = 16384

// New builds a cache holding up to capacity entries.
func New(capacity int) *FixedCache {
	if capacity <= 0 {
		return &FixedCache{}
	}
	inner, err := lru.New[uint64, entry](capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes, excluded above.
		panic(err)
	}
	return &FixedCache{inner: inner}
}

// hashDescriptor folds the exact bit pattern of the vector; descriptors
// are quantized by construction so bit equality is value equality.
func hashDescriptor(descriptor []float32) uint64 {
	h := xxhash.New()
	var buf [4]byte
	for _, v := range descriptor {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}

func sameDescriptor(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

// Get returns the cached value for a descriptor. A hit promotes the
// entry to most-recently-used; a miss leaves the cache unchanged.
func (c *FixedCache) Get(descriptor []float32) (float32, bool) {
	if c.inner == nil {
		return 0, false
	}
	e, ok := c.inner.Get(hashDescriptor(descriptor))
	if !ok || !sameDescriptor(e.descriptor, descriptor) {
		return 0, false
	}
	return e.value, true
}

// Add inserts a descriptor→value pair, evicting the least-recently-used
// entry when full. The descriptor is copied; callers may reuse theirs.
func (c *FixedCache) Add(descriptor []float32, value float32) {
	if c.inner == nil {
		return
	}
	stored := make([]float32, len(descriptor))
	copy(stored, descriptor)
	c.inner.Add(hashDescriptor(descriptor), entry{descriptor: stored, value: value})
}

// Len is the current entry count.
func (c *FixedCache) Len() int {
	if c.inner == nil {
		return 0
	}
	return c.inner.Len()
}

// Purge empties the cache. Observable results never change: entries are
// recomputed on demand.
func (c *FixedCache) Purge() {
	if c.inner != nil {
		c.inner.Purge()
	}
}
