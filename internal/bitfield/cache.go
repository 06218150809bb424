package bitfield

import (
	"errors"
	"slices"
	"sync"
)

// DefaultCacheSlots is the ring size used by Default.
const DefaultCacheSlots = 2048

// ErrStale is returned when a handle's slot has been recycled or released.
var ErrStale = errors.New("bitfield: stale cache handle")

// Handle refers to a cache slot at a specific generation.
type Handle struct {
	slot int
	gen  uint64
}

// Valid reports whether the handle was ever issued.
func (h Handle) Valid() bool { return h.gen != 0 }

// Cache is a fixed ring of fields used for derived (transposed, simplified)
// data. Slots are recycled in order; a handle stays valid until its slot is
// handed out again or released.
type Cache struct {
	mu     sync.Mutex
	fields []*Field
	gens   []uint64
	owners []uint64
	next   int
}

// NewCache allocates a ring of n slots.
func NewCache(n int) *Cache {
	if n < 1 {
		n = 1
	}
	c := &Cache{
		fields: make([]*Field, n),
		gens:   make([]uint64, n),
		owners: make([]uint64, n),
	}
	for i := range c.fields {
		c.fields[i] = &Field{cache: c}
	}
	return c
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide cache.
func Default() *Cache {
	defaultOnce.Do(func() { defaultCache = NewCache(DefaultCacheSlots) })
	return defaultCache
}

// Len returns the number of slots.
func (c *Cache) Len() int { return len(c.fields) }

// Next hands out the next slot for owner, zeroed and with a fresh ID.
// Slots that are currently locked or listed in skip are passed over; if
// every slot is busy a detached field with an unusable handle is returned.
func (c *Cache) Next(owner uint64, skip ...*Field) (Handle, *Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for range c.fields {
		slot := c.next
		c.next = (c.next + 1) % len(c.fields)
		f := c.fields[slot]
		if slices.Contains(skip, f) || !f.mu.TryLock() {
			continue
		}
		c.gens[slot]++
		c.owners[slot] = owner
		f.rows = [Rows]uint64{}
		f.id = newID()
		f.mu.Unlock()
		return Handle{slot: slot, gen: c.gens[slot]}, f
	}
	return Handle{}, &Field{id: newID(), cache: c}
}

// Get resolves h for owner. It fails with ErrStale when the slot moved on.
func (c *Cache) Get(h Handle, owner uint64) (*Field, error) {
	if !h.Valid() || h.slot < 0 || h.slot >= len(c.fields) {
		return nil, ErrStale
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[h.slot] != h.gen || c.owners[h.slot] != owner {
		return nil, ErrStale
	}
	return c.fields[h.slot], nil
}

// Release invalidates h if it is still current.
func (c *Cache) Release(h Handle) {
	if !h.Valid() || h.slot < 0 || h.slot >= len(c.fields) {
		return
	}
	c.mu.Lock()
	if c.gens[h.slot] == h.gen {
		c.gens[h.slot]++
		c.owners[h.slot] = 0
	}
	c.mu.Unlock()
}
