package bitfield

import (
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"
)

// Field dimensions. A row (x,y) holds 64 bits along z; bit for z is 1<<(63-z).
const (
	Size = 64
	Rows = Size * Size
)

// Level is a simplification level. Level k merges blocks of (2<<k)^3 cells.
type Level int

const (
	LevelNone Level = iota - 1
	LevelTo32
	LevelTo16
	LevelTo8
	LevelTo4
	LevelTo2
	LevelTo1
)

const levelCount = int(LevelTo1) + 1

// ErrInvalidLevel is returned for LevelNone or a level outside LevelTo32..LevelTo1.
var ErrInvalidLevel = errors.New("bitfield: invalid simplification level")

var nextID atomic.Uint64

func newID() uint64 { return nextID.Add(1) }

// Field is a 64x64x64 occupancy mask.
type Field struct {
	mu   sync.RWMutex
	id   uint64
	rows [Rows]uint64

	// derived state, guarded by dmu. Lock order is mu then dmu.
	dmu        sync.Mutex
	cache      *Cache
	transposed Handle
	simplified [levelCount]Handle
}

// New returns an empty field whose derived fields live in cache.
// A nil cache uses the package default.
func New(cache *Cache) *Field {
	if cache == nil {
		cache = Default()
	}
	return &Field{id: newID(), cache: cache}
}

// ID identifies this logical field. Recycled cache slots get a fresh ID.
func (f *Field) ID() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.id
}

func index(x, y int) int { return x + y*Size }

func inBounds(x, y, z int) bool {
	return uint(x) < Size && uint(y) < Size && uint(z) < Size
}

// Get reports whether (x,y,z) is set. Out of range coordinates read as false.
func (f *Field) Get(x, y, z int) bool {
	if !inBounds(x, y, z) {
		return false
	}
	f.mu.RLock()
	v := f.rows[index(x, y)]&(1<<(63-uint(z))) != 0
	f.mu.RUnlock()
	return v
}

// Set marks (x,y,z). It returns false when the coordinate is out of range.
func (f *Field) Set(x, y, z int) bool {
	if !inBounds(x, y, z) {
		return false
	}
	f.mu.Lock()
	f.rows[index(x, y)] |= 1 << (63 - uint(z))
	f.invalidateLocked()
	f.mu.Unlock()
	return true
}

// Reset clears (x,y,z). It returns false when the coordinate is out of range.
func (f *Field) Reset(x, y, z int) bool {
	if !inBounds(x, y, z) {
		return false
	}
	f.mu.Lock()
	f.rows[index(x, y)] &^= 1 << (63 - uint(z))
	f.invalidateLocked()
	f.mu.Unlock()
	return true
}

// Row returns the z-row at (x,y), or 0 when out of range.
func (f *Field) Row(x, y int) uint64 {
	if uint(x) >= Size || uint(y) >= Size {
		return 0
	}
	f.mu.RLock()
	v := f.rows[index(x, y)]
	f.mu.RUnlock()
	return v
}

// SetRow replaces the z-row at (x,y).
func (f *Field) SetRow(x, y int, v uint64) bool {
	if uint(x) >= Size || uint(y) >= Size {
		return false
	}
	f.mu.Lock()
	f.rows[index(x, y)] = v
	f.invalidateLocked()
	f.mu.Unlock()
	return true
}

// Fill sets or clears every cell.
func (f *Field) Fill(v bool) {
	var w uint64
	if v {
		w = ^uint64(0)
	}
	f.mu.Lock()
	for i := range f.rows {
		f.rows[i] = w
	}
	f.invalidateLocked()
	f.mu.Unlock()
}

// Clear is Fill(false).
func (f *Field) Clear() { f.Fill(false) }

// Load replaces all rows.
func (f *Field) Load(rows *[Rows]uint64) {
	f.mu.Lock()
	f.rows = *rows
	f.invalidateLocked()
	f.mu.Unlock()
}

// Snapshot copies all rows into dst.
func (f *Field) Snapshot(dst *[Rows]uint64) {
	f.mu.RLock()
	*dst = f.rows
	f.mu.RUnlock()
}

// Count returns the number of set cells.
func (f *Field) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, r := range f.rows {
		n += bits.OnesCount64(r)
	}
	return n
}

// Empty reports whether no cell is set.
func (f *Field) Empty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.rows {
		if r != 0 {
			return false
		}
	}
	return true
}

// Equal compares the contents of two fields.
func (f *Field) Equal(o *Field) bool {
	if f == o {
		return true
	}
	var a, b [Rows]uint64
	f.Snapshot(&a)
	o.Snapshot(&b)
	return a == b
}

// invalidateLocked drops every derived field. Callers hold mu exclusively.
func (f *Field) invalidateLocked() {
	f.dmu.Lock()
	f.cache.Release(f.transposed)
	f.transposed = Handle{}
	for i := range f.simplified {
		f.cache.Release(f.simplified[i])
		f.simplified[i] = Handle{}
	}
	f.dmu.Unlock()
}

// Transposed returns a field with x and z swapped, so that
// T.Get(z,y,x) == f.Get(x,y,z). The result is a cache slot: it stays valid
// until f is written or the slot is recycled.
func (f *Field) Transposed() *Field {
	f.mu.RLock()
	defer f.mu.RUnlock()
	f.dmu.Lock()
	defer f.dmu.Unlock()

	if t, err := f.cache.Get(f.transposed, f.id); err == nil {
		return t
	}
	h, t := f.cache.Next(f.id, f)
	transpose(&f.rows, &t.rows)
	f.transposed = h
	return t
}

func transpose(src, dst *[Rows]uint64) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			row := src[index(x, y)]
			bit := uint64(1) << (63 - uint(x))
			for row != 0 {
				z := bits.LeadingZeros64(row)
				row &^= 1 << (63 - uint(z))
				dst[index(z, y)] |= bit
			}
		}
	}
}

// Simplified returns the field downsampled to level and expanded back to 64
// cells per axis: every (2<<level)^3 block is all-set if any source cell in it
// is set. The result is a cache slot with the same lifetime as Transposed.
func (f *Field) Simplified(level Level) (*Field, error) {
	if level < LevelTo32 || level > LevelTo1 {
		return nil, ErrInvalidLevel
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	f.dmu.Lock()
	defer f.dmu.Unlock()

	// start from the deepest still-valid cached level below the requested one
	src := f
	start := 0
	for l := int(level); l >= 0; l-- {
		if s, err := f.cache.Get(f.simplified[l], f.id); err == nil {
			if l == int(level) {
				return s, nil
			}
			src = s
			start = l + 1
			break
		}
	}

	for l := start; l <= int(level); l++ {
		// src may itself be a slot; it must survive until reduced
		h, s := f.cache.Next(f.id, f, src)
		reduce(&src.rows, &s.rows, 1<<uint(l))
		f.simplified[l] = h
		src = s
	}
	return src, nil
}

// SimplifiedOrSelf is Simplified with LevelNone mapping to f itself.
func (f *Field) SimplifiedOrSelf(level Level) *Field {
	if level == LevelNone {
		return f
	}
	s, err := f.Simplified(level)
	if err != nil {
		return f
	}
	return s
}

// reduce OR-merges blocks of 2*block cells from src (already uniform over
// block-sized cells) into dst.
func reduce(src, dst *[Rows]uint64, block int) {
	group := block * 2
	for gy := 0; gy < Size; gy += group {
		for gx := 0; gx < Size; gx += group {
			var acc uint64
			for y := gy; y < gy+group; y += block {
				for x := gx; x < gx+group; x += block {
					acc |= src[index(x, y)]
				}
			}
			acc = spread(acc, group)
			for y := gy; y < gy+group; y++ {
				for x := gx; x < gx+group; x++ {
					dst[index(x, y)] = acc
				}
			}
		}
	}
}

// spread sets every group-wide bit run of v that has any bit set.
func spread(v uint64, group int) uint64 {
	if group >= 64 {
		if v != 0 {
			return ^uint64(0)
		}
		return 0
	}
	run := uint64(1)<<uint(group) - 1
	var out uint64
	for i := 0; i < 64; i += group {
		m := run << uint(i)
		if v&m != 0 {
			out |= m
		}
	}
	return out
}
