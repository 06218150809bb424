package world

import (
	"sort"
	"sync"
	"sync/atomic"

	"voxelcore/internal/bitfield"
)

// ChunkSize is the edge length of a chunk in blocks.
const ChunkSize = bitfield.Size

// ChunkCoord is a chunk position in chunk units.
type ChunkCoord struct {
	X, Y, Z int
}

// Add returns c offset by (dx,dy,dz).
func (c ChunkCoord) Add(dx, dy, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Neighbor returns the chunk adjacent to c across face.
func (c ChunkCoord) Neighbor(face BlockFace) ChunkCoord {
	d := 1
	if !face.Forward() {
		d = -1
	}
	switch face.Axis() {
	case 0:
		return c.Add(d, 0, 0)
	case 1:
		return c.Add(0, d, 0)
	}
	return c.Add(0, 0, d)
}

// Origin returns the world block position of the chunk's minimum corner.
func (c ChunkCoord) Origin() (x, y, z int) {
	return c.X * ChunkSize, c.Y * ChunkSize, c.Z * ChunkSize
}

// ChunkOf returns the chunk containing world block (x,y,z) and the local
// coordinates inside it.
func ChunkOf(x, y, z int) (ChunkCoord, int, int, int) {
	c := ChunkCoord{X: FloorDiv(x, ChunkSize), Y: FloorDiv(y, ChunkSize), Z: FloorDiv(z, ChunkSize)}
	return c, mod(x, ChunkSize), mod(y, ChunkSize), mod(z, ChunkSize)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Layer is the occupancy of one block type inside a chunk.
type Layer struct {
	Type  BlockType
	Def   *BlockDefinition
	Field *bitfield.Field
}

// Chunk stores one occupancy field per block type present, plus the union of
// opaque types, which meshing uses for face culling.
type Chunk struct {
	Coord ChunkCoord

	mu     sync.RWMutex
	cache  *bitfield.Cache
	layers map[BlockType]*bitfield.Field
	solid  *bitfield.Field

	dirty atomic.Bool
	level atomic.Int32
}

// NewChunk creates an empty chunk at the specified chunk coordinates.
// Derived bitfields use cache; nil selects the shared default cache.
func NewChunk(coord ChunkCoord, cache *bitfield.Cache) *Chunk {
	if cache == nil {
		cache = bitfield.Default()
	}
	c := &Chunk{
		Coord:  coord,
		cache:  cache,
		layers: make(map[BlockType]*bitfield.Field),
		solid:  bitfield.New(cache),
	}
	c.dirty.Store(true)
	c.level.Store(int32(bitfield.LevelNone))
	return c
}

func inChunk(x, y, z int) bool {
	return uint(x) < ChunkSize && uint(y) < ChunkSize && uint(z) < ChunkSize
}

// GetBlock returns the block type at the specified local coordinates
func (c *Chunk) GetBlock(x, y, z int) BlockType {
	if !inChunk(x, y, z) {
		return BlockTypeAir
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for t, f := range c.layers {
		if f.Get(x, y, z) {
			return t
		}
	}
	return BlockTypeAir
}

// SetBlock sets the block type at the specified local coordinates. It
// reports whether anything changed.
func (c *Chunk) SetBlock(x, y, z int, t BlockType) bool {
	if !inChunk(x, y, z) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for old, f := range c.layers {
		if !f.Get(x, y, z) {
			continue
		}
		if old == t {
			return false
		}
		f.Reset(x, y, z)
		if f.Empty() {
			delete(c.layers, old)
		}
		break
	}
	def := Block(t)
	if t != BlockTypeAir {
		c.layerLocked(t).Set(x, y, z)
	}
	if def.Opaque() {
		c.solid.Set(x, y, z)
	} else {
		c.solid.Reset(x, y, z)
	}
	c.dirty.Store(true)
	return true
}

// Fill replaces the whole chunk with t.
func (c *Chunk) Fill(t BlockType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers = make(map[BlockType]*bitfield.Field)
	c.solid.Fill(Block(t).Opaque())
	if t != BlockTypeAir {
		c.layerLocked(t).Fill(true)
	}
	c.dirty.Store(true)
}

// SetLayer installs a complete occupancy for t, replacing cells of other
// types where they overlap.
func (c *Chunk) SetLayer(t BlockType, rows *[bitfield.Rows]uint64) {
	if t == BlockTypeAir {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var solid [bitfield.Rows]uint64
	var other [bitfield.Rows]uint64
	for ot, f := range c.layers {
		if ot == t {
			continue
		}
		f.Snapshot(&other)
		for i := range other {
			other[i] &^= rows[i]
		}
		f.Load(&other)
		if f.Empty() {
			delete(c.layers, ot)
			continue
		}
		if Block(ot).Opaque() {
			for i := range other {
				solid[i] |= other[i]
			}
		}
	}
	c.layerLocked(t).Load(rows)
	if Block(t).Opaque() {
		for i := range solid {
			solid[i] |= rows[i]
		}
	}
	c.solid.Load(&solid)
	c.dirty.Store(true)
}

func (c *Chunk) layerLocked(t BlockType) *bitfield.Field {
	f, ok := c.layers[t]
	if !ok {
		f = bitfield.New(c.cache)
		c.layers[t] = f
	}
	return f
}

// Layers returns the occupancy of every block type present, ordered by type.
func (c *Chunk) Layers() []Layer {
	c.mu.RLock()
	out := make([]Layer, 0, len(c.layers))
	for t, f := range c.layers {
		out = append(out, Layer{Type: t, Def: Block(t), Field: f})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Layer returns the occupancy of t, or nil if the chunk holds none.
func (c *Chunk) Layer(t BlockType) *bitfield.Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers[t]
}

// Solid returns the union of opaque block types.
func (c *Chunk) Solid() *bitfield.Field { return c.solid }

// Empty reports whether the chunk holds only air.
func (c *Chunk) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers) == 0
}

// IsDirty returns whether the chunk has been modified since it was last meshed.
func (c *Chunk) IsDirty() bool { return c.dirty.Load() }

// MarkDirty flags the chunk for re-meshing.
func (c *Chunk) MarkDirty() { c.dirty.Store(true) }

// SetClean records that the chunk was meshed at level.
func (c *Chunk) SetClean(level bitfield.Level) {
	c.level.Store(int32(level))
	c.dirty.Store(false)
}

// MeshedLevel returns the simplification level of the last mesh.
func (c *Chunk) MeshedLevel() bitfield.Level { return bitfield.Level(c.level.Load()) }
