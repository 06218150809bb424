package world

import (
	"sync"

	"voxelcore/internal/bitfield"
	"voxelcore/internal/profiling"
)

// ChunkStore manages the storage and retrieval of chunks.
type ChunkStore struct {
	// Map of chunks indexed by their coordinates
	chunks   map[ChunkCoord]*Chunk
	mu       sync.RWMutex
	modCount uint64 // Increases on any chunk add/remove
	cache    *bitfield.Cache

	// Per-column index: (chunkX,chunkZ) -> chunkY -> chunk
	colIndex map[[2]int]map[int]*Chunk
}

// NewChunkStore creates a new chunk store. Chunks it creates share cache.
func NewChunkStore(cache *bitfield.Cache) *ChunkStore {
	if cache == nil {
		cache = bitfield.Default()
	}
	return &ChunkStore{
		chunks:   make(map[ChunkCoord]*Chunk),
		colIndex: make(map[[2]int]map[int]*Chunk),
		cache:    cache,
	}
}

// Cache returns the bitfield cache shared by this store's chunks.
func (cs *ChunkStore) Cache() *bitfield.Cache { return cs.cache }

// GetChunk returns the chunk at coord, or nil.
func (cs *ChunkStore) GetChunk(coord ChunkCoord) *Chunk {
	cs.mu.RLock()
	chunk := cs.chunks[coord]
	cs.mu.RUnlock()
	return chunk
}

// GetOrCreate returns the chunk at coord, creating an empty one if missing.
// created reports whether this call inserted it; only the creator should
// populate the chunk.
func (cs *ChunkStore) GetOrCreate(coord ChunkCoord) (chunk *Chunk, created bool) {
	cs.mu.RLock()
	chunk, exists := cs.chunks[coord]
	cs.mu.RUnlock()
	if exists {
		return chunk, false
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	// Double-check locking: another goroutine might have created it while we were waiting for the lock
	if existing, ok := cs.chunks[coord]; ok {
		return existing, false
	}
	chunk = NewChunk(coord, cs.cache)
	cs.insertLocked(chunk)
	return chunk, true
}

// AddChunk adds a pre-built chunk. It returns the chunk that ends up stored,
// which is the existing one if coord was already present.
func (cs *ChunkStore) AddChunk(chunk *Chunk) *Chunk {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if existing, ok := cs.chunks[chunk.Coord]; ok {
		return existing
	}
	cs.insertLocked(chunk)
	return chunk
}

func (cs *ChunkStore) insertLocked(chunk *Chunk) {
	cs.chunks[chunk.Coord] = chunk
	cs.modCount++
	key := [2]int{chunk.Coord.X, chunk.Coord.Z}
	col := cs.colIndex[key]
	if col == nil {
		col = make(map[int]*Chunk)
		cs.colIndex[key] = col
	}
	col[chunk.Coord.Y] = chunk
}

// HasChunk checks if a chunk exists without creating it.
func (cs *ChunkStore) HasChunk(coord ChunkCoord) bool {
	cs.mu.RLock()
	_, exists := cs.chunks[coord]
	cs.mu.RUnlock()
	return exists
}

// RemoveChunk deletes the chunk at coord and returns it, or nil.
func (cs *ChunkStore) RemoveChunk(coord ChunkCoord) *Chunk {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	chunk, ok := cs.chunks[coord]
	if !ok {
		return nil
	}
	cs.removeLocked(coord)
	return chunk
}

func (cs *ChunkStore) removeLocked(coord ChunkCoord) {
	delete(cs.chunks, coord)
	cs.modCount++
	key := [2]int{coord.X, coord.Z}
	if col, ok := cs.colIndex[key]; ok {
		delete(col, coord.Y)
		if len(col) == 0 {
			delete(cs.colIndex, key)
		}
	}
}

// Column returns every loaded chunk in column (x,z).
func (cs *ChunkStore) Column(x, z int) []*Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	col := cs.colIndex[[2]int{x, z}]
	out := make([]*Chunk, 0, len(col))
	for _, c := range col {
		out = append(out, c)
	}
	return out
}

// Columns returns the (x,z) keys of every loaded column.
func (cs *ChunkStore) Columns() [][2]int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([][2]int, 0, len(cs.colIndex))
	for k := range cs.colIndex {
		out = append(out, k)
	}
	return out
}

// RemoveColumn deletes every chunk in column (x,z) and returns them.
func (cs *ChunkStore) RemoveColumn(x, z int) []*Chunk {
	defer profiling.Track("world.RemoveColumn")()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	col := cs.colIndex[[2]int{x, z}]
	out := make([]*Chunk, 0, len(col))
	for _, c := range col {
		out = append(out, c)
	}
	for _, c := range out {
		cs.removeLocked(c.Coord)
	}
	return out
}

// Neighbors returns the six loaded neighbours of coord indexed by BlockFace;
// missing ones are nil.
func (cs *ChunkStore) Neighbors(coord ChunkCoord) [6]*Chunk {
	var out [6]*Chunk
	cs.mu.RLock()
	for f := FaceEast; f <= FaceNorth; f++ {
		out[f] = cs.chunks[coord.Neighbor(f)]
	}
	cs.mu.RUnlock()
	return out
}

// Get returns the block type at the specified world coordinates.
func (cs *ChunkStore) Get(x, y, z int) BlockType {
	coord, lx, ly, lz := ChunkOf(x, y, z)
	chunk := cs.GetChunk(coord)
	if chunk == nil {
		return BlockTypeAir
	}
	return chunk.GetBlock(lx, ly, lz)
}

// Set sets the block type at the specified world coordinates, creating the
// chunk if needed. It returns the chunks whose mesh is affected: the owner
// first, then loaded neighbours sharing the touched face.
func (cs *ChunkStore) Set(x, y, z int, val BlockType) []*Chunk {
	coord, lx, ly, lz := ChunkOf(x, y, z)
	chunk, _ := cs.GetOrCreate(coord)
	if !chunk.SetBlock(lx, ly, lz, val) {
		return nil
	}
	affected := []*Chunk{chunk}

	// Mark neighbor chunks dirty if we touched a border block
	local := [3]int{lx, ly, lz}
	for axis := 0; axis < 3; axis++ {
		var face BlockFace
		switch local[axis] {
		case 0:
			face = BlockFace(axis*2 + 1)
		case ChunkSize - 1:
			face = BlockFace(axis * 2)
		default:
			continue
		}
		if nb := cs.GetChunk(coord.Neighbor(face)); nb != nil {
			nb.MarkDirty()
			affected = append(affected, nb)
		}
	}
	return affected
}

// Coords returns the coordinates of every loaded chunk.
func (cs *ChunkStore) Coords() []ChunkCoord {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]ChunkCoord, 0, len(cs.chunks))
	for c := range cs.chunks {
		out = append(out, c)
	}
	return out
}

// Count returns the number of loaded chunks.
func (cs *ChunkStore) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// GetModCount returns the current modification count of the chunk map.
func (cs *ChunkStore) GetModCount() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.modCount
}
