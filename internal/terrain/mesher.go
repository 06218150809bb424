package terrain

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"voxelcore/internal/bitfield"
	"voxelcore/internal/meshing"
	"voxelcore/internal/profiling"
	"voxelcore/internal/region"
	"voxelcore/internal/world"

	"github.com/gammazero/deque"
)

// Sink receives chunk meshes. *region.Registry implements it.
type Sink interface {
	AddMesh(m region.Mesh, pos world.ChunkCoord) error
	RemoveMesh(pos world.ChunkCoord) error
	IsChunkLoaded(pos world.ChunkCoord) bool
}

// upload carries the build stamp of its mesh. Stamps increase with every
// build, so a later build of the same chunk always wins.
type upload struct {
	pos   world.ChunkCoord
	stamp uint64
	mesh  *meshing.Mesh
}

// MeshGenerator builds chunk meshes on the calling goroutine or on a worker
// pool, and uploads them either right away or through a queue drained by
// the render thread.
type MeshGenerator struct {
	store *world.ChunkStore
	sink  Sink
	pool  *meshing.WorkerPool

	stamps atomic.Uint64

	mu      sync.Mutex
	uploads deque.Deque[upload]
	applied map[world.ChunkCoord]uint64 // newest stamp registered per chunk
	stalled bool
}

// NewMeshGenerator creates a generator meshing chunks of store into sink.
func NewMeshGenerator(store *world.ChunkStore, sink Sink, pool *meshing.WorkerPool) *MeshGenerator {
	return &MeshGenerator{store: store, sink: sink, pool: pool, applied: make(map[world.ChunkCoord]uint64)}
}

// Build meshes c at level against its loaded neighbours. The chunk is marked
// clean first, so an edit racing with the build leaves it dirty.
func (g *MeshGenerator) Build(c *world.Chunk, level bitfield.Level) *meshing.Mesh {
	return g.build(c, level).mesh
}

func (g *MeshGenerator) build(c *world.Chunk, level bitfield.Level) upload {
	c.SetClean(level)
	stamp := g.stamps.Add(1)
	nb := g.store.Neighbors(c.Coord)
	return upload{pos: c.Coord, stamp: stamp, mesh: meshing.BuildChunkMesh(c, meshing.Neighbors(nb), level)}
}

// GenerateSyncUploadSync meshes and registers c on the calling goroutine,
// which must own the graphics context. Queued uploads built before this
// call are discarded when they reach the front of the queue.
func (g *MeshGenerator) GenerateSyncUploadSync(c *world.Chunk, level bitfield.Level) error {
	u := g.build(c, level)
	if err := g.sink.AddMesh(u.mesh, u.pos); err != nil {
		c.MarkDirty()
		return err
	}
	g.mu.Lock()
	g.markAppliedLocked(u.pos, u.stamp)
	g.mu.Unlock()
	profiling.Count("terrain.uploads", 1)
	return nil
}

// GenerateSyncUploadAsync meshes c now and queues the upload.
func (g *MeshGenerator) GenerateSyncUploadAsync(c *world.Chunk, level bitfield.Level) {
	g.enqueue(g.build(c, level))
}

// GenerateAsyncUploadAsync meshes c on the worker pool and queues the
// upload. It returns false, doing nothing, when the pool is saturated.
func (g *MeshGenerator) GenerateAsyncUploadAsync(c *world.Chunk, level bitfield.Level) bool {
	return g.pool.Deploy(func() {
		g.enqueue(g.build(c, level))
	})
}

func (g *MeshGenerator) enqueue(u upload) {
	g.mu.Lock()
	g.uploads.PushBack(u)
	g.mu.Unlock()
}

func (g *MeshGenerator) markAppliedLocked(pos world.ChunkCoord, stamp uint64) {
	if stamp > g.applied[pos] {
		g.applied[pos] = stamp
	}
}

// Forget drops the upload history of pos after its chunk is unloaded. Every
// mesh built so far for pos, queued or still on the pool, is discarded.
func (g *MeshGenerator) Forget(pos world.ChunkCoord) {
	g.mu.Lock()
	g.applied[pos] = g.stamps.Load()
	g.mu.Unlock()
}

// ProcessUploads registers at most limit queued meshes and returns how many
// were applied. Meshes older than the one already registered for their chunk
// are dropped. When the registry is out of space the mesh stays at the front
// of the queue and draining stops until the next call.
func (g *MeshGenerator) ProcessUploads(limit int) int {
	defer profiling.Track("terrain.ProcessUploads")()
	done := 0
	for done < limit {
		g.mu.Lock()
		if g.uploads.Len() == 0 {
			g.mu.Unlock()
			break
		}
		u := g.uploads.Front()
		stale := u.stamp <= g.applied[u.pos]
		if stale {
			g.uploads.PopFront()
		}
		g.mu.Unlock()

		if stale {
			profiling.Count("terrain.stale_uploads", 1)
			continue
		}
		if !g.store.HasChunk(u.pos) {
			// unloaded while queued
			g.pop()
			continue
		}
		err := g.sink.AddMesh(u.mesh, u.pos)
		if errors.Is(err, region.ErrOutOfSpace) {
			if !g.stalled {
				log.Printf("terrain: upload of %v stalled: %v", u.pos, err)
				g.stalled = true
			}
			break
		}
		g.stalled = false
		g.mu.Lock()
		g.uploads.PopFront()
		if err == nil {
			g.markAppliedLocked(u.pos, u.stamp)
		}
		g.mu.Unlock()
		if err != nil {
			log.Printf("terrain: upload of %v: %v", u.pos, err)
			continue
		}
		done++
	}
	if done > 0 {
		profiling.Count("terrain.uploads", int64(done))
	}
	return done
}

func (g *MeshGenerator) pop() {
	g.mu.Lock()
	g.uploads.PopFront()
	g.mu.Unlock()
}

// PendingUploads returns the number of queued meshes.
func (g *MeshGenerator) PendingUploads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uploads.Len()
}

// Busy returns the number of meshing jobs running or waiting on the pool.
func (g *MeshGenerator) Busy() int { return g.pool.Busy() }
