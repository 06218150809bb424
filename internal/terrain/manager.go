package terrain

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"voxelcore/internal/meshing"
	"voxelcore/internal/profiling"
	"voxelcore/internal/region"
	"voxelcore/internal/world"

	"github.com/gammazero/deque"
)

// Options configures a Manager.
type Options struct {
	// Chunk rows loaded in every column, inclusive.
	BottomY, TopY int
	// Capacity of the edit priority array.
	PrioritySlots int
	// Queued uploads applied per Update.
	UploadsPerFrame int
	// Byte limit of the unloaded chunk archive, 0 for unbounded.
	ArchiveLimit int
}

// DefaultOptions returns the stock column range and frame limits.
func DefaultOptions() Options {
	return Options{BottomY: -3, TopY: 3, PrioritySlots: 8, UploadsPerFrame: 10}
}

// Manager streams and meshes the chunks around the viewer. At most one load
// worker runs at a time; starting a new load cancels and joins the previous
// one first. All registry mutation except queued uploads happens in Update
// or SetBlock, which must run on the render thread.
type Manager struct {
	store   *world.ChunkStore
	gen     Generator
	meshes  *MeshGenerator
	sink    Sink
	archive *world.Archive
	opts    Options

	loadMu  sync.Mutex
	stop    atomic.Bool
	done    chan struct{}
	workers atomic.Int32

	prioMu   sync.Mutex
	priority []world.ChunkCoord

	unloadMu sync.Mutex
	unloads  deque.Deque[world.ChunkCoord]

	// render thread only
	archiveFull bool
}

// NewManager creates a manager. Meshing jobs run on pool.
func NewManager(store *world.ChunkStore, gen Generator, sink Sink, pool *meshing.WorkerPool, opts Options) *Manager {
	def := DefaultOptions()
	if opts.PrioritySlots <= 0 {
		opts.PrioritySlots = def.PrioritySlots
	}
	if opts.UploadsPerFrame <= 0 {
		opts.UploadsPerFrame = def.UploadsPerFrame
	}
	if opts.TopY < opts.BottomY {
		opts.BottomY, opts.TopY = opts.TopY, opts.BottomY
	}
	return &Manager{
		store:    store,
		gen:      gen,
		meshes:   NewMeshGenerator(store, sink, pool),
		sink:     sink,
		archive:  world.NewArchive(opts.ArchiveLimit),
		opts:     opts,
		priority: make([]world.ChunkCoord, 0, opts.PrioritySlots),
	}
}

// Store returns the chunk store.
func (m *Manager) Store() *world.ChunkStore { return m.store }

// Meshes returns the mesh generator.
func (m *Manager) Meshes() *MeshGenerator { return m.meshes }

// Archive returns the store of unloaded chunks.
func (m *Manager) Archive() *world.Archive { return m.archive }

// LoadRegion loads and meshes every column within distance of center,
// nearest first. It returns once the previous load has stopped and the new
// worker has started.
func (m *Manager) LoadRegion(center Column, distance int) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.stopLocked()
	m.stop.Store(false)
	done := make(chan struct{})
	m.done = done
	m.workers.Add(1)
	go m.load(center, distance, done)
}

// StopLoading cancels the current load and waits for its worker to exit.
func (m *Manager) StopLoading() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.done == nil {
		return
	}
	m.stop.Store(true)
	<-m.done
	m.done = nil
}

// Wait blocks until the current load finishes or is cancelled.
func (m *Manager) Wait() {
	m.loadMu.Lock()
	done := m.done
	m.loadMu.Unlock()
	if done != nil {
		<-done
	}
}

// Loading reports whether a load worker is running.
func (m *Manager) Loading() bool { return m.workers.Load() > 0 }

// load runs with m.workers already counted by LoadRegion.
func (m *Manager) load(center Column, distance int, done chan struct{}) {
	defer close(done)
	defer m.workers.Add(-1)
	defer profiling.Track("terrain.LoadRegion")()

	for _, off := range Spiral(distance) {
		m.drainPriority(false)
		col := Column{center.X + off.X, center.Z + off.Z}
		level := SimplificationLevel(off.Ring())

		// neighbours first so border faces are culled on the first pass
		for _, c := range [5]Column{col, {col.X + 1, col.Z}, {col.X - 1, col.Z}, {col.X, col.Z + 1}, {col.X, col.Z - 1}} {
			for y := m.opts.BottomY; y <= m.opts.TopY; y++ {
				if m.stop.Load() {
					return
				}
				m.ensureChunk(world.ChunkCoord{X: c.X, Y: y, Z: c.Z})
			}
		}
		for y := m.opts.BottomY; y <= m.opts.TopY; y++ {
			if m.stop.Load() {
				return
			}
			c := m.store.GetChunk(world.ChunkCoord{X: col.X, Y: y, Z: col.Z})
			if c == nil {
				continue
			}
			if !c.IsDirty() && c.MeshedLevel() == level && m.sink.IsChunkLoaded(c.Coord) {
				continue
			}
			if !m.meshes.GenerateAsyncUploadAsync(c, level) {
				m.meshes.GenerateSyncUploadAsync(c, level)
			}
		}
	}
}

// ensureChunk returns the chunk at coord, restoring it from the archive or
// generating it when missing.
func (m *Manager) ensureChunk(coord world.ChunkCoord) *world.Chunk {
	if c := m.store.GetChunk(coord); c != nil {
		return c
	}
	if m.archive.Has(coord) {
		c, ok, err := m.archive.Restore(coord, m.store.Cache())
		if err != nil {
			log.Printf("terrain: restore %v: %v", coord, err)
		}
		if ok {
			return m.store.AddChunk(c)
		}
	}
	c := world.NewChunk(coord, m.store.Cache())
	m.gen.Generate(c)
	return m.store.AddChunk(c)
}

// RequestRemesh queues pos ahead of streaming work. It returns false when
// the priority array is full; the caller should then remesh synchronously.
func (m *Manager) RequestRemesh(pos world.ChunkCoord) bool {
	m.prioMu.Lock()
	defer m.prioMu.Unlock()
	for _, p := range m.priority {
		if p == pos {
			return true
		}
	}
	if len(m.priority) == cap(m.priority) {
		return false
	}
	m.priority = append(m.priority, pos)
	return true
}

func (m *Manager) takePriority() []world.ChunkCoord {
	m.prioMu.Lock()
	defer m.prioMu.Unlock()
	if len(m.priority) == 0 {
		return nil
	}
	out := append([]world.ChunkCoord(nil), m.priority...)
	m.priority = m.priority[:0]
	return out
}

// drainPriority remeshes every requested chunk at its current level. Off the
// render thread the upload is queued instead of applied.
func (m *Manager) drainPriority(renderThread bool) {
	pending := m.takePriority()
	for i, pos := range pending {
		c := m.store.GetChunk(pos)
		if c == nil {
			continue
		}
		level := c.MeshedLevel()
		if !renderThread {
			m.meshes.GenerateSyncUploadAsync(c, level)
			continue
		}
		if err := m.meshes.GenerateSyncUploadSync(c, level); errors.Is(err, region.ErrOutOfSpace) {
			// retry this and the rest next frame
			for _, p := range pending[i:] {
				m.RequestRemesh(p)
			}
			return
		}
	}
}

// Update applies pending work on the render thread: priority remeshes,
// queued uploads, then unloads.
func (m *Manager) Update() {
	defer profiling.Track("terrain.Update")()
	m.drainPriority(true)
	m.meshes.ProcessUploads(m.opts.UploadsPerFrame)
	m.applyUnloads()
}

// UnloadOutside queues every loaded column farther than distance from
// center for removal and returns the number of chunks queued.
func (m *Manager) UnloadOutside(center Column, distance int) int {
	n := 0
	m.unloadMu.Lock()
	defer m.unloadMu.Unlock()
	for _, key := range m.store.Columns() {
		off := Column{key[0] - center.X, key[1] - center.Z}
		if off.Ring() <= distance {
			continue
		}
		for _, c := range m.store.Column(key[0], key[1]) {
			m.unloads.PushBack(c.Coord)
			n++
		}
	}
	return n
}

func (m *Manager) applyUnloads() {
	for {
		m.unloadMu.Lock()
		if m.unloads.Len() == 0 {
			m.unloadMu.Unlock()
			return
		}
		pos := m.unloads.PopFront()
		m.unloadMu.Unlock()

		c := m.store.RemoveChunk(pos)
		m.meshes.Forget(pos)
		if m.sink.IsChunkLoaded(pos) {
			if err := m.sink.RemoveMesh(pos); err != nil {
				log.Printf("terrain: unload %v: %v", pos, err)
			}
		}
		if c == nil {
			continue
		}
		// empty chunks are archived too, a dug out chunk must not regrow
		ok, err := m.archive.Store(c)
		if err != nil {
			log.Printf("terrain: archive %v: %v", pos, err)
			continue
		}
		if !ok {
			profiling.Count("terrain.archive_full", 1)
			if !m.archiveFull {
				log.Printf("terrain: archive full at %d bytes, dropping %v", m.archive.Bytes(), pos)
				m.archiveFull = true
			}
			continue
		}
		m.archiveFull = false
	}
}

// PendingUnloads returns the number of chunks waiting to be unloaded.
func (m *Manager) PendingUnloads() int {
	m.unloadMu.Lock()
	defer m.unloadMu.Unlock()
	return m.unloads.Len()
}

// SetBlock edits the block at world position (x,y,z) and remeshes the
// chunks it touches, ahead of streaming work. When the priority array is
// full the remesh happens immediately.
func (m *Manager) SetBlock(x, y, z int, t world.BlockType) {
	for _, c := range m.store.Set(x, y, z, t) {
		if m.RequestRemesh(c.Coord) {
			continue
		}
		if err := m.meshes.GenerateSyncUploadSync(c, c.MeshedLevel()); err != nil {
			log.Printf("terrain: remesh %v: %v", c.Coord, err)
		}
	}
}

// Close stops loading. The worker pool is owned by the caller.
func (m *Manager) Close() {
	m.StopLoading()
}
