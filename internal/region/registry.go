// Package region keeps chunk meshes in shared GPU buffers and groups them
// into an octree of regions whose merged draw lists are culled as a whole.
package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"voxelcore/internal/allocator"
	"voxelcore/internal/graphics/gpu"
	"voxelcore/internal/profiling"
	"voxelcore/internal/world"
)

var (
	// ErrOutOfSpace reports that the vertex, index or instance budget is
	// exhausted. The mesh was not registered and may be retried later.
	ErrOutOfSpace = errors.New("region: out of space")
	// ErrNotLoaded reports an update or removal of a chunk without a region.
	ErrNotLoaded = errors.New("region: chunk not loaded")
	// ErrLevelOutOfRange reports a region level outside [1, MaxLevel].
	ErrLevelOutOfRange = errors.New("region: level out of range")
)

// Mesh is the geometry a leaf region uploads. Indices are relative to the
// mesh's first vertex.
type Mesh interface {
	Empty() bool
	VertexCount() int
	IndexCount() int
	WriteVertices(dst []byte)
	WriteIndices(dst []byte)
}

// State of a region.
type State int

const (
	// StateMeshless is a loaded leaf with no geometry.
	StateMeshless State = iota
	// StateMesh is a leaf holding one draw command.
	StateMesh
	// StateInner is a non-leaf region holding its leaves' commands.
	StateInner
)

func (s State) String() string {
	switch s {
	case StateMeshless:
		return "meshless"
	case StateMesh:
		return "mesh"
	case StateInner:
		return "inner"
	}
	return "unknown"
}

const (
	indexBytes    = 4
	instanceBytes = 16 // vec4 origin
)

// Config sizes a Registry. Capacities are in elements, not bytes.
type Config struct {
	MaxLevel        int
	CullRange       int
	VertexCapacity  int
	IndexCapacity   int
	VertexStride    int
	InstanceSlots   int
	CommandCapacity int
	Coalesce        allocator.Policy
}

// DefaultConfig returns a configuration for roughly a few hundred chunks.
func DefaultConfig() Config {
	return Config{
		MaxLevel:        5,
		CullRange:       1,
		VertexCapacity:  1 << 22,
		IndexCapacity:   6 << 21,
		VertexStride:    8,
		InstanceSlots:   1 << 14,
		CommandCapacity: 1 << 14,
		Coalesce:        allocator.CoalesceNeighbors,
	}
}

// meshInfo is where a leaf's geometry lives.
type meshInfo struct {
	vertexOffset uint64
	indexOffset  uint64
	slot         uint32
}

type region struct {
	key      Key
	children uint8
	state    State

	// leaf
	mesh       meshInfo
	cmd        gpu.DrawCommand
	parentRefs []int // index of cmd in the ancestor at each level

	// inner
	commands []gpu.DrawCommand
	owners   []Key
}

func (r *region) leaf() bool { return r.key.Level == 1 }

// Registry owns the region tree and the GPU storage of every leaf mesh. A
// single mutex guards the whole API.
type Registry struct {
	mu  sync.Mutex
	cfg Config
	dev gpu.Device

	regions map[Key]*region

	vertices  gpu.Buffer
	indices   gpu.Buffer
	instances gpu.Buffer
	commands  *gpu.CommandBuffer

	vertexAlloc *allocator.Allocator
	indexAlloc  *allocator.Allocator
	slots       *allocator.Pool

	// bumped whenever a draw command changes
	version uint64
}

// New creates a registry and its buffers on dev.
func New(dev gpu.Device, cfg Config) (*Registry, error) {
	def := DefaultConfig()
	if cfg.MaxLevel < 1 {
		cfg.MaxLevel = def.MaxLevel
	}
	if cfg.CullRange < 0 {
		cfg.CullRange = 0
	}
	if cfg.VertexStride <= 0 {
		cfg.VertexStride = def.VertexStride
	}
	if cfg.VertexCapacity <= 0 || cfg.IndexCapacity <= 0 || cfg.InstanceSlots <= 0 || cfg.CommandCapacity <= 0 {
		return nil, fmt.Errorf("region: non-positive capacity in %+v", cfg)
	}

	r := &Registry{
		cfg:         cfg,
		dev:         dev,
		regions:     make(map[Key]*region),
		vertexAlloc: allocator.New(uint64(cfg.VertexCapacity), allocator.WithCoalescing(cfg.Coalesce)),
		indexAlloc:  allocator.New(uint64(cfg.IndexCapacity), allocator.WithCoalescing(cfg.Coalesce)),
		slots:       allocator.NewPool(uint32(cfg.InstanceSlots)),
	}
	var err error
	if r.vertices, err = dev.NewBuffer(gpu.KindVertex, cfg.VertexCapacity*cfg.VertexStride); err != nil {
		return nil, fmt.Errorf("region: vertex buffer: %w", err)
	}
	if r.indices, err = dev.NewBuffer(gpu.KindIndex, cfg.IndexCapacity*indexBytes); err != nil {
		r.vertices.Close()
		return nil, fmt.Errorf("region: index buffer: %w", err)
	}
	if r.instances, err = dev.NewBuffer(gpu.KindInstance, cfg.InstanceSlots*instanceBytes); err != nil {
		r.vertices.Close()
		r.indices.Close()
		return nil, fmt.Errorf("region: instance buffer: %w", err)
	}
	if r.commands, err = gpu.NewCommandBuffer(dev, cfg.CommandCapacity); err != nil {
		r.vertices.Close()
		r.indices.Close()
		r.instances.Close()
		return nil, fmt.Errorf("region: %w", err)
	}
	log.Printf("region: registry ready (levels %d, %d vertices, %d indices, %d slots)",
		cfg.MaxLevel, cfg.VertexCapacity, cfg.IndexCapacity, cfg.InstanceSlots)
	return r, nil
}

// Config returns the configuration the registry was built with.
func (r *Registry) Config() Config { return r.cfg }

// MaxLevel returns the level of the top regions.
func (r *Registry) MaxLevel() int { return r.cfg.MaxLevel }

// RegionSizeForLevel returns the edge length in chunks of a region at level,
// or 0 when level is out of range.
func (r *Registry) RegionSizeForLevel(level int) int {
	if level < 1 || level > r.cfg.MaxLevel {
		return 0
	}
	return 1 << uint(level-1)
}

// CreateRegion creates the region k and its missing ancestors. It is a no-op
// for an existing region and fails for a level outside [1, MaxLevel].
func (r *Registry) CreateRegion(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(k) != nil
}

func (r *Registry) createLocked(k Key) *region {
	if k.Level < 1 || k.Level > r.cfg.MaxLevel {
		log.Printf("region: create %v: %v", k, ErrLevelOutOfRange)
		return nil
	}
	if reg, ok := r.regions[k]; ok {
		return reg
	}
	reg := &region{key: k, state: StateInner}
	if k.Level == 1 {
		reg.state = StateMeshless
		reg.parentRefs = make([]int, r.cfg.MaxLevel+1)
		for i := range reg.parentRefs {
			reg.parentRefs[i] = -1
		}
	}
	r.regions[k] = reg
	if k.Level < r.cfg.MaxLevel {
		parent := r.createLocked(k.Parent())
		parent.children |= k.ChildBit()
	}
	return reg
}

// IsChunkLoaded reports whether chunk pos has a leaf region, with or
// without geometry.
func (r *Registry) IsChunkLoaded(pos world.ChunkCoord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.regions[LeafKey(pos)]
	return ok
}

// AddMesh registers m for chunk pos. An empty mesh makes a meshless leaf.
// Storage is allocated all or nothing; on ErrOutOfSpace nothing changes. An
// already loaded chunk is updated instead.
func (r *Registry) AddMesh(m Mesh, pos world.ChunkCoord) error {
	defer profiling.Track("region.AddMesh")()
	r.mu.Lock()
	defer r.mu.Unlock()
	if leaf, ok := r.regions[LeafKey(pos)]; ok {
		return r.updateLocked(leaf, m)
	}
	if m.Empty() {
		r.createLocked(LeafKey(pos))
		return nil
	}
	info, err := r.allocLocked(m.VertexCount(), m.IndexCount())
	if err != nil {
		return fmt.Errorf("region: add %v: %w", pos, err)
	}
	leaf := r.createLocked(LeafKey(pos))
	r.attachLocked(leaf, info, m)
	return nil
}

// UpdateMesh replaces the geometry of a loaded chunk. Ranges are rewritten
// in place when they fit; otherwise new ranges are taken before the old ones
// are freed, so a failed update leaves the previous mesh registered.
func (r *Registry) UpdateMesh(m Mesh, pos world.ChunkCoord) error {
	defer profiling.Track("region.UpdateMesh")()
	r.mu.Lock()
	defer r.mu.Unlock()
	leaf, ok := r.regions[LeafKey(pos)]
	if !ok {
		log.Printf("region: update %v: %v", pos, ErrNotLoaded)
		return fmt.Errorf("region: update %v: %w", pos, ErrNotLoaded)
	}
	return r.updateLocked(leaf, m)
}

func (r *Registry) updateLocked(leaf *region, m Mesh) error {
	switch {
	case m.Empty():
		if leaf.state == StateMesh {
			r.detachLocked(leaf)
			r.freeLocked(leaf.mesh)
		}
		return nil
	case leaf.state == StateMeshless:
		info, err := r.allocLocked(m.VertexCount(), m.IndexCount())
		if err != nil {
			return fmt.Errorf("region: update %v: %w", leaf.key.Pos, err)
		}
		r.attachLocked(leaf, info, m)
		return nil
	}

	old := leaf.mesh
	info := old
	vc, ic := uint64(m.VertexCount()), uint64(m.IndexCount())
	var newVertices, newIndices bool
	if r.vertexAlloc.TakenBlockSize(old.vertexOffset) < vc {
		off, ok := r.vertexAlloc.Allocate(vc)
		if !ok {
			return fmt.Errorf("region: update %v: vertices: %w", leaf.key.Pos, ErrOutOfSpace)
		}
		info.vertexOffset, newVertices = off, true
	}
	if r.indexAlloc.TakenBlockSize(old.indexOffset) < ic {
		off, ok := r.indexAlloc.Allocate(ic)
		if !ok {
			if newVertices {
				r.vertexAlloc.Free(info.vertexOffset)
			}
			return fmt.Errorf("region: update %v: indices: %w", leaf.key.Pos, ErrOutOfSpace)
		}
		info.indexOffset, newIndices = off, true
	}
	if newVertices {
		r.vertexAlloc.Free(old.vertexOffset)
	}
	if newIndices {
		r.indexAlloc.Free(old.indexOffset)
	}
	leaf.mesh = info
	r.writeLocked(leaf, m)
	// ancestors keep their slot for this leaf, only the contents change
	for level := 2; level <= r.cfg.MaxLevel; level++ {
		anc := r.regions[ancestor(leaf.key, level)]
		anc.commands[leaf.parentRefs[level]] = leaf.cmd
	}
	profiling.Count("region.updates", 1)
	return nil
}

// RemoveMesh frees chunk pos and removes its leaf, then every ancestor left
// without children.
func (r *Registry) RemoveMesh(pos world.ChunkCoord) error {
	defer profiling.Track("region.RemoveMesh")()
	r.mu.Lock()
	defer r.mu.Unlock()
	leaf, ok := r.regions[LeafKey(pos)]
	if !ok {
		return fmt.Errorf("region: remove %v: %w", pos, ErrNotLoaded)
	}
	if leaf.state == StateMesh {
		r.detachLocked(leaf)
		r.freeLocked(leaf.mesh)
	}
	r.deleteLocked(leaf.key)
	return nil
}

func (r *Registry) deleteLocked(k Key) {
	delete(r.regions, k)
	for k.Level < r.cfg.MaxLevel {
		bit := k.ChildBit()
		k = k.Parent()
		parent := r.regions[k]
		parent.children &^= bit
		if parent.children != 0 {
			return
		}
		delete(r.regions, k)
	}
}

func ancestor(k Key, level int) Key {
	for k.Level < level {
		k = k.Parent()
	}
	return k
}

func (r *Registry) allocLocked(vertices, indices int) (meshInfo, error) {
	var info meshInfo
	var ok bool
	if info.vertexOffset, ok = r.vertexAlloc.Allocate(uint64(vertices)); !ok {
		return info, fmt.Errorf("vertices: %w", ErrOutOfSpace)
	}
	if info.indexOffset, ok = r.indexAlloc.Allocate(uint64(indices)); !ok {
		r.vertexAlloc.Free(info.vertexOffset)
		return info, fmt.Errorf("indices: %w", ErrOutOfSpace)
	}
	if info.slot, ok = r.slots.Acquire(); !ok {
		r.vertexAlloc.Free(info.vertexOffset)
		r.indexAlloc.Free(info.indexOffset)
		return info, fmt.Errorf("instances: %w", ErrOutOfSpace)
	}
	return info, nil
}

func (r *Registry) freeLocked(info meshInfo) {
	r.vertexAlloc.Free(info.vertexOffset)
	r.indexAlloc.Free(info.indexOffset)
	r.slots.Release(info.slot)
}

// writeLocked uploads m into leaf's ranges and refreshes its command.
func (r *Registry) writeLocked(leaf *region, m Mesh) {
	info := leaf.mesh
	stride := r.cfg.VertexStride
	vb := r.vertices.Bytes()
	ib := r.indices.Bytes()
	voff := int(info.vertexOffset) * stride
	ioff := int(info.indexOffset) * indexBytes
	m.WriteVertices(vb[voff : voff+m.VertexCount()*stride])
	m.WriteIndices(ib[ioff : ioff+m.IndexCount()*indexBytes])

	x, y, z := leaf.key.Pos.Origin()
	inst := r.instances.Bytes()[int(info.slot)*instanceBytes:]
	binary.LittleEndian.PutUint32(inst[0:], math.Float32bits(float32(x)))
	binary.LittleEndian.PutUint32(inst[4:], math.Float32bits(float32(y)))
	binary.LittleEndian.PutUint32(inst[8:], math.Float32bits(float32(z)))
	binary.LittleEndian.PutUint32(inst[12:], 0)

	leaf.cmd = gpu.DrawCommand{
		Count:         uint32(m.IndexCount()),
		InstanceCount: 1,
		FirstIndex:    uint32(info.indexOffset),
		BaseVertex:    int32(info.vertexOffset),
		BaseInstance:  info.slot,
	}
	r.version++
	profiling.Count("region.upload_bytes", int64(m.VertexCount()*stride+m.IndexCount()*indexBytes))
}

// attachLocked uploads m and appends the leaf's command to every ancestor.
func (r *Registry) attachLocked(leaf *region, info meshInfo, m Mesh) {
	leaf.mesh = info
	leaf.state = StateMesh
	r.writeLocked(leaf, m)
	for level := 2; level <= r.cfg.MaxLevel; level++ {
		anc := r.regions[ancestor(leaf.key, level)]
		leaf.parentRefs[level] = len(anc.commands)
		anc.commands = append(anc.commands, leaf.cmd)
		anc.owners = append(anc.owners, leaf.key)
	}
}

// detachLocked swap-removes the leaf's command from every ancestor.
func (r *Registry) detachLocked(leaf *region) {
	for level := 2; level <= r.cfg.MaxLevel; level++ {
		anc := r.regions[ancestor(leaf.key, level)]
		i := leaf.parentRefs[level]
		last := len(anc.commands) - 1
		if i != last {
			anc.commands[i] = anc.commands[last]
			anc.owners[i] = anc.owners[last]
			r.regions[anc.owners[i]].parentRefs[level] = i
		}
		anc.commands = anc.commands[:last]
		anc.owners = anc.owners[:last]
		leaf.parentRefs[level] = -1
	}
	leaf.state = StateMeshless
	leaf.cmd = gpu.DrawCommand{}
	r.version++
}

// Clear drops every region and returns all storage.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.regions)
	r.vertexAlloc.Clear()
	r.indexAlloc.Clear()
	r.slots.Reset()
	r.version++
}

// Version changes whenever the set of draw commands does, so callers can
// skip UpdateDrawCalls while it is stable.
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Close releases the GPU buffers. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands.Close()
	r.vertices.Close()
	r.indices.Close()
	r.instances.Close()
}
