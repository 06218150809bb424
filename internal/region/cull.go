package region

import (
	"math"

	"voxelcore/internal/graphics/frustum"
	"voxelcore/internal/graphics/gpu"
	"voxelcore/internal/profiling"
	"voxelcore/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Info is a snapshot of one region.
type Info struct {
	Key      Key
	Children uint8
	State    State
	Commands []gpu.DrawCommand
	owners   []Key
}

// CommandCount returns the number of draw commands the region contributes
// when it is fully visible.
func (i Info) CommandCount() int { return len(i.Commands) }

// CommandsFor counts the commands attributable to leaf.
func (i Info) CommandsFor(leaf Key) int {
	n := 0
	for _, o := range i.owners {
		if o == leaf {
			n++
		}
	}
	return n
}

// Region returns a snapshot of region k.
func (r *Registry) Region(k Key) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regions[k]
	if !ok {
		return Info{}, false
	}
	info := Info{Key: k, Children: reg.children, State: reg.state}
	switch {
	case reg.leaf() && reg.state == StateMesh:
		info.Commands = []gpu.DrawCommand{reg.cmd}
		info.owners = []Key{k}
	case !reg.leaf():
		info.Commands = append([]gpu.DrawCommand(nil), reg.commands...)
		info.owners = append([]Key(nil), reg.owners...)
	}
	return info, true
}

// ParentRegion returns the parent of k if it exists.
func (r *Registry) ParentRegion(k Key) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k.Level >= r.cfg.MaxLevel {
		return Key{}, false
	}
	p := k.Parent()
	_, ok := r.regions[p]
	return p, ok
}

// Subregion returns the child of k at offset (x,y,z) if it exists.
func (r *Registry) Subregion(k Key, x, y, z int) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k.Level <= 1 || uint(x) > 1 || uint(y) > 1 || uint(z) > 1 {
		return Key{}, false
	}
	c := k.Child(x, y, z)
	_, ok := r.regions[c]
	return c, ok
}

// UpdateDrawCalls rebuilds the draw list for camera and f into the next
// command half. Top regions within CullRange of the camera's top region are
// tested; a fully visible region contributes its whole stored list, a
// partly visible one is refined through its children. It returns the number
// of commands written.
func (r *Registry) UpdateDrawCalls(camera mgl32.Vec3, f *frustum.Frustum) int {
	defer profiling.Track("region.UpdateDrawCalls")()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands.Begin()
	top := r.cfg.MaxLevel
	edge := float64(r.RegionSizeForLevel(top) * world.ChunkSize)
	cx := int(math.Floor(float64(camera[0]) / edge))
	cy := int(math.Floor(float64(camera[1]) / edge))
	cz := int(math.Floor(float64(camera[2]) / edge))
	n := r.cfg.CullRange
	for dx := -n; dx <= n; dx++ {
		for dy := -n; dy <= n; dy++ {
			for dz := -n; dz <= n; dz++ {
				k := Key{Pos: world.ChunkCoord{X: cx + dx, Y: cy + dy, Z: cz + dz}, Level: top}
				if reg, ok := r.regions[k]; ok {
					r.visitLocked(reg, f)
				}
			}
		}
	}
	count := r.commands.Count()
	profiling.Count("region.draw_commands", int64(count))
	return count
}

func (r *Registry) visitLocked(reg *region, f *frustum.Frustum) {
	if r.commands.Full() {
		return
	}
	vis := frustum.Inside
	if f != nil {
		min, max := reg.key.Bounds()
		vis = f.ClassifyAABB(min, max)
	}
	switch {
	case vis == frustum.Outside:
		return
	case reg.leaf():
		if reg.state == StateMesh {
			r.commands.Append(reg.cmd)
		}
	case vis == frustum.Inside:
		if len(reg.commands) > 0 {
			r.commands.Append(reg.commands...)
		}
	default:
		for bit := 0; bit < 8; bit++ {
			if reg.children&(1<<uint(bit)) == 0 {
				continue
			}
			if child, ok := r.regions[reg.key.Child(childOffset(bit))]; ok {
				r.visitLocked(child, f)
			}
		}
	}
}

// Draw binds the buffers and issues one multi-draw of the last update.
func (r *Registry) Draw() {
	defer profiling.Track("region.Draw")()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commands.Count() == 0 {
		return
	}
	r.vertices.Bind()
	r.indices.Bind()
	r.instances.Bind()
	r.commands.Submit()
}

// DrawCount returns the number of commands the next Draw submits.
func (r *Registry) DrawCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands.Count()
}

// Stats describes registry occupancy.
type Stats struct {
	Regions         int
	Leaves          int
	Meshless        int
	VertexUsed      uint64
	VertexCapacity  uint64
	VertexFragments int
	IndexUsed       uint64
	IndexCapacity   uint64
	IndexFragments  int
	Instances       int
}

// Stats returns current occupancy.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Regions:         len(r.regions),
		VertexUsed:      r.vertexAlloc.Used(),
		VertexCapacity:  r.vertexAlloc.Size(),
		VertexFragments: r.vertexAlloc.Fragments(),
		IndexUsed:       r.indexAlloc.Used(),
		IndexCapacity:   r.indexAlloc.Size(),
		IndexFragments:  r.indexAlloc.Fragments(),
		Instances:       r.slots.InUse(),
	}
	for _, reg := range r.regions {
		if !reg.leaf() {
			continue
		}
		s.Leaves++
		if reg.state == StateMeshless {
			s.Meshless++
		}
	}
	return s
}
