package meshing

import (
	"math/rand"
	"testing"

	"voxelcore/internal/bitfield"
	"voxelcore/internal/world"
)

func newChunk(coord world.ChunkCoord) *world.Chunk {
	return world.NewChunk(coord, bitfield.NewCache(64))
}

func TestGreedyMeshPlaneFull(t *testing.T) {
	var p Plane
	for i := range p {
		p[i] = ^uint64(0)
	}
	faces := GreedyMeshPlane(&p, 0, PlaneSize, nil)
	if len(faces) != 1 || faces[0] != (Face{X: 0, Y: 0, Width: 64, Height: 64}) {
		t.Fatalf("full plane = %+v", faces)
	}
	if p != (Plane{}) {
		t.Fatalf("plane not consumed")
	}
}

func TestGreedyMeshPlaneWidthFirst(t *testing.T) {
	var p Plane
	// rows 0-1 columns 2..5, row 2 columns 2..3
	p[0] = runMask(2, 4)
	p[1] = runMask(2, 4)
	p[2] = runMask(2, 2)
	faces := GreedyMeshPlane(&p, 0, PlaneSize, nil)
	want := []Face{{X: 2, Y: 0, Width: 4, Height: 2}, {X: 2, Y: 2, Width: 2, Height: 1}}
	if len(faces) != len(want) {
		t.Fatalf("faces = %+v, want %+v", faces, want)
	}
	for i := range want {
		if faces[i] != want[i] {
			t.Fatalf("face %d = %+v, want %+v", i, faces[i], want[i])
		}
	}
}

func TestGreedyMeshPlaneRange(t *testing.T) {
	var p Plane
	for i := range p {
		p[i] = 1
	}
	faces := GreedyMeshPlane(&p, 10, 20, nil)
	if len(faces) != 1 || faces[0] != (Face{X: 63, Y: 10, Width: 1, Height: 10}) {
		t.Fatalf("faces = %+v", faces)
	}
	if p[9] != 1 || p[20] != 1 {
		t.Fatalf("rows outside range were consumed")
	}
}

func TestGreedyMeshPlaneCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		var p Plane
		for i := range p {
			switch rng.Intn(3) {
			case 0:
				p[i] = rng.Uint64()
			case 1:
				p[i] = rng.Uint64() & rng.Uint64() & rng.Uint64()
			default:
				if i > 0 {
					p[i] = p[i-1]
				}
			}
		}
		orig := p
		var covered Plane
		for _, f := range GreedyMeshPlane(&p, 0, PlaneSize, nil) {
			if f.Width <= 0 || f.Height <= 0 || f.X+f.Width > 64 || f.Y+f.Height > 64 {
				t.Fatalf("trial %d: bad face %+v", trial, f)
			}
			m := runMask(f.X, f.Width)
			for r := f.Y; r < f.Y+f.Height; r++ {
				if covered[r]&m != 0 {
					t.Fatalf("trial %d: overlapping face %+v", trial, f)
				}
				if orig[r]&m != m {
					t.Fatalf("trial %d: face %+v covers a clear bit", trial, f)
				}
				covered[r] |= m
			}
		}
		if covered != orig {
			t.Fatalf("trial %d: faces do not cover every set bit", trial)
		}
	}
}

type quad struct {
	face      world.BlockFace
	min, max  [3]int
	ao        [4]uint8
	billboard bool
}

// quads decodes every four-vertex group of m.
func quads(m *Mesh) []quad {
	var out []quad
	for v := 0; v+4 <= m.VertexCount(); v += 4 {
		var q quad
		for i := 0; i < 4; i++ {
			w0, _ := m.Vertex(v + i)
			x, y, z := UnpackPosition(w0)
			face, ao, bb := UnpackFace(w0)
			q.face, q.billboard = face, bb
			q.ao[i] = ao
			p := [3]int{x, y, z}
			for a := 0; a < 3; a++ {
				if i == 0 || p[a] < q.min[a] {
					q.min[a] = p[a]
				}
				if i == 0 || p[a] > q.max[a] {
					q.max[a] = p[a]
				}
			}
		}
		out = append(out, q)
	}
	return out
}

func (q quad) area() int {
	a := 1
	for axis := 0; axis < 3; axis++ {
		if axis != q.face.Axis() {
			a *= q.max[axis] - q.min[axis]
		}
	}
	return a
}

func TestSingleBlockMesh(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(5, 6, 7, world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	if m.Quads() != 6 || m.VertexCount() != 24 || m.IndexCount() != 36 {
		t.Fatalf("single block: quads=%d verts=%d indices=%d", m.Quads(), m.VertexCount(), m.IndexCount())
	}
	seen := map[world.BlockFace]bool{}
	for _, q := range quads(m) {
		seen[q.face] = true
		if q.area() != 1 {
			t.Fatalf("face %d area %d", q.face, q.area())
		}
		d := q.min[q.face.Axis()]
		want := []int{5, 6, 7}[q.face.Axis()]
		if q.face.Forward() {
			want++
		}
		if d != want {
			t.Fatalf("face %d at %d, want %d", q.face, d, want)
		}
	}
	if len(seen) != 6 {
		t.Fatalf("faces seen: %v", seen)
	}
}

func TestTwoBlocksTouchingGreedy(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(0, 0, 0, world.BlockTypeDirt)
	c.SetBlock(1, 0, 0, world.BlockTypeDirt)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	if m.Quads() != 6 {
		t.Fatalf("two touching blocks: %d quads, want 6", m.Quads())
	}
	total := 0
	for _, q := range quads(m) {
		total += q.area()
	}
	if total != 10 {
		t.Fatalf("surface area %d, want 10", total)
	}
}

func TestFullChunkWithoutNeighbors(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.Fill(world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	if m.Quads() != 6 {
		t.Fatalf("full chunk: %d quads, want 6", m.Quads())
	}
	for _, q := range quads(m) {
		if q.area() != 64*64 {
			t.Fatalf("face %d area %d", q.face, q.area())
		}
	}
}

func TestCrossChunkFaceCulling(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(63, 0, 0, world.BlockTypeStone)
	east := newChunk(world.ChunkCoord{X: 1})
	east.SetBlock(0, 0, 0, world.BlockTypeStone)

	var nb Neighbors
	nb[world.FaceEast] = east
	if got := BuildChunkMesh(c, nb, bitfield.LevelNone).Quads(); got != 5 {
		t.Fatalf("with neighbor: %d quads, want 5", got)
	}
	if got := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone).Quads(); got != 6 {
		t.Fatalf("without neighbor: %d quads, want 6", got)
	}

	var wb Neighbors
	wb[world.FaceWest] = c
	if got := BuildChunkMesh(east, wb, bitfield.LevelNone).Quads(); got != 5 {
		t.Fatalf("west neighbor: %d quads, want 5", got)
	}
}

func TestCrossChunkZAxis(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(4, 9, 63, world.BlockTypeStone)
	south := newChunk(world.ChunkCoord{Z: 1})
	south.SetBlock(4, 9, 0, world.BlockTypeStone)
	var nb Neighbors
	nb[world.FaceSouth] = south
	if got := BuildChunkMesh(c, nb, bitfield.LevelNone).Quads(); got != 5 {
		t.Fatalf("%d quads, want 5", got)
	}
}

func TestTransparentCulling(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(0, 0, 0, world.BlockTypeGlass)
	c.SetBlock(1, 0, 0, world.BlockTypeGlass)
	if got := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone).Quads(); got != 6 {
		t.Fatalf("glass pair: %d quads, want 6", got)
	}

	c = newChunk(world.ChunkCoord{})
	c.SetBlock(0, 0, 0, world.BlockTypeGlass)
	c.SetBlock(1, 0, 0, world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	// stone keeps its -X face behind the glass, glass loses its +X face
	if m.Quads() != 11 {
		t.Fatalf("glass+stone: %d quads, want 11", m.Quads())
	}
}

func TestAmbientOcclusion(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	for x := 0; x < 8; x++ {
		for z := 0; z < 8; z++ {
			c.SetBlock(x, 0, z, world.BlockTypeStone)
		}
	}
	c.SetBlock(3, 1, 3, world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)

	topArea, shaded := 0, false
	for _, q := range quads(m) {
		if q.face != world.FaceTop || q.min[1] != 1 {
			continue
		}
		topArea += q.area()
		for _, a := range q.ao {
			if a > 0 {
				shaded = true
			}
		}
	}
	if topArea != 63 {
		t.Fatalf("floor top area %d, want 63", topArea)
	}
	if !shaded {
		t.Fatalf("no occluded corners next to the raised block")
	}
}

func TestWinding(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(2, 2, 2, world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	for i := 0; i < m.IndexCount(); i += 3 {
		var p [3][3]int
		var face world.BlockFace
		for k := 0; k < 3; k++ {
			w0, _ := m.Vertex(int(m.Index(i + k)))
			x, y, z := UnpackPosition(w0)
			p[k] = [3]int{x, y, z}
			face, _, _ = UnpackFace(w0)
		}
		e1 := [3]int{p[1][0] - p[0][0], p[1][1] - p[0][1], p[1][2] - p[0][2]}
		e2 := [3]int{p[2][0] - p[0][0], p[2][1] - p[0][1], p[2][2] - p[0][2]}
		n := [3]int{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		got := n[face.Axis()]
		if (got > 0) != face.Forward() || got == 0 {
			t.Fatalf("triangle %d of face %d has normal %v", i/3, face, n)
		}
	}
}

func TestBillboards(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(1, 1, 1, world.BlockTypeFlower)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	if m.Quads() != 2 || m.VertexCount() != 8 || m.IndexCount() != 24 {
		t.Fatalf("billboard: quads=%d verts=%d indices=%d", m.Quads(), m.VertexCount(), m.IndexCount())
	}
	for _, q := range quads(m) {
		if !q.billboard {
			t.Fatalf("billboard flag missing")
		}
	}
	if !BuildChunkMesh(c, Neighbors{}, bitfield.LevelTo32).Empty() {
		t.Fatalf("billboards should be skipped at simplified levels")
	}
}

func TestSimplifiedMesh(t *testing.T) {
	c := newChunk(world.ChunkCoord{})
	c.SetBlock(5, 5, 5, world.BlockTypeStone)
	m := BuildChunkMesh(c, Neighbors{}, bitfield.LevelTo16)
	if m.Quads() != 6 {
		t.Fatalf("simplified block: %d quads, want 6", m.Quads())
	}
	for _, q := range quads(m) {
		if q.area() != 16 {
			t.Fatalf("simplified face area %d, want 16", q.area())
		}
	}
}

func TestEmptyChunk(t *testing.T) {
	m := BuildChunkMesh(newChunk(world.ChunkCoord{}), Neighbors{}, bitfield.LevelNone)
	if !m.Empty() || m.VertexCount() != 0 {
		t.Fatalf("empty chunk produced geometry")
	}
}

func terrainChunk() *world.Chunk {
	c := newChunk(world.ChunkCoord{})
	rng := rand.New(rand.NewSource(1))
	for x := 0; x < 64; x++ {
		for z := 0; z < 64; z++ {
			h := 20 + rng.Intn(6)
			for y := 0; y < h; y++ {
				c.SetBlock(x, y, z, world.BlockTypeStone)
			}
			c.SetBlock(x, h, z, world.BlockTypeGrass)
		}
	}
	return c
}

func BenchmarkBuildChunkMesh(b *testing.B) {
	c := terrainChunk()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BuildChunkMesh(c, Neighbors{}, bitfield.LevelNone)
	}
}

func BenchmarkGreedyMeshPlane(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	var src Plane
	for i := range src {
		src[i] = rng.Uint64() | rng.Uint64()
	}
	out := make([]Face, 0, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := src
		out = GreedyMeshPlane(&p, 0, PlaneSize, out[:0])
	}
}
