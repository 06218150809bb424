package meshing

import (
	"encoding/binary"

	"voxelcore/internal/world"
)

// Vertex layout, two uint32 words per vertex:
//
//	word 0: x 7b | y 7b<<7 | z 7b<<14 | face 3b<<21 | ao 2b<<24 | billboard 1b<<26
//	word 1: texture 16b
//
// Positions are chunk-local corners in [0,64]. The chunk origin comes from the
// instance slot referenced by the draw command's base instance.
const (
	VertexWords  = 2
	VertexBytes  = VertexWords * 4
	IndexBytes   = 4
	billboardBit = 1 << 26
)

// axes of the in-plane coordinates for each normal axis: rows, then columns.
var planeAxes = [3][2]int{
	{1, 2}, // X faces: rows y, cols z
	{0, 2}, // Y faces: rows x, cols z
	{1, 0}, // Z faces: rows y, cols x
}

// Mesh is packed chunk geometry ready for upload.
type Mesh struct {
	vertices []uint32
	indices  []uint32
	quads    int
}

// NewMesh returns an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{}
}

// Empty reports whether the mesh has no geometry.
func (m *Mesh) Empty() bool { return len(m.indices) == 0 }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.vertices) / VertexWords }

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return len(m.indices) }

// Quads returns the number of quads emitted.
func (m *Mesh) Quads() int { return m.quads }

// WriteVertices copies packed vertices into dst, which must hold
// VertexCount()*VertexBytes bytes.
func (m *Mesh) WriteVertices(dst []byte) {
	for i, w := range m.vertices {
		binary.LittleEndian.PutUint32(dst[i*4:], w)
	}
}

// WriteIndices copies indices into dst, which must hold IndexCount()*IndexBytes bytes.
func (m *Mesh) WriteIndices(dst []byte) {
	for i, v := range m.indices {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}

// Vertex returns the packed words of vertex i.
func (m *Mesh) Vertex(i int) (uint32, uint32) {
	return m.vertices[i*VertexWords], m.vertices[i*VertexWords+1]
}

// Index returns index i.
func (m *Mesh) Index(i int) uint32 { return m.indices[i] }

// Reset empties the mesh, keeping its capacity.
func (m *Mesh) Reset() {
	m.vertices = m.vertices[:0]
	m.indices = m.indices[:0]
	m.quads = 0
}

func packVertex(x, y, z int, face world.BlockFace, ao uint8, billboard bool) uint32 {
	w := uint32(x)&0x7F | (uint32(y)&0x7F)<<7 | (uint32(z)&0x7F)<<14 |
		(uint32(face)&0x7)<<21 | (uint32(ao)&0x3)<<24
	if billboard {
		w |= billboardBit
	}
	return w
}

// UnpackPosition decodes the position of a packed vertex word.
func UnpackPosition(w uint32) (x, y, z int) {
	return int(w & 0x7F), int(w >> 7 & 0x7F), int(w >> 14 & 0x7F)
}

// UnpackFace decodes the face and ambient occlusion of a packed vertex word.
func UnpackFace(w uint32) (face world.BlockFace, ao uint8, billboard bool) {
	return world.BlockFace(w >> 21 & 0x7), uint8(w >> 24 & 0x3), w&billboardBit != 0
}

// windingFlip is true when the natural corner order of a plane is clockwise
// seen from the positive side of the axis.
var windingFlip = [3]bool{true, false, false}

// AddQuad appends face f of plane layer (in block units) facing face, with
// per-corner occlusion ao ordered (u0,v0), (u1,v0), (u1,v1), (u0,v1).
func (m *Mesh) AddQuad(face world.BlockFace, layer int, f Face, texture uint16, ao [4]uint8) {
	axis := face.Axis()
	d := layer
	if face.Forward() {
		d++
	}
	rowAxis, colAxis := planeAxes[axis][0], planeAxes[axis][1]
	u0, u1 := f.X, f.X+f.Width
	v0, v1 := f.Y, f.Y+f.Height
	corners := [4][2]int{{u0, v0}, {u1, v0}, {u1, v1}, {u0, v1}}

	base := uint32(m.VertexCount())
	for i, c := range corners {
		var p [3]int
		p[axis] = d
		p[colAxis] = c[0]
		p[rowAxis] = c[1]
		m.vertices = append(m.vertices, packVertex(p[0], p[1], p[2], face, ao[i], false), uint32(texture))
	}

	ccw := face.Forward() != windingFlip[axis]
	// split along the diagonal with the lower combined occlusion
	alt := int(ao[0])+int(ao[2]) > int(ao[1])+int(ao[3])
	switch {
	case ccw && !alt:
		m.indices = append(m.indices, base, base+1, base+2, base+2, base+3, base)
	case ccw && alt:
		m.indices = append(m.indices, base+1, base+2, base+3, base+3, base, base+1)
	case !ccw && !alt:
		m.indices = append(m.indices, base, base+3, base+2, base+2, base+1, base)
	default:
		m.indices = append(m.indices, base+1, base, base+3, base+3, base+2, base+1)
	}
	m.quads++
}

// AddBillboard appends two crossed, double-sided diagonal quads filling cell
// (x,y,z).
func (m *Mesh) AddBillboard(x, y, z int, texture uint16) {
	diagonals := [2][4][3]int{
		{{x, y, z}, {x + 1, y, z + 1}, {x + 1, y + 1, z + 1}, {x, y + 1, z}},
		{{x + 1, y, z}, {x, y, z + 1}, {x, y + 1, z + 1}, {x + 1, y + 1, z}},
	}
	for _, q := range diagonals {
		base := uint32(m.VertexCount())
		for _, p := range q {
			m.vertices = append(m.vertices, packVertex(p[0], p[1], p[2], world.FaceTop, 0, true), uint32(texture))
		}
		m.indices = append(m.indices,
			base, base+1, base+2, base+2, base+3, base,
			base, base+3, base+2, base+2, base+1, base,
		)
		m.quads++
	}
}
