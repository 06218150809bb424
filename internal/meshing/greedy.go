package meshing

import (
	"math/bits"
	"sort"

	"voxelcore/internal/bitfield"
	"voxelcore/internal/profiling"
	"voxelcore/internal/world"
)

// Neighbors holds the chunks adjacent to the one being meshed, indexed by
// world.BlockFace. Missing neighbours count as air.
type Neighbors [6]*world.Chunk

// volume is a snapshot of a field in both row orientations.
type volume struct {
	rows  [bitfield.Rows]uint64 // (x,y) -> z bits
	trans [bitfield.Rows]uint64 // (z,y) -> x bits
}

func snapshotVolume(f *bitfield.Field) *volume {
	v := &volume{}
	f.Snapshot(&v.rows)
	f.Transposed().Snapshot(&v.trans)
	return v
}

// row returns row r of the face plane at layer along axis.
func (v *volume) row(axis, layer, r int) uint64 {
	switch axis {
	case 0:
		return v.rows[layer+r*bitfield.Size]
	case 1:
		return v.rows[r+layer*bitfield.Size]
	}
	return v.trans[layer+r*bitfield.Size]
}

func (v *volume) plane(axis, layer int, dst *Plane) {
	for r := range dst {
		dst[r] = v.row(axis, layer, r)
	}
}

// fieldPlane reads one face plane straight from a field.
func fieldPlane(f *bitfield.Field, axis, layer int, dst *Plane) {
	if axis == 2 {
		f = f.Transposed()
		for r := range dst {
			dst[r] = f.Row(layer, r)
		}
		return
	}
	for r := range dst {
		if axis == 0 {
			dst[r] = f.Row(layer, r)
		} else {
			dst[r] = f.Row(r, layer)
		}
	}
}

type builder struct {
	level bitfield.Level
	nb    Neighbors
	solid *volume

	nbSolid     [6]*Plane
	faces       []Face
	buckets     [256]*Plane
	usedBuckets []int
}

// BuildChunkMesh greedy-meshes every block layer of c at the given
// simplification level. Faces are culled against opaque blocks and, for
// transparent types, against blocks of the same type, including across the
// border into nb.
func BuildChunkMesh(c *world.Chunk, nb Neighbors, level bitfield.Level) *Mesh {
	defer profiling.Track("meshing.BuildChunkMesh")()
	m := NewMesh()
	layers := c.Layers()
	if len(layers) == 0 {
		return m
	}
	b := &builder{
		level: level,
		nb:    nb,
		solid: snapshotVolume(c.Solid().SimplifiedOrSelf(level)),
		faces: make([]Face, 0, 64),
	}
	for _, l := range layers {
		b.layer(m, l)
	}
	return m
}

func (b *builder) layer(m *Mesh, l world.Layer) {
	if l.Def.Shape == world.ShapeBillboard {
		if b.level == bitfield.LevelNone {
			b.billboards(m, l)
		}
		return
	}

	field := snapshotVolume(l.Field.SimplifiedOrSelf(b.level))
	occ := b.solid
	if !l.Def.Opaque() {
		occ = &volume{}
		for i := range occ.rows {
			occ.rows[i] = b.solid.rows[i] | field.rows[i]
			occ.trans[i] = b.solid.trans[i] | field.trans[i]
		}
	}

	var faces, adjOcc, adjAO Plane
	for axis := 0; axis < 3; axis++ {
		for _, forward := range [2]bool{true, false} {
			face := world.BlockFace(axis * 2)
			step := 1
			if !forward {
				face++
				step = -1
			}
			tex := l.Def.Textures[face]
			for layer := 0; layer < bitfield.Size; layer++ {
				adj := layer + step
				if adj >= 0 && adj < bitfield.Size {
					occ.plane(axis, adj, &adjOcc)
					b.solid.plane(axis, adj, &adjAO)
				} else {
					adjAO = *b.neighborSolid(face)
					if l.Def.Opaque() {
						adjOcc = adjAO
					} else {
						b.neighborOccluder(face, l.Type, &adjOcc)
					}
				}
				var seen uint64
				for r := range faces {
					faces[r] = field.row(axis, layer, r) &^ adjOcc[r]
					seen |= faces[r]
				}
				if seen == 0 {
					continue
				}
				b.emit(m, face, layer, &faces, &adjAO, tex)
			}
		}
	}
}

// neighborLayer is the layer of the adjacent chunk touching face.
func neighborLayer(face world.BlockFace) int {
	if face.Forward() {
		return 0
	}
	return bitfield.Size - 1
}

func (b *builder) neighborSolid(face world.BlockFace) *Plane {
	if p := b.nbSolid[face]; p != nil {
		return p
	}
	p := &Plane{}
	if n := b.nb[face]; n != nil {
		fieldPlane(n.Solid().SimplifiedOrSelf(b.level), face.Axis(), neighborLayer(face), p)
	}
	b.nbSolid[face] = p
	return p
}

func (b *builder) neighborOccluder(face world.BlockFace, t world.BlockType, dst *Plane) {
	*dst = *b.neighborSolid(face)
	n := b.nb[face]
	if n == nil {
		return
	}
	f := n.Layer(t)
	if f == nil {
		return
	}
	var same Plane
	fieldPlane(f.SimplifiedOrSelf(b.level), face.Axis(), neighborLayer(face), &same)
	for r := range dst {
		dst[r] |= same[r]
	}
}

// vertexAO is the occlusion of one quad corner from its two side cells and
// the diagonal cell: 0 is open, 3 is fully occluded.
func vertexAO(side1, side2, corner bool) uint8 {
	if side1 && side2 {
		return 3
	}
	var n uint8
	if side1 {
		n++
	}
	if side2 {
		n++
	}
	if corner {
		n++
	}
	return n
}

func aoKey(ao [4]uint8) int {
	return int(ao[0]) | int(ao[1])<<2 | int(ao[2])<<4 | int(ao[3])<<6
}

func aoFromKey(k int) [4]uint8 {
	return [4]uint8{uint8(k & 3), uint8(k >> 2 & 3), uint8(k >> 4 & 3), uint8(k >> 6 & 3)}
}

// emit groups the face bits by corner occlusion and greedy-meshes each group,
// so merged quads never mix occlusion patterns.
func (b *builder) emit(m *Mesh, face world.BlockFace, layer int, faces, ao *Plane, tex uint16) {
	var open Plane
	for r := 0; r < PlaneSize; r++ {
		cur := ao[r]
		var prev, next uint64
		if r > 0 {
			prev = ao[r-1]
		}
		if r < PlaneSize-1 {
			next = ao[r+1]
		}
		near := cur>>1 | cur<<1 | prev | prev>>1 | prev<<1 | next | next>>1 | next<<1
		open[r] = faces[r] &^ near
		shaded := faces[r] & near
		for shaded != 0 {
			c := bits.LeadingZeros64(shaded)
			bit := uint64(1) << uint(63-c)
			shaded &^= bit
			l, rt := cur>>1&bit != 0, cur<<1&bit != 0
			d, u := prev&bit != 0, next&bit != 0
			corners := [4]uint8{
				vertexAO(l, d, prev>>1&bit != 0),
				vertexAO(rt, d, prev<<1&bit != 0),
				vertexAO(rt, u, next<<1&bit != 0),
				vertexAO(l, u, next>>1&bit != 0),
			}
			k := aoKey(corners)
			p := b.buckets[k]
			if p == nil {
				p = &Plane{}
				b.buckets[k] = p
			}
			if *p == (Plane{}) {
				b.usedBuckets = append(b.usedBuckets, k)
			}
			p[r] |= bit
		}
	}

	b.faces = GreedyMeshPlane(&open, 0, PlaneSize, b.faces[:0])
	for _, f := range b.faces {
		m.AddQuad(face, layer, f, tex, [4]uint8{})
	}
	if len(b.usedBuckets) == 0 {
		return
	}
	sort.Ints(b.usedBuckets)
	for _, k := range b.usedBuckets {
		corners := aoFromKey(k)
		b.faces = GreedyMeshPlane(b.buckets[k], 0, PlaneSize, b.faces[:0])
		for _, f := range b.faces {
			m.AddQuad(face, layer, f, tex, corners)
		}
	}
	b.usedBuckets = b.usedBuckets[:0]
}

func (b *builder) billboards(m *Mesh, l world.Layer) {
	var rows [bitfield.Rows]uint64
	l.Field.Snapshot(&rows)
	tex := l.Def.Textures[world.FaceTop]
	for y := 0; y < bitfield.Size; y++ {
		for x := 0; x < bitfield.Size; x++ {
			row := rows[x+y*bitfield.Size]
			for row != 0 {
				z := bits.LeadingZeros64(row)
				row &^= 1 << uint(63-z)
				m.AddBillboard(x, y, z, tex)
			}
		}
	}
}
