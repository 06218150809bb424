package meshing

import "math/bits"

// PlaneSize is the width and height of a face plane.
const PlaneSize = 64

// Plane is a 64x64 bit mask. Row r, column c is bit 63-c of Plane[r].
type Plane [PlaneSize]uint64

// Face is a rectangle on a plane: columns [X, X+Width), rows [Y, Y+Height).
type Face struct {
	X, Y          int
	Width, Height int
}

// runMask returns the bits of columns [x, x+w).
func runMask(x, w int) uint64 {
	return (^uint64(0) >> uint(x)) &^ (^uint64(0) >> uint(x+w))
}

// GreedyMeshPlane covers the set bits of rows [start, end) with rectangles,
// widest run first and then as tall as the exact run allows. It consumes the
// plane and appends faces to out.
func GreedyMeshPlane(p *Plane, start, end int, out []Face) []Face {
	if start < 0 {
		start = 0
	}
	if end > PlaneSize {
		end = PlaneSize
	}
	for row := start; row < end; row++ {
		for p[row] != 0 {
			r := p[row]
			x := bits.LeadingZeros64(r)
			w := bits.LeadingZeros64(^(r << uint(x)))
			mask := runMask(x, w)

			p[row] &^= mask
			h := 1
			for row+h < end && p[row+h]&mask == mask {
				p[row+h] &^= mask
				h++
			}
			out = append(out, Face{X: x, Y: row, Width: w, Height: h})
		}
	}
	return out
}
