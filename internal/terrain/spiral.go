package terrain

// Column is a chunk column offset or position in the XZ plane.
type Column struct {
	X, Z int
}

// Ring returns the Chebyshev distance of c from the origin.
func (c Column) Ring() int {
	return max(abs(c.X), abs(c.Z))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Spiral returns every column offset within radius, ring by ring from the
// centre outwards. Within a ring the walk goes along -Z, +X, +Z, then -X.
func Spiral(radius int) []Column {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]Column, 0, side*side)
	out = append(out, Column{})
	for r := 1; r <= radius; r++ {
		for x := -r; x <= r; x++ {
			out = append(out, Column{x, -r})
		}
		for z := -r + 1; z <= r-1; z++ {
			out = append(out, Column{r, z})
		}
		for x := r; x >= -r; x-- {
			out = append(out, Column{x, r})
		}
		for z := r - 1; z >= -r+1; z-- {
			out = append(out, Column{-r, z})
		}
	}
	return out
}
