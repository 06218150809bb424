// Package terrain schedules chunk generation, meshing and upload around the
// viewer.
package terrain

import (
	"voxelcore/internal/bitfield"
	"voxelcore/internal/world"
)

// Generator fills a freshly created chunk.
type Generator interface {
	Generate(c *world.Chunk)
}

// FuncGenerator adapts a function to Generator.
type FuncGenerator func(c *world.Chunk)

func (f FuncGenerator) Generate(c *world.Chunk) { f(c) }

// FlatGenerator fills every block below Height with Fill and the top layer
// with Surface. Decoration, when set, is placed on the surface of every
// DecorEvery-th column in both axes.
type FlatGenerator struct {
	Height     int
	Fill       world.BlockType
	Surface    world.BlockType
	Decoration world.BlockType
	DecorEvery int
}

func (g FlatGenerator) Generate(c *world.Chunk) {
	_, oy, _ := c.Coord.Origin()
	var fill, surface [bitfield.Rows]uint64
	var anyFill, anySurface bool
	for y := 0; y < world.ChunkSize; y++ {
		wy := oy + y
		var dst *[bitfield.Rows]uint64
		switch {
		case wy < g.Height-1:
			dst, anyFill = &fill, true
		case wy == g.Height-1:
			dst, anySurface = &surface, true
		default:
			continue
		}
		for x := 0; x < world.ChunkSize; x++ {
			dst[x+y*world.ChunkSize] = ^uint64(0)
		}
	}
	if anyFill && g.Fill != world.BlockTypeAir {
		c.SetLayer(g.Fill, &fill)
	}
	if anySurface && g.Surface != world.BlockTypeAir {
		c.SetLayer(g.Surface, &surface)
	}

	ly := g.Height - oy
	if g.Decoration == world.BlockTypeAir || g.DecorEvery <= 0 || ly < 0 || ly >= world.ChunkSize {
		return
	}
	ox, _, oz := c.Coord.Origin()
	for x := 0; x < world.ChunkSize; x++ {
		if (ox+x)%g.DecorEvery != 0 {
			continue
		}
		for z := 0; z < world.ChunkSize; z++ {
			if (oz+z)%g.DecorEvery == 0 {
				c.SetBlock(x, ly, z, g.Decoration)
			}
		}
	}
}
