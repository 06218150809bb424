// Package physics holds ray queries against the block grid.
package physics

import (
	"math"

	"voxelcore/internal/profiling"
	"voxelcore/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MinReachDistance = 0.1
	MaxReachDistance = 6.0
)

// Blocks is the block lookup a ray walks through. *world.ChunkStore
// satisfies it.
type Blocks interface {
	Get(x, y, z int) world.BlockType
}

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	HitPosition      [3]int
	AdjacentPosition [3]int
	Face             world.BlockFace // face of the hit block the ray entered through
	Distance         float32
	Hit              bool
}

// Raycast walks the cells crossed by the ray from start along direction and
// returns the first non-air block between minDist and maxDist. Block (x,y,z)
// covers [x,x+1) on each axis.
func Raycast(start, direction mgl32.Vec3, minDist, maxDist float32, blocks Blocks) RaycastResult {
	defer profiling.Track("physics.Raycast")()
	if direction.Len() == 0 {
		return RaycastResult{}
	}
	dir := direction.Normalize()

	var cell, step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		cell[i] = int(math.Floor(float64(start[i])))
		switch {
		case dir[i] > 0:
			step[i] = 1
			tDelta[i] = 1 / dir[i]
			tMax[i] = (float32(cell[i]+1) - start[i]) / dir[i]
		case dir[i] < 0:
			step[i] = -1
			tDelta[i] = -1 / dir[i]
			tMax[i] = (float32(cell[i]) - start[i]) / dir[i]
		default:
			tDelta[i] = float32(math.Inf(1))
			tMax[i] = float32(math.Inf(1))
		}
	}

	prev := cell
	var dist float32
	entered := world.BlockFace(-1)
	for dist <= maxDist {
		if dist >= minDist && blocks.Get(cell[0], cell[1], cell[2]) != world.BlockTypeAir {
			return RaycastResult{
				HitPosition:      cell,
				AdjacentPosition: prev,
				Face:             entered,
				Distance:         dist,
				Hit:              true,
			}
		}
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		prev = cell
		dist = tMax[axis]
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		// moving +axis enters through the block's negative face
		entered = world.BlockFace(axis * 2)
		if step[axis] > 0 {
			entered++
		}
	}
	return RaycastResult{}
}
