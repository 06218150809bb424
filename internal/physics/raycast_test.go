package physics_test

import (
	"testing"

	"voxelcore/internal/bitfield"
	"voxelcore/internal/physics"
	"voxelcore/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRaycast(t *testing.T) {
	w := world.NewChunkStore(bitfield.NewCache(512))
	w.Set(5, 0, 0, world.BlockTypeStone)

	start := mgl32.Vec3{0.5, 0.5, 0.5}
	dir := mgl32.Vec3{1, 0, 0}

	result := physics.Raycast(start, dir, 0.1, 10, w)
	if !result.Hit {
		t.Fatalf("Expected hit, got miss")
	}
	if result.HitPosition != [3]int{5, 0, 0} {
		t.Errorf("Expected hit at {5,0,0}, got %v", result.HitPosition)
	}
	if result.AdjacentPosition != [3]int{4, 0, 0} {
		t.Errorf("Expected adjacent at {4,0,0}, got %v", result.AdjacentPosition)
	}
	if result.Face != world.FaceWest {
		t.Errorf("Expected west face, got %v", result.Face)
	}
	// ray starts at x=0.5 and enters the block at x=5
	if result.Distance < 4.49 || result.Distance > 4.51 {
		t.Errorf("Expected distance 4.5, got %f", result.Distance)
	}

	if r := physics.Raycast(start, dir, 0.1, 4, w); r.Hit {
		t.Errorf("Expected miss due to maxDist, got hit at %v", r.HitPosition)
	}
	if r := physics.Raycast(start, mgl32.Vec3{0, 1, 0}, 0.1, 10, w); r.Hit {
		t.Errorf("Expected miss, got hit")
	}
	if r := physics.Raycast(start, mgl32.Vec3{}, 0.1, 10, w); r.Hit {
		t.Errorf("zero direction hit")
	}

	// (1,1,1) from (0.5,0.5,0.5) crosses x, y and z=2 at t = 1.5*sqrt(3)
	w.Set(2, 2, 2, world.BlockTypeStone)
	diag := physics.Raycast(start, mgl32.Vec3{1, 1, 1}, 0.1, 10, w)
	if !diag.Hit || diag.HitPosition != [3]int{2, 2, 2} {
		t.Errorf("Expected hit at {2,2,2}, got %+v", diag)
	}
}

func TestRaycastNegativeCoordinates(t *testing.T) {
	w := world.NewChunkStore(bitfield.NewCache(512))
	w.Set(-70, 10, -3, world.BlockTypeDirt)

	r := physics.Raycast(mgl32.Vec3{-60.5, 10.5, -2.5}, mgl32.Vec3{-1, 0, 0}, 0, 20, w)
	if !r.Hit || r.HitPosition != [3]int{-70, 10, -3} {
		t.Fatalf("hit %+v", r)
	}
	if r.AdjacentPosition != [3]int{-69, 10, -3} || r.Face != world.FaceEast {
		t.Fatalf("adjacent %v face %v", r.AdjacentPosition, r.Face)
	}
}
