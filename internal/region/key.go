package region

import (
	"fmt"

	"voxelcore/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Key identifies a region: Pos is in units of the region's own size, so a
// level-1 key is a chunk coordinate and a level-L key spans 2^(L-1) chunks
// per axis.
type Key struct {
	Pos   world.ChunkCoord
	Level int
}

// LeafKey returns the level-1 key of chunk pos.
func LeafKey(pos world.ChunkCoord) Key { return Key{Pos: pos, Level: 1} }

// Parent returns the key of the region containing k one level up.
func (k Key) Parent() Key {
	return Key{
		Pos: world.ChunkCoord{
			X: world.FloorDiv(k.Pos.X, 2),
			Y: world.FloorDiv(k.Pos.Y, 2),
			Z: world.FloorDiv(k.Pos.Z, 2),
		},
		Level: k.Level + 1,
	}
}

// Child returns the sub-region at offset (x,y,z) in {0,1}^3.
func (k Key) Child(x, y, z int) Key {
	return Key{
		Pos:   world.ChunkCoord{X: k.Pos.X*2 + x, Y: k.Pos.Y*2 + y, Z: k.Pos.Z*2 + z},
		Level: k.Level - 1,
	}
}

// ChildBit is k's bit in its parent's child mask.
func (k Key) ChildBit() uint8 {
	return 1 << uint(k.Pos.X&1|(k.Pos.Y&1)<<1|(k.Pos.Z&1)<<2)
}

// Span returns the region edge length in chunks.
func (k Key) Span() int { return 1 << uint(k.Level-1) }

// Bounds returns the region's box in world block units.
func (k Key) Bounds() (min, max mgl32.Vec3) {
	edge := float32(k.Span() * world.ChunkSize)
	min = mgl32.Vec3{float32(k.Pos.X) * edge, float32(k.Pos.Y) * edge, float32(k.Pos.Z) * edge}
	max = min.Add(mgl32.Vec3{edge, edge, edge})
	return min, max
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d,%d)@%d", k.Pos.X, k.Pos.Y, k.Pos.Z, k.Level)
}

func childOffset(bit int) (x, y, z int) {
	return bit & 1, bit >> 1 & 1, bit >> 2 & 1
}
