package terrain

import "voxelcore/internal/bitfield"

// SimplificationLevel maps a distance in chunks from the viewer to the
// level of detail used for meshing: three chunks per step, full detail
// closest in.
func SimplificationLevel(distance int) bitfield.Level {
	step := min(max(distance/3, 0), 7) - 1
	return bitfield.Level(min(max(step, int(bitfield.LevelNone)), int(bitfield.LevelTo1)))
}
