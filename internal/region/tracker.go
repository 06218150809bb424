package region

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MoveTracker decides when the camera has changed enough for the draw list
// to be rebuilt.
type MoveTracker struct {
	distance float32
	cosAngle float32

	pos, dir mgl32.Vec3
	primed   bool
}

// NewMoveTracker fires after moving distance world units or turning by
// angleDegrees.
func NewMoveTracker(distance, angleDegrees float32) *MoveTracker {
	return &MoveTracker{
		distance: distance,
		cosAngle: float32(math.Cos(float64(mgl32.DegToRad(angleDegrees)))),
	}
}

// Moved reports whether pos/dir crossed a threshold since the last time it
// returned true. The first call always fires.
func (t *MoveTracker) Moved(pos, dir mgl32.Vec3) bool {
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	if t.primed && pos.Sub(t.pos).Len() < t.distance && dir.Dot(t.dir) > t.cosAngle {
		return false
	}
	t.pos, t.dir, t.primed = pos, dir, true
	return true
}

// Force makes the next Moved fire.
func (t *MoveTracker) Force() { t.primed = false }
