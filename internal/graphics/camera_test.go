package graphics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// near compares component-wise by absolute difference. ApproxEqualThreshold
// is relative and needs a diff below eps*eps against an exact zero.
func near(a, b mgl32.Vec3) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > 1e-4 {
			return false
		}
	}
	return true
}

func TestCameraFront(t *testing.T) {
	c := NewCamera(800, 600)
	if !near(c.Front(), mgl32.Vec3{0, 0, -1}) {
		t.Fatalf("default front %v", c.Front())
	}
	c.Turn(90, 0)
	if !near(c.Front(), mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("yaw 90 front %v", c.Front())
	}
	if !near(c.Right(), mgl32.Vec3{0, 0, 1}) {
		t.Fatalf("yaw 90 right %v", c.Right())
	}
	c.Turn(-90, -45)
	if !near(c.Front(), mgl32.Vec3{0, -0.70710677, -0.70710677}) {
		t.Fatalf("pitch -45 front %v", c.Front())
	}
	c.Turn(0, 200)
	if c.Pitch != 89 {
		t.Fatalf("pitch not clamped: %f", c.Pitch)
	}
}

func TestCameraFrustum(t *testing.T) {
	c := NewCamera(800, 800)
	c.Position = mgl32.Vec3{10, 20, 30}
	f := c.Frustum()
	if !f.ContainsPoint(mgl32.Vec3{10, 20, 0}) {
		t.Fatal("point ahead not in frustum")
	}
	if f.ContainsPoint(mgl32.Vec3{10, 20, 60}) {
		t.Fatal("point behind in frustum")
	}
}
