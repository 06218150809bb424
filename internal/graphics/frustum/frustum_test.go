package frustum

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testFrustum() *Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return FromMatrix(proj.Mul4(view))
}

func TestClassifyAABB(t *testing.T) {
	f := testFrustum()
	tests := []struct {
		name     string
		min, max mgl32.Vec3
		want     Visibility
	}{
		{"ahead", mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -9}, Inside},
		{"behind", mgl32.Vec3{-1, -1, 9}, mgl32.Vec3{1, 1, 11}, Outside},
		{"left", mgl32.Vec3{-40, -1, -11}, mgl32.Vec3{-30, 1, -9}, Outside},
		{"beyond far", mgl32.Vec3{-1, -1, -300}, mgl32.Vec3{1, 1, -200}, Outside},
		{"straddles side", mgl32.Vec3{-100, -1, -11}, mgl32.Vec3{0, 1, -9}, Intersecting},
		{"contains camera", mgl32.Vec3{-5, -5, -5}, mgl32.Vec3{5, 5, 5}, Intersecting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.ClassifyAABB(tt.min, tt.max); got != tt.want {
				t.Fatalf("ClassifyAABB = %v, want %v", got, tt.want)
			}
			if got := f.IntersectsAABB(tt.min, tt.max); got != (tt.want != Outside) {
				t.Fatalf("IntersectsAABB = %v", got)
			}
		})
	}
}

func TestMarginInflates(t *testing.T) {
	f := testFrustum()
	min, max := mgl32.Vec3{-1, -1, 0.5}, mgl32.Vec3{1, 1, 1}
	if f.IntersectsAABB(min, max) {
		t.Fatal("box behind the camera should be outside")
	}
	f.Margin = 1
	if !f.IntersectsAABB(min, max) {
		t.Fatal("margin should pull the box into view")
	}
}

func TestPlanesNormalized(t *testing.T) {
	f := testFrustum()
	for i, p := range f.Planes {
		l := mgl32.Vec3{p.A, p.B, p.C}.Len()
		if l < 0.999 || l > 1.001 {
			t.Errorf("plane %d normal length %f", i, l)
		}
	}
	if !f.ContainsPoint(mgl32.Vec3{0, 0, -50}) {
		t.Error("point on the view axis not contained")
	}
	if f.ContainsPoint(mgl32.Vec3{0, 0, 50}) {
		t.Error("point behind the camera contained")
	}
}
