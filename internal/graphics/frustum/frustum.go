// Package frustum extracts view frustum planes and classifies boxes against them.
package frustum

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Visibility is the result of testing a box against a frustum.
type Visibility int

const (
	Outside Visibility = iota
	Intersecting
	Inside
)

func (v Visibility) String() string {
	switch v {
	case Outside:
		return "outside"
	case Intersecting:
		return "intersecting"
	case Inside:
		return "inside"
	}
	return "unknown"
}

// Plane is a*x + b*y + c*z + d = 0 with a unit normal pointing into the frustum.
type Plane struct {
	A, B, C, D float32
}

// Distance returns the signed distance of p from the plane.
func (pl Plane) Distance(p mgl32.Vec3) float32 {
	return pl.A*p[0] + pl.B*p[1] + pl.C*p[2] + pl.D
}

// Frustum holds six planes in order: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
	// Margin inflates every box before testing, in world units.
	Margin float32
}

// FromMatrix builds a frustum from the combined projection*view matrix.
func FromMatrix(clip mgl32.Mat4) *Frustum {
	// mgl32 matrices are column-major
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	f := &Frustum{}
	f.Planes[0] = normalize(Plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03})
	f.Planes[1] = normalize(Plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03})
	f.Planes[2] = normalize(Plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13})
	f.Planes[3] = normalize(Plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13})
	f.Planes[4] = normalize(Plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23})
	f.Planes[5] = normalize(Plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23})
	return f
}

func normalize(p Plane) Plane {
	l := float32(math.Sqrt(float64(p.A*p.A + p.B*p.B + p.C*p.C)))
	if l == 0 {
		return p
	}
	return Plane{p.A / l, p.B / l, p.C / l, p.D / l}
}

// ClassifyAABB tests the box [min, max] against every plane. A box is Outside
// when its positive vertex is behind any plane and Inside when its negative
// vertex is in front of all of them.
func (f *Frustum) ClassifyAABB(min, max mgl32.Vec3) Visibility {
	if f.Margin != 0 {
		m := mgl32.Vec3{f.Margin, f.Margin, f.Margin}
		min, max = min.Sub(m), max.Add(m)
	}
	result := Inside
	for _, p := range f.Planes {
		px, nx := max[0], min[0]
		if p.A < 0 {
			px, nx = nx, px
		}
		py, ny := max[1], min[1]
		if p.B < 0 {
			py, ny = ny, py
		}
		pz, nz := max[2], min[2]
		if p.C < 0 {
			pz, nz = nz, pz
		}
		if p.A*px+p.B*py+p.C*pz+p.D < 0 {
			return Outside
		}
		if p.A*nx+p.B*ny+p.C*nz+p.D < 0 {
			result = Intersecting
		}
	}
	return result
}

// IntersectsAABB reports whether any part of [min, max] may be visible.
func (f *Frustum) IntersectsAABB(min, max mgl32.Vec3) bool {
	return f.ClassifyAABB(min, max) != Outside
}

// ContainsPoint reports whether p is inside or on every plane.
func (f *Frustum) ContainsPoint(p mgl32.Vec3) bool {
	for _, pl := range f.Planes {
		if pl.Distance(p) < 0 {
			return false
		}
	}
	return true
}
