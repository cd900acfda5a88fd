// Package pose recovers and refines the camera pose of a planar target.
//
// Target-plane points are (X, Y, 0) in target units. Camera space follows the
// computer-vision convention: x right, y down, z forward. A point is in front
// of the camera when its camera-space z is positive.
package pose

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// ModelViewTransform is a 3x4 rigid transform [R | t] from the target plane
// into camera space, row-major.
type ModelViewTransform [3][4]float64

// NewModelViewTransform assembles a transform from rotation columns and a
// translation.
func NewModelViewTransform(r1, r2v, r3v, t r3.Vector) ModelViewTransform {
	return ModelViewTransform{
		{r1.X, r2v.X, r3v.X, t.X},
		{r1.Y, r2v.Y, r3v.Y, t.Y},
		{r1.Z, r2v.Z, r3v.Z, t.Z},
	}
}

// Column returns rotation column i (0-2) or the translation (3).
func (m ModelViewTransform) Column(i int) r3.Vector {
	return r3.Vector{X: m[0][i], Y: m[1][i], Z: m[2][i]}
}

// Translation returns t.
func (m ModelViewTransform) Translation() r3.Vector {
	return m.Column(3)
}

// Rotate applies R to a camera-independent vector.
func (m ModelViewTransform) Rotate(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Apply maps a target-plane point into camera space.
func (m ModelViewTransform) Apply(p r2.Point) r3.Vector {
	return m.Rotate(r3.Vector{X: p.X, Y: p.Y}).Add(m.Translation())
}

// withUpdate returns exp([omega]x) R and t + dt.
func (m ModelViewTransform) withUpdate(omega, dt r3.Vector) ModelViewTransform {
	dr := rodrigues(omega)
	var out ModelViewTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = dr[i][0]*m[0][j] + dr[i][1]*m[1][j] + dr[i][2]*m[2][j]
		}
	}
	t := m.Translation().Add(dt)
	out[0][3], out[1][3], out[2][3] = t.X, t.Y, t.Z
	return out
}

// MaxDifference returns the largest absolute element difference.
func (m ModelViewTransform) MaxDifference(o ModelViewTransform) float64 {
	d := 0.0
	for i := range m {
		for j := range m[i] {
			d = math.Max(d, math.Abs(m[i][j]-o[i][j]))
		}
	}
	return d
}

// GL returns the transform as a row-major 4x4 model-view matrix in the OpenGL
// convention (y up, looking down -z).
func (m ModelViewTransform) GL() [16]float64 {
	return [16]float64{
		m[0][0], m[0][1], m[0][2], m[0][3],
		-m[1][0], -m[1][1], -m[1][2], -m[1][3],
		-m[2][0], -m[2][1], -m[2][2], -m[2][3],
		0, 0, 0, 1,
	}
}

func rodrigues(w r3.Vector) [3][3]float64 {
	theta := w.Norm()
	if theta < 1e-12 {
		return [3][3]float64{
			{1, -w.Z, w.Y},
			{w.Z, 1, -w.X},
			{-w.Y, w.X, 1},
		}
	}
	k := w.Mul(1 / theta)
	c := math.Cos(theta)
	s := math.Sin(theta)
	v := 1 - c
	return [3][3]float64{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}
}
