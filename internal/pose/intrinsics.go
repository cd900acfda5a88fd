package pose

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Intrinsics is a pinhole camera matrix.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// NewIntrinsics builds a camera for a frame of the given size from its
// vertical field of view in degrees. The principal point is the frame centre
// and pixels are square.
func NewIntrinsics(width, height int, fovDeg float64) Intrinsics {
	f := (float64(height) / 2) / math.Tan(fovDeg*math.Pi/360)
	return Intrinsics{
		Fx: f,
		Fy: f,
		Cx: float64(width) / 2,
		Cy: float64(height) / 2,
	}
}

// Matrix returns K.
func (k Intrinsics) Matrix() [3][3]float64 {
	return [3][3]float64{
		{k.Fx, 0, k.Cx},
		{0, k.Fy, k.Cy},
		{0, 0, 1},
	}
}

// Project maps a camera-space point to pixels. ok is false for points at or
// behind the camera plane.
func (k Intrinsics) Project(p r3.Vector) (r2.Point, bool) {
	if p.Z <= 1e-12 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: k.Fx*p.X/p.Z + k.Cx,
		Y: k.Fy*p.Y/p.Z + k.Cy,
	}, true
}

// Projection returns a row-major OpenGL projection matrix for a frame of the
// given size, matching this camera. Pair it with ModelViewTransform.GL.
func (k Intrinsics) Projection(width, height int, near, far float64) [16]float64 {
	w := float64(width)
	h := float64(height)
	return [16]float64{
		2 * k.Fx / w, 0, 1 - 2*k.Cx/w, 0,
		0, 2 * k.Fy / h, 2*k.Cy/h - 1, 0,
		0, 0, -(far + near) / (far - near), -2 * far * near / (far - near),
		0, 0, -1, 0,
	}
}
