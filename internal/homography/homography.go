// Package homography provides planar projective transforms and their
// least-squares estimation from point correspondences.
package homography

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// minConditioning is the smallest ratio of the eighth to the first singular
// value of the DLT design matrix for which the solution is considered unique.
const minConditioning = 1e-9

// minDeterminant rejects transforms that collapse the plane.
const minDeterminant = 1e-10

// Matrix is a 3x3 homography in row-major order.
type Matrix [9]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Scale returns a transform scaling x by sx and y by sy.
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, 0, sy, 0, 0, 0, 1}
}

// Project maps a point. The boolean is false when the point maps to infinity.
func (h Matrix) Project(p r2.Point) (r2.Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Mul returns h * o, the transform applying o first.
func (h Matrix) Mul(o Matrix) Matrix {
	var r Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = h[i*3]*o[j] + h[i*3+1]*o[3+j] + h[i*3+2]*o[6+j]
		}
	}
	return r
}

// Normalized scales h so that its bottom-right element is 1.
func (h Matrix) Normalized() Matrix {
	if h[8] == 0 {
		return h
	}
	s := 1 / h[8]
	for i := range h {
		h[i] *= s
	}
	return h
}

// Blend returns (1-alpha)*h + alpha*o after normalising both.
func (h Matrix) Blend(o Matrix, alpha float64) Matrix {
	a := h.Normalized()
	b := o.Normalized()
	var r Matrix
	for i := range r {
		r[i] = (1-alpha)*a[i] + alpha*b[i]
	}
	return r
}

// Dense returns h as a gonum matrix.
func (h Matrix) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// Det returns the determinant of h.
func (h Matrix) Det() float64 {
	return mat.Det(h.Dense())
}

// Inverse returns the inverse transform, or false if h is singular.
func (h Matrix) Inverse() (Matrix, bool) {
	if math.Abs(h.Det()) < minDeterminant {
		return Matrix{}, false
	}
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Matrix{}, false
	}
	var r Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = inv.At(i, j)
		}
	}
	return r.Normalized(), true
}

// normalization returns the similarity moving the weighted centroid of pts to
// the origin with mean distance √2, and its inverse.
func normalization(pts []r2.Point) (t, inv Matrix, ok bool) {
	var c r2.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))

	mean := 0.0
	for _, p := range pts {
		mean += p.Sub(c).Norm()
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return Matrix{}, Matrix{}, false
	}

	s := math.Sqrt2 / mean
	t = Matrix{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}
	inv = Matrix{1 / s, 0, c.X, 0, 1 / s, c.Y, 0, 0, 1}
	return t, inv, true
}

// Fit estimates the homography mapping src onto dst with the normalised direct
// linear transform, solved by SVD.
//
// weights, when non-nil, scale each correspondence's contribution to the least
// squares. At least four correspondences with non-zero weight are required. The
// boolean is false when the system is ill-conditioned (fewer than four points in
// general position) or the solution is singular.
func Fit(src, dst []r2.Point, weights []float64) (Matrix, bool) {
	n := len(src)
	if n < 4 || len(dst) != n || (weights != nil && len(weights) != n) {
		return Matrix{}, false
	}

	ts, _, ok := normalization(src)
	if !ok {
		return Matrix{}, false
	}
	td, tdInv, ok := normalization(dst)
	if !ok {
		return Matrix{}, false
	}

	rows := 2 * n
	if rows < 9 {
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	used := 0
	for i := 0; i < n; i++ {
		w := 1.0
		if weights != nil {
			if weights[i] <= 0 {
				continue
			}
			w = math.Sqrt(weights[i])
		}
		used++
		p, _ := ts.Project(src[i])
		q, _ := td.Project(dst[i])
		a.SetRow(2*i, []float64{-p.X * w, -p.Y * w, -w, 0, 0, 0, q.X * p.X * w, q.X * p.Y * w, q.X * w})
		a.SetRow(2*i+1, []float64{0, 0, 0, -p.X * w, -p.Y * w, -w, q.Y * p.X * w, q.Y * p.Y * w, q.Y * w})
	}
	if used < 4 {
		return Matrix{}, false
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Matrix{}, false
	}
	vals := svd.Values(nil)
	if vals[0] == 0 || vals[7]/vals[0] < minConditioning {
		return Matrix{}, false
	}

	var v mat.Dense
	svd.VTo(&v)
	var hn Matrix
	for i := range hn {
		hn[i] = v.At(i, 8)
	}

	h := tdInv.Mul(hn).Mul(ts)
	if math.Abs(h[8]) < 1e-12 {
		return Matrix{}, false
	}
	h = h.Normalized()
	if math.Abs(h.Det()) < minDeterminant {
		return Matrix{}, false
	}
	return h, true
}
