package pose

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// tukeyK scales the median absolute residual into the Tukey cutoff
// (4.685 standard deviations, with 1.4826 converting median to sigma).
const tukeyK = 4.685 * 1.4826

// Refine adjusts an existing pose to fit the correspondences better and
// returns the result. It never fails: when no step improves the fit, the
// initial pose is returned unchanged.
//
// weights, when non-nil, scale each correspondence's contribution to the
// normal equations. Robust Tukey weights computed from the residuals of each
// iteration multiply them.
//
// # Algorithm
//
// Gauss-Newton over a six-parameter update: a rotation vector ω applied on the
// left, exp([ω]×)R, and a translation increment. The camera-space Jacobian of a
// plane point P is [ -[RP]× | I ], chained through the pinhole projection. The
// 6x6 normal equations are solved by Cholesky factorisation. A step is kept only
// if it lowers the robust cost.
func (e *Estimator) Refine(initial ModelViewTransform, plane, screen []r2.Point, weights []float64) ModelViewTransform {
	n := len(plane)
	if n == 0 || len(screen) != n || (weights != nil && len(weights) != n) {
		return initial
	}

	current := initial
	residuals := make([]float64, n)

	for it := 0; it < e.opts.MaxIterations; it++ {
		// Robust scale from this iteration's residuals
		for i := range plane {
			p, ok := e.Project(current, plane[i])
			if !ok {
				residuals[i] = math.Inf(1)
				continue
			}
			residuals[i] = p.Sub(screen[i]).Norm()
		}
		c := math.Max(tukeyK*median(residuals), e.opts.MinTukeyScale)
		if math.IsInf(c, 1) {
			return current
		}

		cost := e.robustCost(current, plane, screen, weights, c)
		jtj := mat.NewSymDense(6, nil)
		jtr := mat.NewVecDense(6, nil)
		used := 0

		for i := range plane {
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			if w <= 0 {
				continue
			}
			rp := current.Rotate(r3.Vector{X: plane[i].X, Y: plane[i].Y})
			xc := rp.Add(current.Translation())
			if xc.Z <= 1e-9 {
				continue
			}
			proj, _ := e.K.Project(xc)
			ru := screen[i].X - proj.X
			rv := screen[i].Y - proj.Y
			tw := tukey(math.Hypot(ru, rv), c)
			if tw == 0 {
				continue
			}
			w *= tw
			used++

			ju, jv := e.jacobian(rp, xc)
			for a := 0; a < 6; a++ {
				jtr.SetVec(a, jtr.AtVec(a)+w*(ju[a]*ru+jv[a]*rv))
				for b := a; b < 6; b++ {
					jtj.SetSym(a, b, jtj.At(a, b)+w*(ju[a]*ju[b]+jv[a]*jv[b]))
				}
			}
		}
		if used < 3 {
			return current
		}

		var chol mat.Cholesky
		if !chol.Factorize(jtj) {
			return current
		}
		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, jtr); err != nil {
			return current
		}

		omega := r3.Vector{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)}
		dt := r3.Vector{X: delta.AtVec(3), Y: delta.AtVec(4), Z: delta.AtVec(5)}
		candidate := current.withUpdate(omega, dt)
		if !finite(candidate) || e.robustCost(candidate, plane, screen, weights, c) >= cost {
			return current
		}
		current = candidate

		if math.Sqrt(omega.Norm2()+dt.Norm2()) < e.opts.MinStep {
			break
		}
	}
	return current
}

// jacobian returns the derivatives of the projected u and v with respect to
// (ω, dt) for a point whose rotated plane position is rp and camera position xc.
func (e *Estimator) jacobian(rp, xc r3.Vector) (ju, jv [6]float64) {
	iz := 1 / xc.Z
	iz2 := iz * iz
	// d(u,v)/dXc
	du := r3.Vector{X: e.K.Fx * iz, Y: 0, Z: -e.K.Fx * xc.X * iz2}
	dv := r3.Vector{X: 0, Y: e.K.Fy * iz, Z: -e.K.Fy * xc.Y * iz2}

	// dXc/dω = -[rp]×, so (d/dXc)·(-[rp]×) = rp × d
	wu := rp.Cross(du)
	wv := rp.Cross(dv)
	ju = [6]float64{wu.X, wu.Y, wu.Z, du.X, du.Y, du.Z}
	jv = [6]float64{wv.X, wv.Y, wv.Z, dv.X, dv.Y, dv.Z}
	return ju, jv
}

func (e *Estimator) robustCost(m ModelViewTransform, plane, screen []r2.Point, weights []float64, c float64) float64 {
	cost := 0.0
	for i := range plane {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		xc := m.Apply(plane[i])
		if xc.Z <= 1e-9 {
			// Behind the camera counts as maximal error
			cost += w * c * c
			continue
		}
		p, _ := e.K.Project(xc)
		r := p.Sub(screen[i]).Norm()
		cost += w * math.Min(r*r, c*c)
	}
	return cost
}

func tukey(r, c float64) float64 {
	if r >= c {
		return 0
	}
	u := r / c
	v := 1 - u*u
	return v * v
}
