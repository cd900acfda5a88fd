package track

import (
	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/homography"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
)

// relax deforms the octave's mesh toward the tracked positions.
//
// Vertices start at the rigid projection of the template points. Each
// iteration moves every vertex by the sum of spring forces along its mesh
// edges, whose rest lengths are the rigid ones, plus an attraction toward its
// tracked position when it has one. Vertices without a tracked position are
// carried by their neighbours. The result is in screen coordinates, one entry
// per template point.
func (t *Tracker) relax(oct *target.TrackingOctave, templateH homography.Matrix, tracked []Point) []r2.Point {
	n := len(oct.Points)
	pos := make([]r2.Point, n)
	for i, p := range oct.Points {
		pos[i], _ = templateH.Project(p)
	}

	edges := oct.Edges()
	rest := make([]float64, len(edges))
	for i, e := range edges {
		rest[i] = pos[e[0]].Sub(pos[e[1]]).Norm()
	}

	goal := make([]r2.Point, n)
	anchored := make([]bool, n)
	for _, p := range tracked {
		goal[p.Index] = p.Screen
		anchored[p.Index] = true
	}

	force := make([]r2.Point, n)
	for it := 0; it < t.opts.MeshIterations; it++ {
		for i := range force {
			force[i] = r2.Point{}
			if anchored[i] {
				force[i] = goal[i].Sub(pos[i]).Mul(t.opts.MeshAttraction)
			}
		}
		for k, e := range edges {
			d := pos[e[1]].Sub(pos[e[0]])
			l := d.Norm()
			if l < 1e-9 {
				continue
			}
			f := d.Mul(t.opts.MeshStiffness * (l - rest[k]) / l / 2)
			force[e[0]] = force[e[0]].Add(f)
			force[e[1]] = force[e[1]].Sub(f)
		}
		for i := range pos {
			pos[i] = pos[i].Add(force[i])
		}
	}
	return pos
}
