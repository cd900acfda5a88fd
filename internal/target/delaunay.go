package target

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

type triangle struct {
	a, b, c int
	center  r2.Point
	radius2 float64
}

func newTriangle(pts []r2.Point, a, b, c int) triangle {
	t := triangle{a: a, b: b, c: c}
	pa, pb, pc := pts[a], pts[b], pts[c]
	d := 2 * (pa.X*(pb.Y-pc.Y) + pb.X*(pc.Y-pa.Y) + pc.X*(pa.Y-pb.Y))
	if math.Abs(d) < 1e-12 {
		// Collinear: an infinite circumcircle contains every later point, so
		// the triangle is always carved out again.
		t.center = r2.Point{X: (pa.X + pb.X + pc.X) / 3, Y: (pa.Y + pb.Y + pc.Y) / 3}
		t.radius2 = math.Inf(1)
		return t
	}
	a2 := pa.Dot(pa)
	b2 := pb.Dot(pb)
	c2 := pc.Dot(pc)
	t.center = r2.Point{
		X: (a2*(pb.Y-pc.Y) + b2*(pc.Y-pa.Y) + c2*(pa.Y-pb.Y)) / d,
		Y: (a2*(pc.X-pb.X) + b2*(pa.X-pc.X) + c2*(pb.X-pa.X)) / d,
	}
	diff := pa.Sub(t.center)
	t.radius2 = diff.Dot(diff)
	return t
}

func (t triangle) contains(p r2.Point) bool {
	d := p.Sub(t.center)
	return d.Dot(d) < t.radius2
}

type meshEdge struct{ a, b int }

func newEdge(a, b int) meshEdge {
	if a > b {
		a, b = b, a
	}
	return meshEdge{a, b}
}

// triangulate returns a Delaunay triangulation of pts using Bowyer-Watson
// insertion. Triangles are counter-clockwise. Fewer than three points, or an
// all-collinear set, yield no triangles.
func triangulate(pts []r2.Point) [][3]int {
	n := len(pts)
	if n < 3 {
		return nil
	}

	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if span == 0 {
		return nil
	}
	mid := r2.Point{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}

	verts := make([]r2.Point, n, n+3)
	copy(verts, pts)
	verts = append(verts,
		r2.Point{X: mid.X - 20*span, Y: mid.Y - span},
		r2.Point{X: mid.X, Y: mid.Y + 20*span},
		r2.Point{X: mid.X + 20*span, Y: mid.Y - span},
	)

	tris := []triangle{newTriangle(verts, n, n+1, n+2)}
	for i := 0; i < n; i++ {
		p := verts[i]

		var boundary []meshEdge
		count := map[meshEdge]int{}
		kept := tris[:0:0]
		for _, t := range tris {
			if !t.contains(p) {
				kept = append(kept, t)
				continue
			}
			for _, e := range []meshEdge{newEdge(t.a, t.b), newEdge(t.b, t.c), newEdge(t.c, t.a)} {
				if count[e] == 0 {
					boundary = append(boundary, e)
				}
				count[e]++
			}
		}

		for _, e := range boundary {
			if count[e] == 1 {
				kept = append(kept, newTriangle(verts, e.a, e.b, i))
			}
		}
		tris = kept
	}

	var out [][3]int
	for _, t := range tris {
		if t.a >= n || t.b >= n || t.c >= n || math.IsInf(t.radius2, 1) {
			continue
		}
		pa, pb, pc := verts[t.a], verts[t.b], verts[t.c]
		cross := pb.Sub(pa).Cross(pc.Sub(pa))
		if cross == 0 {
			continue
		}
		if cross < 0 {
			out = append(out, [3]int{t.a, t.c, t.b})
		} else {
			out = append(out, [3]int{t.a, t.b, t.c})
		}
	}
	return out
}

func meshEdges(tris [][3]int) [][2]int {
	seen := map[meshEdge]bool{}
	var edges [][2]int
	for _, t := range tris {
		for _, e := range []meshEdge{newEdge(t[0], t[1]), newEdge(t[1], t[2]), newEdge(t[2], t[0])} {
			if !seen[e] {
				seen[e] = true
				edges = append(edges, [2]int{e.a, e.b})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}
