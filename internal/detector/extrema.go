package detector

import (
	"math"
	"sort"
)

// extremum is a DoG extremum before orientation and description.
type extremum struct {
	octave   int
	x, y     int
	response float32
}

// findExtrema scans one octave of the DoG pyramid for points whose response
// exceeds the threshold and is strictly greater (or strictly less) than all 26
// neighbours in the 3x3x3 scale-space neighbourhood. Border octaves skip the
// missing layer. Edge-like responses are rejected with the Hessian ratio test.
func findExtrema(octaves []Octave, k int, opts Options, out []extremum) []extremum {
	cur := octaves[k]
	var below, above *Octave
	if k > 0 {
		below = &octaves[k-1]
	}
	if k < len(octaves)-1 {
		above = &octaves[k+1]
	}

	w, h := cur.Width, cur.Height
	border := int(math.Ceil(freakExpansion))
	thresh := opts.DoGThreshold
	edgeLimit := (opts.EdgeRatio + 1) * (opts.EdgeRatio + 1) / opts.EdgeRatio

	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			v := cur.DoG[y*w+x]
			if math.Abs(float64(v)) <= thresh {
				continue
			}
			isMax, isMin := true, true

			for dy := -1; dy <= 1 && (isMax || isMin); dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := cur.DoG[(y+dy)*w+x+dx]
					isMax = isMax && v > n
					isMin = isMin && v < n
				}
			}
			if below != nil && (isMax || isMin) {
				isMax, isMin = compareLayer(below, 2*x, 2*y, v, isMax, isMin)
			}
			if above != nil && (isMax || isMin) {
				isMax, isMin = compareLayer(above, x/2, y/2, v, isMax, isMin)
			}
			if !isMax && !isMin {
				continue
			}

			// Hessian edge test
			c := cur.DoG[y*w+x]
			dxx := float64(cur.DoG[y*w+x+1] + cur.DoG[y*w+x-1] - 2*c)
			dyy := float64(cur.DoG[(y+1)*w+x] + cur.DoG[(y-1)*w+x] - 2*c)
			dxy := 0.25 * float64(cur.DoG[(y-1)*w+x-1]+cur.DoG[(y+1)*w+x+1]-cur.DoG[(y-1)*w+x+1]-cur.DoG[(y+1)*w+x-1])
			det := dxx*dyy - dxy*dxy
			if math.Abs(det) < 1e-4 {
				continue
			}
			if tr := dxx + dyy; math.Abs(tr*tr/det) >= edgeLimit {
				continue
			}

			out = append(out, extremum{octave: k, x: x, y: y, response: v})
		}
	}
	return out
}

// compareLayer checks v against the 3x3 block of an adjacent octave centred at
// (cx, cy) in that octave's pixels. Coordinates are clamped to the layer.
func compareLayer(layer *Octave, cx, cy int, v float32, isMax, isMin bool) (bool, bool) {
	for dy := -1; dy <= 1; dy++ {
		py := clampIndex(cy+dy, layer.Height)
		for dx := -1; dx <= 1; dx++ {
			px := clampIndex(cx+dx, layer.Width)
			n := layer.DoG[py*layer.Width+px]
			isMax = isMax && v > n
			isMin = isMin && v < n
		}
	}
	return isMax, isMin
}

// prune keeps at most perBucket extrema with the largest absolute response in
// each cell of a buckets x buckets grid. Bucket indices are computed in
// normalised coordinates so a cell covers the same image area in every octave.
func prune(octaves []Octave, candidates []extremum, buckets, perBucket int) []extremum {
	grid := make([][]extremum, buckets*buckets)
	for _, e := range candidates {
		o := octaves[e.octave]
		bx := e.x * buckets / o.Width
		by := e.y * buckets / o.Height
		i := by*buckets + bx
		grid[i] = append(grid[i], e)
	}

	out := make([]extremum, 0, len(candidates))
	for _, cell := range grid {
		sort.Slice(cell, func(i, j int) bool {
			ai := math.Abs(float64(cell[i].response))
			aj := math.Abs(float64(cell[j].response))
			if ai != aj {
				return ai > aj
			}
			if cell[i].octave != cell[j].octave {
				return cell[i].octave < cell[j].octave
			}
			if cell[i].y != cell[j].y {
				return cell[i].y < cell[j].y
			}
			return cell[i].x < cell[j].x
		})
		if len(cell) > perBucket {
			cell = cell[:perBucket]
		}
		out = append(out, cell...)
	}
	return out
}
