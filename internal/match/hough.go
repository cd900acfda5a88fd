package match

import (
	"math"
	"sort"
)

const (
	houghAngleBins = 12
	houghScaleBins = 10
	houghMinScale  = -1.0
	houghMaxScale  = 1.0

	// houghScaleBase sets the log base of the scale axis: one unit of the
	// [-1, 1) range is a factor of ten.
	houghScaleBase = 10.0

	// houghTranslationRange extends the translation axes beyond the query
	// frame on both sides, as a fraction of its size.
	houghTranslationRange = 1.2

	houghMinTranslationBins = 5
	houghBinFraction        = 0.25
)

type houghVote struct {
	x, y, angle, scale float64
	valid              bool
}

type houghSpace struct {
	minX, maxX, minY, maxY float64
	numX, numY             int
}

// houghFilter keeps the correspondences that agree with the dominant
// similarity transform.
//
// Each correspondence implies a rotation, a scale and the query location of the
// keyframe centre. Votes are cast into a 4D histogram with linear spreading to
// the 16 surrounding bins; correspondences at most one bin from the winning bin's
// centre on every axis survive, so the neighbours that shared its votes are kept. Returns nil when the winning bin has fewer than
// minVotes votes.
func houghFilter(matches []Correspondence, keyWidth, keyHeight, queryWidth, queryHeight, minVotes int) []Correspondence {
	if len(matches) == 0 {
		return nil
	}

	space := houghSpace{
		maxX: float64(queryWidth) * houghTranslationRange,
		maxY: float64(queryHeight) * houghTranslationRange,
	}
	space.minX = -space.maxX
	space.minY = -space.maxY

	// Bin size follows the median projected size of the keyframe
	maxDim := float64(keyWidth)
	if keyHeight > keyWidth {
		maxDim = float64(keyHeight)
	}
	dims := make([]float64, len(matches))
	for i, m := range matches {
		dims[i] = m.queryScale * maxDim / m.keyScale
	}
	sort.Float64s(dims)
	binSize := houghBinFraction * dims[(len(dims)-1)/2]
	space.numX = translationBins(space.maxX-space.minX, binSize)
	space.numY = translationBins(space.maxY-space.minY, binSize)

	centreX := float64(keyWidth / 2)
	centreY := float64(keyHeight / 2)

	numXY := space.numX * space.numY
	numXYA := numXY * houghAngleBins
	votes := map[int]int{}
	data := make([]houghVote, len(matches))

	for i, m := range matches {
		v := space.bins(mapCorrespondence(m, centreX, centreY))
		x := int(math.Floor(v.x - 0.5))
		y := int(math.Floor(v.y - 0.5))
		s := int(math.Floor(v.scale - 0.5))
		a := (int(math.Floor(v.angle-0.5)) + houghAngleBins) % houghAngleBins
		if x < 0 || x+1 >= space.numX || y < 0 || y+1 >= space.numY || s < 0 || s+1 >= houghScaleBins {
			continue
		}
		v.valid = true
		data[i] = v

		for ds := 0; ds < 2; ds++ {
			for da := 0; da < 2; da++ {
				aa := (a + da) % houghAngleBins
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						idx := (x + dx) + (y+dy)*space.numX + aa*numXY + (s+ds)*numXYA
						votes[idx]++
					}
				}
			}
		}
	}

	best, bestVotes := -1, 0
	for idx, n := range votes {
		if n > bestVotes || (n == bestVotes && idx < best) {
			best, bestVotes = idx, n
		}
	}
	if bestVotes < minVotes {
		return nil
	}

	binX := float64(best % space.numX)
	binY := float64((best / space.numX) % space.numY)
	binA := float64((best / numXY) % houghAngleBins)
	binS := float64(best / numXYA)

	var out []Correspondence
	for i, m := range matches {
		v := data[i]
		if !v.valid {
			continue
		}
		if math.Abs(v.x-(binX+0.5)) > 1 || math.Abs(v.y-(binY+0.5)) > 1 || math.Abs(v.scale-(binS+0.5)) > 1 {
			continue
		}
		da := math.Abs(v.angle - (binA + 0.5))
		if math.Min(da, houghAngleBins-da) > 1 {
			continue
		}
		out = append(out, m)
	}
	return out
}

func translationBins(span, binSize float64) int {
	if binSize <= 0 {
		return houghMinTranslationBins
	}
	n := int(math.Ceil(span / binSize))
	if n < houghMinTranslationBins {
		n = houghMinTranslationBins
	}
	return n
}

// mapCorrespondence returns the similarity implied by one correspondence: the
// query location of the keyframe centre, the rotation in radians and the log
// scale.
func mapCorrespondence(m Correspondence, centreX, centreY float64) houghVote {
	angle := m.queryAngle - m.keyAngle
	if angle <= -math.Pi {
		angle += 2 * math.Pi
	} else if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	scale := m.queryScale / m.keyScale

	c := scale * math.Cos(angle)
	s := scale * math.Sin(angle)
	dx := centreX - m.Keyframe.X
	dy := centreY - m.Keyframe.Y
	return houghVote{
		x:     c*dx - s*dy + m.Query.X,
		y:     s*dx + c*dy + m.Query.Y,
		angle: angle,
		scale: math.Log(scale) / math.Log(houghScaleBase),
	}
}

// bins converts a similarity into fractional bin coordinates.
func (h houghSpace) bins(v houghVote) houghVote {
	return houghVote{
		x:     float64(h.numX) * (v.x - h.minX) / (h.maxX - h.minX),
		y:     float64(h.numY) * (v.y - h.minY) / (h.maxY - h.minY),
		angle: houghAngleBins * (v.angle + math.Pi) / (2 * math.Pi),
		scale: houghScaleBins * (v.scale - houghMinScale) / (houghMaxScale - houghMinScale),
	}
}
