package detector

import (
	"math"

	"github.com/ironsheep/target-tracker-mcp/internal/feature"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

// freakExpansion scales the unit-radius sampling constellation into octave
// pixels. It also sets the border excluded from extremum detection so every
// sample of a surviving point lands inside the octave.
const freakExpansion = 7.0

// freakRings is the retina-like sampling pattern: six rings of six points with
// alternating phase plus the centre, from outermost to innermost. Coordinates
// are on the unit disc.
var freakRings = [][][2]float64{
	{{-1.000000, 0.000000}, {-0.500000, -0.866025}, {0.500000, -0.866025}, {1.000000, -0.000000}, {0.500000, 0.866025}, {-0.500000, 0.866025}},
	{{0.000000, 0.930969}, {-0.806243, 0.465485}, {-0.806243, -0.465485}, {-0.000000, -0.930969}, {0.806243, -0.465485}, {0.806243, 0.465485}},
	{{0.847306, -0.000000}, {0.423653, 0.733789}, {-0.423653, 0.733789}, {-0.847306, 0.000000}, {-0.423653, -0.733789}, {0.423653, -0.733789}},
	{{-0.000000, -0.741094}, {0.641806, -0.370547}, {0.641806, 0.370547}, {0.000000, 0.741094}, {-0.641806, 0.370547}, {-0.641806, -0.370547}},
	{{-0.595502, 0.000000}, {-0.297751, -0.515720}, {0.297751, -0.515720}, {0.595502, -0.000000}, {0.297751, 0.515720}, {-0.297751, 0.515720}},
	{{0.000000, 0.362783}, {-0.314179, 0.181391}, {-0.314179, -0.181391}, {-0.000000, -0.362783}, {0.314179, -0.181391}, {0.314179, 0.181391}},
	{{0, 0}},
}

var (
	freakPoints = flattenRings(freakRings)
	freakPairs  = allPairs(len(freakPoints))
	lshPairs    = selectPairs(freakPairs, feature.LSHWords*32, 5)
)

type samplePair struct{ a, b int }

func flattenRings(rings [][][2]float64) [][2]float64 {
	var pts [][2]float64
	for _, ring := range rings {
		pts = append(pts, ring...)
	}
	return pts
}

func allPairs(n int) []samplePair {
	pairs := make([]samplePair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, samplePair{i, j})
		}
	}
	return pairs
}

// selectPairs picks count pairs by striding through the full list. The stride
// must be coprime with len(pairs) so no pair is chosen twice.
func selectPairs(pairs []samplePair, count, stride int) []samplePair {
	out := make([]samplePair, count)
	for k := 0; k < count; k++ {
		out[k] = pairs[(k*stride)%len(pairs)]
	}
	return out
}

// sampleConstellation reads the 37 constellation intensities around (x, y) in
// octave pixels, rotated by angle.
func sampleConstellation(img *imaging.Frame, x, y, angle float64, dst []float32) {
	c := math.Cos(angle) * freakExpansion
	s := math.Sin(angle) * freakExpansion
	for i, p := range freakPoints {
		px := x + c*p[0] - s*p[1]
		py := y + s*p[0] + c*p[1]
		dst[i] = img.Bilinear(px, py)
	}
}

// computeDescriptor builds the descriptor for one point from its samples.
func computeDescriptor(kind feature.Kind, samples []float32) feature.Descriptor {
	switch kind {
	case feature.KindFREAK:
		return packComparisons(freakPairs, samples, feature.FREAKWords)
	case feature.KindSignature:
		lsh := packComparisons(lshPairs, samples, feature.LSHWords)
		return feature.Descriptor{feature.Fold(lsh)}
	default:
		return packComparisons(lshPairs, samples, feature.LSHWords)
	}
}

// packComparisons sets bit k when the first sample of pair k is darker than the
// second, i.e. the sign of their difference.
func packComparisons(pairs []samplePair, samples []float32, words int) feature.Descriptor {
	d := make(feature.Descriptor, words)
	for k, p := range pairs {
		if samples[p.a] < samples[p.b] {
			d[k/32] |= 1 << uint(k%32)
		}
	}
	return d
}
