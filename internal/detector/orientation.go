package detector

import (
	"math"

	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
)

const (
	orientationBins          = 36
	orientationSigma         = 3.0
	orientationRadius        = 5
	orientationSmoothingIter = 5
)

var orientationSmoothing = [3]float64{0.274068619061197, 0.451862761877606, 0.274068619061197}

// dominantOrientation returns the centre of the peak bin of a Gaussian-weighted
// gradient histogram around (x, y) in octave pixels. The result is in (-π, π].
func dominantOrientation(img *imaging.Frame, x, y int) float64 {
	var hist [orientationBins]float64
	twoSigma2 := 2 * orientationSigma * orientationSigma
	binScale := orientationBins / (2 * math.Pi)

	for dy := -orientationRadius; dy <= orientationRadius; dy++ {
		for dx := -orientationRadius; dx <= orientationRadius; dx++ {
			r2 := dx*dx + dy*dy
			if r2 > orientationRadius*orientationRadius {
				continue
			}
			px := x + dx
			py := y + dy
			gx := float64(img.At(px+1, py)-img.At(px-1, py)) * 0.5
			gy := float64(img.At(px, py+1)-img.At(px, py-1)) * 0.5
			mag := math.Sqrt(gx*gx + gy*gy)
			if mag == 0 {
				continue
			}

			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			weight := mag * math.Exp(-float64(r2)/twoSigma2)

			// Linear vote into the two nearest bin centres
			fbin := angle*binScale - 0.5
			b0 := int(math.Floor(fbin))
			frac := fbin - float64(b0)
			hist[(b0+orientationBins)%orientationBins] += weight * (1 - frac)
			hist[(b0+1+orientationBins)%orientationBins] += weight * frac
		}
	}

	for it := 0; it < orientationSmoothingIter; it++ {
		var next [orientationBins]float64
		for b := 0; b < orientationBins; b++ {
			prev := hist[(b-1+orientationBins)%orientationBins]
			nxt := hist[(b+1)%orientationBins]
			next[b] = orientationSmoothing[0]*prev + orientationSmoothing[1]*hist[b] + orientationSmoothing[2]*nxt
		}
		hist = next
	}

	peak := 0
	for b := 1; b < orientationBins; b++ {
		if hist[b] > hist[peak] {
			peak = b
		}
	}

	angle := (float64(peak) + 0.5) / binScale
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return angle
}
