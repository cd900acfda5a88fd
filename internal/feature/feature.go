// Package feature defines the interest points produced by the detector and the
// binary descriptors used to compare them.
package feature

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind selects the binary descriptor layout. It is chosen once when a detector
// is constructed and recorded on every keyframe compiled with it.
type Kind int

const (
	// KindLSH is a 128-bit locality-sensitive hash over a fixed subset of the
	// sampling-pair comparisons. It is the default.
	KindLSH Kind = iota
	// KindFREAK is the full pairwise-comparison bit-string over all 37 samples
	// (666 comparisons packed into 21 words).
	KindFREAK
	// KindSignature is the LSH descriptor XOR-folded into a single 32-bit word.
	KindSignature
)

// Word counts per descriptor kind.
const (
	LSHWords       = 4
	FREAKWords     = 21
	SignatureWords = 1
)

// Valid reports whether k is one of the known descriptor layouts.
func (k Kind) Valid() bool {
	return k >= KindLSH && k <= KindSignature
}

// Words returns the number of uint32 words a descriptor of this kind occupies.
func (k Kind) Words() int {
	switch k {
	case KindFREAK:
		return FREAKWords
	case KindSignature:
		return SignatureWords
	default:
		return LSHWords
	}
}

// Bits returns the number of meaningful bits in a descriptor of this kind.
func (k Kind) Bits() int {
	switch k {
	case KindFREAK:
		return 666
	case KindSignature:
		return 32
	default:
		return 128
	}
}

func (k Kind) String() string {
	switch k {
	case KindFREAK:
		return "freak"
	case KindSignature:
		return "signature"
	default:
		return "lsh"
	}
}

// ParseKind parses "lsh", "freak" or "signature" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lsh":
		return KindLSH, nil
	case "freak":
		return KindFREAK, nil
	case "signature", "hdc":
		return KindSignature, nil
	}
	return KindLSH, fmt.Errorf("unknown descriptor kind %q", s)
}

// Descriptor is a fixed-width binary fingerprint.
type Descriptor []uint32

// Distance returns the Hamming distance between two descriptors.
//
// Descriptors of different lengths are compared over the shorter one; callers
// never mix kinds, so this only matters for corrupt input.
func Distance(a, b Descriptor) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount32(a[i] ^ b[i])
	}
	return d
}

// Fold XOR-folds a descriptor into a single word.
//
// Folding never increases the Hamming distance between two descriptors, so a
// folded signature is a cheap lower bound that still preserves locality.
func Fold(d Descriptor) uint32 {
	var s uint32
	for _, w := range d {
		s ^= w
	}
	return s
}

// Point is an oriented, scale-localised interest point.
//
// X and Y are in full-frame pixel units. Scale is the power-of-two octave factor
// (1 for octave 0, 2 for octave 1, ...). Angle is in radians in (-π, π].
// Maxima records the DoG polarity; points only ever match points of the same
// polarity. A Point is immutable once produced.
type Point struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Scale      float64    `json:"scale"`
	Angle      float64    `json:"angle"`
	Maxima     bool       `json:"maxima"`
	Response   float64    `json:"response"`
	Octave     int        `json:"octave"`
	Descriptor Descriptor `json:"descriptor"`
}
