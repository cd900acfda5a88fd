package imaging

import "testing"

func TestComputeGradient_UniformFrame(t *testing.T) {
	f := NewFrame(20, 20)
	for i := range f.Pix {
		f.Pix[i] = 128
	}

	g := ComputeGradient(f, true)
	for i, m := range g.Magnitude {
		if m > 1e-3 {
			t.Fatalf("uniform frame has gradient %.4f at %d", m, i)
		}
	}
}

func TestComputeGradient_VerticalEdge(t *testing.T) {
	f := NewFrame(40, 20)
	for y := 0; y < 20; y++ {
		for x := 20; x < 40; x++ {
			f.Pix[y*40+x] = 200
		}
	}

	g := ComputeGradient(f, false)

	// Sobel/8 of a 200 step is 100 on both columns adjacent to the step
	if m := g.MagnitudeAt(19, 10); m < 99 || m > 101 {
		t.Errorf("magnitude at edge: got %.2f, want 100", m)
	}
	if g.Dx[10*40+20] <= 0 {
		t.Error("dark-to-bright step should give positive Dx")
	}
	if m := g.MagnitudeAt(5, 10); m != 0 {
		t.Errorf("magnitude away from edge: got %.2f, want 0", m)
	}
}

func TestGaussianBlur(t *testing.T) {
	f := NewFrame(10, 10)
	for i := range f.Pix {
		f.Pix[i] = 0.5
	}

	blurred := GaussianBlur(f)

	// Uniform image should remain uniform after blur
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if absFloat(float64(blurred.At(x, y))-0.5) > 0.01 {
				t.Errorf("blurred(%d,%d): got %.3f, want ~0.5", x, y, blurred.At(x, y))
			}
		}
	}
}

func TestGaussianBlur_WithSpot(t *testing.T) {
	f := NewFrame(11, 11)
	f.Pix[5*11+5] = 1.0 // bright spot in center

	blurred := GaussianBlur(f)

	if blurred.At(5, 5) >= 1.0 {
		t.Error("bright spot should be reduced after blur")
	}
	if blurred.At(4, 5) == 0 || blurred.At(6, 5) == 0 || blurred.At(5, 4) == 0 || blurred.At(5, 6) == 0 {
		t.Error("neighbors should receive some brightness from blur")
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
