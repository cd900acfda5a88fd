package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// ResizeImage scales an image to the given width, preserving aspect ratio.
//
// Downscaling uses a box-filtered linear resample so that small target scales
// are not aliased. The height is rounded and is never less than one pixel.
func ResizeImage(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 {
		return img
	}
	if width == b.Dx() {
		return imaging.Clone(img)
	}
	height := int(float64(b.Dy())*float64(width)/float64(b.Dx()) + 0.5)
	if height < 1 {
		height = 1
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}

// ResizeFrame scales a frame by an arbitrary factor through the image resampler.
//
// Frames are quantised to 8 bits on the way through, which matches what a
// camera delivers and is what target compilation feeds the detector.
func ResizeFrame(f *Frame, scale float64) (*Frame, error) {
	width := int(float64(f.Width)*scale + 0.5)
	if width < 1 {
		width = 1
	}
	return FrameFromImage(ResizeImage(f.Gray(), width))
}
