// Package imaging provides the grayscale frame type and the image plumbing
// around it for the tracking pipeline.
//
// A Frame is a row-major float32 intensity buffer in the 0-255 range. Frames
// are built from decoded images, raw byte buffers or float buffers, and are
// read-only once built. The package also covers resizing, Gaussian smoothing,
// Sobel gradients, a path-keyed cache of decoded images and PNG debug overlays.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Pixel centres sit on integer coordinates; sub-pixel samples are bilinear
//
// # Thread Safety
//
// The FrameCache type is safe for concurrent use. Frames and gradients are
// never modified after construction, so one frame may be read by any number
// of goroutines.
//
// # Error Handling
//
// Functions return ErrEmptyFrame for zero-sized frames or short buffers, and
// wrap file and decode errors from image loading.
//
// # Performance Considerations
//
// Decoded images and their frames stay cached until Evict() or Clear().
// Long-running processes that see a new camera frame per request should evict
// each frame after use.
package imaging
