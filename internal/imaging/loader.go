package imaging

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
)

// FrameCache provides thread-safe caching of decoded images and their grayscale
// frames to avoid redundant disk reads.
//
// Entries are keyed by the exact path string. Once a path is loaded, subsequent
// calls return the cached copy without disk I/O, so a frame loaded here must be
// treated as read-only by every caller.
//
// FrameCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached frames remain in memory until explicitly removed via Evict() or Clear().
// Long-running servers that see a new camera frame per request should evict
// frames after use.
type FrameCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	img   image.Image
	frame *Frame
}

// NewFrameCache creates and initializes a new empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{
		entries: make(map[string]*cacheEntry),
	}
}

// LoadImage retrieves a decoded image from the cache or decodes it from disk.
//
// Supported formats are whatever the imaging package decodes (PNG, JPEG, GIF,
// TIFF, BMP). EXIF orientation is applied so camera stills come out upright.
func (c *FrameCache) LoadImage(path string) (image.Image, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

// LoadFrame retrieves the grayscale frame for an image path.
func (c *FrameCache) LoadFrame(path string) (*Frame, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return e.frame, nil
}

func (c *FrameCache) load(path string) (*cacheEntry, error) {
	c.mu.RLock()
	if e, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	frame, err := FrameFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image %s: %w", path, err)
	}

	e := &cacheEntry{img: img, frame: frame}
	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()

	return e, nil
}

// Clear removes all entries from the cache.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Evict removes a specific path from the cache. Unknown paths are ignored.
func (c *FrameCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *FrameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
