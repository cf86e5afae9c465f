package imaging

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// ImageCache keeps decoded template images keyed by path.
//
// An entry is reloaded when the file's modification time or size changes, so a
// template replaced on disk during recalibration is picked up. Scanned pages
// are decoded directly and never cached. ImageCache is safe for concurrent use.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cacheEntry
}

type cacheEntry struct {
	img     image.Image
	modTime time.Time
	size    int64
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cacheEntry),
	}
}

// Load returns the decoded image at path, reading it from disk when it is
// not cached or has changed. Decoding applies EXIF orientation and failures
// wrap omr.ErrImageRead.
func (c *ImageCache) Load(path string) (image.Image, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omr.ErrImageRead, err)
	}

	c.mu.RLock()
	e, ok := c.images[path]
	c.mu.RUnlock()
	if ok && e.modTime.Equal(st.ModTime()) && e.size == st.Size() {
		return e.img, nil
	}

	img, err := omr.LoadImage(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = cacheEntry{img: img, modTime: st.ModTime(), size: st.Size()}
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes an image file.
type ImageInfo struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Format is the decoder name reported by image.DecodeConfig, such as
	// "png" or "jpeg". It is detected from the file contents.
	Format string `json:"format"`

	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads the image at path through cache and describes it.
// Width and Height are the dimensions after EXIF orientation.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omr.ErrImageRead, err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		format = "unknown"
	}
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	b := img.Bounds()
	return &ImageInfo{
		Path:          path,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		FileSizeBytes: st.Size(),
	}, nil
}

// DimensionsResult holds the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of the image at path.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &DimensionsResult{
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
