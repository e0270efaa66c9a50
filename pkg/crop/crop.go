// Package crop implements the interactive crop state machine as pure
// state transitions, decoupled from any rendering surface. Coordinates are
// tracked in percentage units so the selected region stays consistent when
// the rendered image is zoomed.
package crop

import (
	"errors"
	"math"

	"github.com/tyarity/boothlens/pkg/types"
)

// Zoom limits and scroll step, one step per wheel notch.
const (
	MinZoom  = 0.1
	MaxZoom  = 5.0
	ZoomStep = 0.1
)

// InitialCoverage is the fraction of the shorter dimension covered by the
// initial centered square crop.
const InitialCoverage = 0.9

var (
	// ErrNoImage is returned for operations that need a loaded image.
	ErrNoImage = errors.New("crop: no image loaded")
	// ErrInvalidDimensions is returned when an image reports a
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("crop: invalid image dimensions")
)

// Cropper tracks the crop selection for one loaded image. The zero value
// is the pre-upload state: nothing loaded, zoom 1.
type Cropper struct {
	naturalWidth  int
	naturalHeight int
	zoom          float64
	live          types.Rect
	committed     types.Rect
	loaded        bool
}

// New returns a Cropper in the pre-upload state.
func New() *Cropper {
	return &Cropper{zoom: 1}
}

// Loaded reports whether an image is currently loaded.
func (c *Cropper) Loaded() bool {
	return c.loaded
}

// Zoom returns the current magnification factor.
func (c *Cropper) Zoom() float64 {
	if c.zoom == 0 {
		return 1
	}
	return c.zoom
}

// Live returns the in-gesture crop rectangle.
func (c *Cropper) Live() types.Rect {
	return c.live
}

// Committed returns the crop rectangle as of the last finished gesture.
func (c *Cropper) Committed() types.Rect {
	return c.committed
}

// Load accepts a raster image's natural dimensions and computes the
// initial crop: a centered square covering 90% of the shorter dimension,
// aspect ratio 1:1. Zoom resets to 1.
func (c *Cropper) Load(naturalWidth, naturalHeight int) error {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return ErrInvalidDimensions
	}
	c.naturalWidth = naturalWidth
	c.naturalHeight = naturalHeight
	c.zoom = 1
	c.loaded = true

	side := InitialCoverage * math.Min(float64(naturalWidth), float64(naturalHeight))
	r := types.Rect{
		X: (float64(naturalWidth) - side) / float64(naturalWidth) * 50,
		Y: (float64(naturalHeight) - side) / float64(naturalHeight) * 50,
		W: side / float64(naturalWidth) * 100,
		H: side / float64(naturalHeight) * 100,
	}
	c.live = r
	c.committed = r
	return nil
}

// Drag updates the live crop rectangle mid-gesture. Rectangles dragged
// beyond the image edges are clamped back into [0,100] before being
// stored, so a later extraction never sees out-of-bounds percentages.
func (c *Cropper) Drag(r types.Rect) error {
	if !c.loaded {
		return ErrNoImage
	}
	c.live = r.Clamp()
	return nil
}

// EndDrag commits the live rectangle. The committed rectangle only ever
// changes here or on Load.
func (c *Cropper) EndDrag() error {
	if !c.loaded {
		return ErrNoImage
	}
	c.committed = c.live
	return nil
}

// Scroll applies wheel input: 0.1 per notch, positive notches zoom in.
// The result saturates at [0.1, 5.0] regardless of cumulative input. Zoom
// scales the rendered height only and never touches the stored crop
// percentages.
func (c *Cropper) Scroll(notches int) float64 {
	z := c.Zoom() + float64(notches)*ZoomStep
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	// Snap to the step grid so repeated notches don't accumulate float drift.
	c.zoom = math.Round(z/ZoomStep) * ZoomStep
	return c.zoom
}

// Cancel discards the loaded image and resets zoom to 1, returning to the
// pre-upload state. No side effects beyond this struct.
func (c *Cropper) Cancel() {
	*c = Cropper{zoom: 1}
}

// PixelCrop translates the committed rectangle into the source image's
// native pixel space.
func (c *Cropper) PixelCrop() (types.PixelRect, error) {
	if !c.loaded {
		return types.PixelRect{}, ErrNoImage
	}
	return c.committed.ToPixels(c.naturalWidth, c.naturalHeight), nil
}
