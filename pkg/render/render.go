// Package render turns a source image plus a pixel crop rectangle into a
// compressed raster blob ready for upload or indexing.
package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/tyarity/boothlens/pkg/types"
)

// ErrEmptyCrop is returned when the crop rectangle covers no pixels of
// the source image.
var ErrEmptyCrop = errors.New("render: empty crop rectangle")

// Renderer extracts crop regions and re-encodes them. The zero value
// uses JPEG quality 90.
type Renderer struct {
	quality int
}

// New creates a Renderer with default JPEG quality.
func New() *Renderer {
	return &Renderer{quality: 90}
}

// NewWithQuality creates a Renderer with a custom JPEG quality (1-100).
func NewWithQuality(quality int) *Renderer {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &Renderer{quality: quality}
}

// Decode loads an image from raw bytes, trying the registered stdlib
// decoders first and falling back to an explicit WebP decode.
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("render: unknown or unsupported image format")
}

// DecodeDataURI loads an image from a data: URI of the form
// data:image/<fmt>;base64,<payload>.
func DecodeDataURI(uri string) (image.Image, error) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return nil, fmt.Errorf("render: not a data URI")
	}
	idx := strings.Index(uri, ",")
	if idx < 0 {
		return nil, fmt.Errorf("render: malformed data URI")
	}
	meta, payload := uri[len(prefix):idx], uri[idx+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("render: unsupported data URI encoding %q", meta)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("render: decode data URI payload: %w", err)
	}
	return Decode(raw)
}

// Flatten composites the image onto a solid white background, discarding
// any alpha channel. Embedding models and JPEG re-encoding both expect an
// opaque RGB image.
func Flatten(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}

// Crop extracts exactly the pixels within rect. The rectangle is
// intersected with the image bounds; an empty intersection fails with
// ErrEmptyCrop.
func Crop(img image.Image, rect types.PixelRect) (image.Image, error) {
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}
	bounds := img.Bounds()
	r := image.Rect(
		bounds.Min.X+rect.X,
		bounds.Min.Y+rect.Y,
		bounds.Min.X+rect.X+rect.W,
		bounds.Min.Y+rect.Y+rect.H,
	).Intersect(bounds)
	if r.Empty() {
		return nil, ErrEmptyCrop
	}
	return imaging.Crop(img, r), nil
}

// RenderCrop decodes source bytes, flattens transparency onto white,
// extracts rect and re-encodes the region as JPEG. Any failure aborts the
// pending search; there is no retry.
func (r *Renderer) RenderCrop(src []byte, rect types.PixelRect) ([]byte, error) {
	img, err := Decode(src)
	if err != nil {
		return nil, fmt.Errorf("render: decode source: %w", err)
	}
	return r.RenderCropImage(img, rect)
}

// RenderCropDataURI is RenderCrop for a data URI source.
func (r *Renderer) RenderCropDataURI(uri string, rect types.PixelRect) ([]byte, error) {
	img, err := DecodeDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("render: decode source: %w", err)
	}
	return r.RenderCropImage(img, rect)
}

// RenderCropImage extracts rect from an already decoded image and
// re-encodes it as JPEG.
func (r *Renderer) RenderCropImage(img image.Image, rect types.PixelRect) ([]byte, error) {
	cropped, err := Crop(Flatten(img), rect)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("render: encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail downscales an image so its longer side is at most maxDim and
// encodes it as WebP. The indexer stores thumbnails this way; the
// embedding model works from 224px inputs, so 512px keeps plenty of
// detail.
func Thumbnail(img image.Image, maxDim int, quality int) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("render: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG is a helper for callers that need a lossless intermediate.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
