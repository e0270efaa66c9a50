package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/tyarity/boothlens/pkg/types"
)

// createTestImage builds a gradient NRGBA image so crop regions can be
// verified pixel by pixel.
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, createTestImage(10, 10))
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 10 {
		t.Errorf("Expected 10x10, got %v", img.Bounds())
	}
}

func TestDecodeInvalidData(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("Expected error for invalid data")
	}
}

func TestDecodeDataURI(t *testing.T) {
	data := encodePNG(t, createTestImage(8, 8))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	img, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI failed: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("Expected width 8, got %d", img.Bounds().Dx())
	}

	if _, err := DecodeDataURI("http://example.com/x.png"); err == nil {
		t.Error("Expected error for non-data URI")
	}
	if _, err := DecodeDataURI("data:image/png;base64"); err == nil {
		t.Error("Expected error for URI without payload")
	}
}

func TestCropExactRegion(t *testing.T) {
	img := createTestImage(100, 80)
	out, err := Crop(img, types.PixelRect{X: 10, Y: 20, W: 30, H: 25})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Bounds().Dx() != 30 || out.Bounds().Dy() != 25 {
		t.Errorf("Expected 30x25 crop, got %v", out.Bounds())
	}

	// Top-left pixel of the crop must be the source pixel at (10,20).
	got := color.NRGBAModel.Convert(out.At(out.Bounds().Min.X, out.Bounds().Min.Y)).(color.NRGBA)
	if got.R != 10 || got.G != 20 {
		t.Errorf("Expected pixel (10,20), got R=%d G=%d", got.R, got.G)
	}
}

func TestCropClampsToBounds(t *testing.T) {
	img := createTestImage(50, 50)
	out, err := Crop(img, types.PixelRect{X: 40, Y: 40, W: 30, H: 30})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 10 {
		t.Errorf("Expected clamped 10x10 crop, got %v", out.Bounds())
	}
}

func TestCropEmpty(t *testing.T) {
	img := createTestImage(50, 50)
	if _, err := Crop(img, types.PixelRect{}); err != ErrEmptyCrop {
		t.Errorf("Expected ErrEmptyCrop, got %v", err)
	}
	if _, err := Crop(img, types.PixelRect{X: 100, Y: 100, W: 10, H: 10}); err != ErrEmptyCrop {
		t.Errorf("Expected ErrEmptyCrop for out-of-bounds rect, got %v", err)
	}
}

func TestFlattenTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	// Fully transparent image must flatten to pure white.
	out := Flatten(img)
	got := out.NRGBAAt(2, 2)
	if got.R != 255 || got.G != 255 || got.B != 255 || got.A != 255 {
		t.Errorf("Expected white, got %+v", got)
	}
}

func TestRenderCrop(t *testing.T) {
	r := New()
	data := encodePNG(t, createTestImage(60, 60))

	out, err := r.RenderCrop(data, types.PixelRect{X: 0, Y: 0, W: 30, H: 30})
	if err != nil {
		t.Fatalf("RenderCrop failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 30 {
		t.Errorf("Expected 30x30 output, got %v", img.Bounds())
	}
}

func TestRenderCropErrors(t *testing.T) {
	r := New()
	if _, err := r.RenderCrop([]byte("garbage"), types.PixelRect{X: 0, Y: 0, W: 10, H: 10}); err == nil {
		t.Error("Expected error for undecodable source")
	}
	data := encodePNG(t, createTestImage(20, 20))
	if _, err := r.RenderCrop(data, types.PixelRect{}); err != ErrEmptyCrop {
		t.Errorf("Expected ErrEmptyCrop, got %v", err)
	}
}

func TestNewWithQuality(t *testing.T) {
	if r := NewWithQuality(0); r.quality != 90 {
		t.Errorf("Expected fallback quality 90, got %d", r.quality)
	}
	if r := NewWithQuality(60); r.quality != 60 {
		t.Errorf("Expected quality 60, got %d", r.quality)
	}
}

func TestThumbnail(t *testing.T) {
	out, err := Thumbnail(createTestImage(1024, 512), 512, 60)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	img, err := Decode(out)
	if err != nil {
		t.Fatalf("Failed to decode thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 512 {
		t.Errorf("Expected longer side 512, got %d", img.Bounds().Dx())
	}
}

func TestThumbnailNoUpscale(t *testing.T) {
	out, err := Thumbnail(createTestImage(100, 50), 512, 60)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	img, err := Decode(out)
	if err != nil {
		t.Fatalf("Failed to decode thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("Expected unchanged width 100, got %d", img.Bounds().Dx())
	}
}
