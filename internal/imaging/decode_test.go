package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodePNG builds in-memory PNG bytes for a solid-color test image.
func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, 64, 48, color.White)

	raw, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if raw.Width != 64 || raw.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", raw.Width, raw.Height)
	}
	if raw.SourceBytes != len(data) {
		t.Errorf("expected SourceBytes %d, got %d", len(data), raw.SourceBytes)
	}
	if got := raw.Gray.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Errorf("grayscale view has wrong dimensions: %v", got)
	}
	if got := raw.Color.Bounds().Min; got.X != 0 || got.Y != 0 {
		t.Errorf("color view not re-based at origin: %v", got)
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("expected error for garbage input")
	}
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil)
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage for empty input, got %v", err)
	}
}

func TestDecode_GrayLuminance(t *testing.T) {
	// Pure red: BT.601 luminance is 0.299 * 255 ~ 76.
	data := encodePNG(t, 8, 8, color.RGBA{R: 255, A: 255})

	raw, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	got := raw.Gray.GrayAt(4, 4).Y
	if got < 74 || got > 78 {
		t.Errorf("expected luminance ~76 for pure red, got %d", got)
	}
}
