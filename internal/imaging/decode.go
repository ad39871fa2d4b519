package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is returned when image bytes cannot be decoded or describe
// a zero-area image. It is fatal for the photo being processed; callers
// should not retry with the same bytes.
var ErrInvalidImage = errors.New("invalid image")

// RawImage is a decoded photograph with both color and grayscale views.
//
// A RawImage is created once per detection call and is never persisted.
// The grayscale view feeds every local computer-vision stage; the color
// view is used for cloud submission and debug overlays.
type RawImage struct {
	// Width is the image width in pixels.
	Width int

	// Height is the image height in pixels.
	Height int

	// Color is the decoded image normalized to NRGBA.
	Color *image.NRGBA

	// Gray is the luminance view (ITU-R BT.601 weights).
	Gray *image.Gray

	// SourceBytes is the length of the original encoded input.
	SourceBytes int
}

// Decode converts raw image bytes into a RawImage.
//
// Supported formats are PNG, JPEG, and GIF (the stdlib decoders registered
// above). The color view is normalized to NRGBA regardless of the source
// color model, and the grayscale view is derived from it.
//
// Returns an error wrapping ErrInvalidImage if the bytes cannot be decoded
// or the decoded image has zero area. Decode has no side effects.
func Decode(data []byte) (*RawImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: zero area (%dx%d)", ErrInvalidImage, width, height)
	}

	// Clone re-bases the image at (0,0) and normalizes to NRGBA, so every
	// downstream stage can assume a zero origin.
	clr := imaging.Clone(img)

	return &RawImage{
		Width:       width,
		Height:      height,
		Color:       clr,
		Gray:        grayscale(clr),
		SourceBytes: len(data),
	}, nil
}

// grayscale converts any image to an 8-bit grayscale buffer using
// ITU-R BT.601 luminance weights: Y = 0.299*R + 0.587*G + 0.114*B.
func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.SetGray(x, y, grayColor(lum))
		}
	}
	return gray
}
