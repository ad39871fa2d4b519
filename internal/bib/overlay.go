package bib

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/racepix/bibscan/internal/detection"
	"github.com/racepix/bibscan/internal/imaging"
)

// overlayStroke is the outline thickness of rendered region boxes.
const overlayStroke = 2

// overlayPreviewID is the throwaway cache key used while rendering.
const overlayPreviewID = "overlay-preview"

// Annotate renders a diagnostic overlay for one photo: the proposed
// candidate regions outlined in distinct hues (rank order runs from red
// for the top-priority region around the color wheel), plus the winning
// detection box in white when the photo resolves to a bib number.
//
// The overlay is a debugging aid only; it reruns detection on the provided
// bytes under a throwaway key and leaves the session cache unchanged.
func (d *Detector) Annotate(ctx context.Context, data []byte) ([]byte, error) {
	raw, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	preprocessed := imaging.Preprocess(raw.Gray)
	regions := detection.ProposeRegions(preprocessed)

	canvas := image.NewNRGBA(raw.Color.Bounds())
	draw.Draw(canvas, canvas.Bounds(), raw.Color, image.Point{}, draw.Src)

	for i, region := range regions {
		hue := 360.0 * float64(i) / float64(len(regions))
		c := colorful.Hsv(hue, 1.0, 1.0)
		drawBox(canvas, region.Bounds, nrgbaOf(c))
	}

	// Run the full pipeline so the overlay shows what detection would
	// actually return for these bytes. The preview entry is evicted so
	// the overlay never leaves state behind in the session cache.
	result, err := d.Process(ctx, overlayPreviewID, data)
	d.cache.Evict(d.tenant, overlayPreviewID)
	if err == nil && result.Bounds != nil {
		drawBox(canvas, *result.Bounds, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

func nrgbaOf(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// drawBox outlines a bounding box on the canvas, clamped to the image.
func drawBox(canvas *image.NRGBA, box detection.Bounds, c color.NRGBA) {
	b := canvas.Bounds()
	for s := 0; s < overlayStroke; s++ {
		x1 := box.X1 + s
		y1 := box.Y1 + s
		x2 := box.X2 - 1 - s
		y2 := box.Y2 - 1 - s
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			setPixel(canvas, b, x, y1, c)
			setPixel(canvas, b, x, y2, c)
		}
		for y := y1; y <= y2; y++ {
			setPixel(canvas, b, x1, y, c)
			setPixel(canvas, b, x2, y, c)
		}
	}
}

func setPixel(canvas *image.NRGBA, b image.Rectangle, x, y int, c color.NRGBA) {
	if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
		canvas.SetNRGBA(x, y, c)
	}
}
