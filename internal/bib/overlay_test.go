package bib

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/racepix/bibscan/internal/ocr"
)

func TestAnnotate(t *testing.T) {
	cloud := &mockCloud{annotations: []ocr.Annotation{
		{Text: "RACE 123"},
		{Text: "123", Polygon: [4]ocr.Vertex{{X: 150, Y: 880}, {X: 250, Y: 880}, {X: 250, Y: 920}, {X: 150, Y: 920}}},
	}}
	d, cache := newTestDetector(t, cloud, &mockRecognizer{})

	data := flatPhotoPNG(t, 400, 1000)
	overlay, err := d.Annotate(context.Background(), data)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(overlay))
	if err != nil {
		t.Fatalf("overlay is not a valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 1000 {
		t.Errorf("overlay dimensions %dx%d, want 400x1000", b.Dx(), b.Dy())
	}

	// The winning box must be drawn in white on the canvas.
	r, g, b, _ := img.At(150, 880).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("expected a white winner outline at (150,880), got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	// Rendering leaves no trace in the session cache.
	if cache.Len() != 0 {
		t.Errorf("expected the preview entry to be evicted, cache has %d entries", cache.Len())
	}
}

func TestAnnotate_UndecodableInput(t *testing.T) {
	d, _ := newTestDetector(t, nil, &mockRecognizer{})
	if _, err := d.Annotate(context.Background(), []byte("junk")); err == nil {
		t.Fatal("expected error for undecodable input")
	}
}
