package bib

import (
	"image"
	"image/color"
	"testing"

	"github.com/racepix/bibscan/internal/detection"
	"github.com/racepix/bibscan/internal/ocr"
)

func flatGrayFixture(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 180})
		}
	}
	return img
}

func TestMapWordBounds(t *testing.T) {
	origin := detection.Bounds{X1: 100, Y1: 200, X2: 300, Y2: 400}

	// Scale 0.5: divide by the factor, then offset by the region origin.
	got := mapWordBounds(ocr.Bounds{X1: 10, Y1: 20, X2: 30, Y2: 40}, 0.5, origin)
	want := detection.Bounds{X1: 120, Y1: 240, X2: 160, Y2: 280}
	if got != want {
		t.Errorf("mapped bounds = %+v, want %+v", got, want)
	}

	// A box past the region extent is clamped into the region.
	got = mapWordBounds(ocr.Bounds{X1: 90, Y1: 95, X2: 150, Y2: 130}, 0.5, origin)
	if got.X2 != origin.X2 || got.Y2 != origin.Y2 {
		t.Errorf("expected clamping to the region edge, got %+v", got)
	}
	if got.X1 < origin.X1 || got.Y1 < origin.Y1 {
		t.Errorf("mapped box escapes the region: %+v", got)
	}
}

func TestRecognizeRegion_SkipsTinyScales(t *testing.T) {
	// A 16x16 region is below the minimum at scale 0.8 (12px) but usable at
	// 1.0, 1.3 and 1.6.
	rec := &mockRecognizer{}
	enhanced := flatGrayFixture(16, 16)
	origin := detection.Bounds{X1: 0, Y1: 0, X2: 16, Y2: 16}

	recognizeRegion(rec, enhanced, origin, rawFixture(100, 100))

	if got := rec.callCount(); got != 3 {
		t.Fatalf("expected 3 pyramid reads, got %d", got)
	}
	wantSizes := []image.Point{{X: 16, Y: 16}, {X: 20, Y: 20}, {X: 25, Y: 25}}
	for i, want := range wantSizes {
		if rec.sizes[i] != want {
			t.Errorf("read %d at %v, want %v", i, rec.sizes[i], want)
		}
	}
}

func TestRecognizeRegion_MapsBoxesIntoRegion(t *testing.T) {
	rec := &mockRecognizer{words: []ocr.Word{
		{Text: "77", Confidence: 90, Bounds: ocr.Bounds{X1: 10, Y1: 10, X2: 60, Y2: 35}},
	}}
	enhanced := flatGrayFixture(100, 50)
	origin := detection.Bounds{X1: 40, Y1: 180, X2: 140, Y2: 230}

	candidates := recognizeRegion(rec, enhanced, origin, rawFixture(200, 300))

	if rec.callCount() != len(recognitionScales) {
		t.Errorf("expected %d pyramid reads, got %d", len(recognitionScales), rec.callCount())
	}
	if len(candidates) != len(recognitionScales) {
		t.Fatalf("expected one candidate per scale, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Token != "77" || c.Source != MethodLocal {
			t.Errorf("unexpected candidate %+v", c)
		}
		b := c.Bounds
		if b.X1 < origin.X1 || b.Y1 < origin.Y1 || b.X2 > origin.X2 || b.Y2 > origin.Y2 {
			t.Errorf("candidate box %+v escapes region %+v", b, origin)
		}
		if b.Width() <= 0 || b.Height() <= 0 {
			t.Errorf("degenerate candidate box %+v", b)
		}
	}

	// The native-scale read maps by pure offset.
	native := candidates[1]
	want := detection.Bounds{X1: 50, Y1: 190, X2: 100, Y2: 215}
	if native.Bounds != want {
		t.Errorf("native-scale box = %+v, want %+v", native.Bounds, want)
	}
}

func TestRecognizeRegion_FiltersInvalidTokens(t *testing.T) {
	rec := &mockRecognizer{words: []ocr.Word{
		{Text: "0", Confidence: 90, Bounds: ocr.Bounds{X1: 5, Y1: 5, X2: 40, Y2: 25}},
		{Text: "1234567", Confidence: 90, Bounds: ocr.Bounds{X1: 5, Y1: 5, X2: 40, Y2: 25}},
	}}
	enhanced := flatGrayFixture(60, 30)
	origin := detection.Bounds{X1: 0, Y1: 0, X2: 60, Y2: 30}

	candidates := recognizeRegion(rec, enhanced, origin, rawFixture(200, 300))
	if len(candidates) != 0 {
		t.Errorf("expected invalid tokens to be dropped, got %+v", candidates)
	}
}

func TestRecognizeLocal_WholeImageFallback(t *testing.T) {
	// With no proposed regions the recognizer still gets one pass over the
	// whole frame.
	rec := &mockRecognizer{}
	preprocessed := flatGrayFixture(64, 64)

	recognizeLocal(rec, rawFixture(64, 64), preprocessed, nil)
	if got := rec.callCount(); got != 1 {
		t.Errorf("expected exactly one whole-image read, got %d", got)
	}
}

func TestRecognizeLocal_NoFallbackOnConfidentRegion(t *testing.T) {
	// A confident region candidate suppresses the whole-image pass: only
	// the pyramid reads for the one region happen.
	rec := &mockRecognizer{words: []ocr.Word{
		{Text: "77", Confidence: 90, Bounds: ocr.Bounds{X1: 10, Y1: 10, X2: 60, Y2: 35}},
	}}
	preprocessed := flatGrayFixture(200, 300)
	regions := []detection.Region{
		{Bounds: detection.Bounds{X1: 40, Y1: 180, X2: 140, Y2: 230}, Priority: 0.75},
	}

	candidates := recognizeLocal(rec, rawFixture(200, 300), preprocessed, regions)

	if got := rec.callCount(); got != len(recognitionScales) {
		t.Errorf("expected only the %d region reads, got %d", len(recognitionScales), got)
	}
	best := bestCandidate(candidates)
	if best == nil || best.Score <= regionFallbackThreshold {
		t.Errorf("expected a confident candidate, got %+v", best)
	}
}

func TestRecognizeRegion_EmptyRegion(t *testing.T) {
	rec := &mockRecognizer{}
	if got := recognizeRegion(rec, image.NewGray(image.Rect(0, 0, 0, 0)), detection.Bounds{}, rawFixture(100, 100)); got != nil {
		t.Errorf("expected nil for an empty region, got %+v", got)
	}
	if rec.callCount() != 0 {
		t.Error("empty region must not reach the recognizer")
	}
}
