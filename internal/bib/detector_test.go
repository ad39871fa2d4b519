package bib

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/racepix/bibscan/internal/imaging"
	"github.com/racepix/bibscan/internal/ocr"
)

// mockCloud is a scripted CloudTextDetector that records every payload it
// receives.
type mockCloud struct {
	annotations []ocr.Annotation
	err         error

	mu       sync.Mutex
	calls    int
	payloads [][]byte
}

func (m *mockCloud) DetectText(_ context.Context, imageBytes []byte) ([]ocr.Annotation, error) {
	m.mu.Lock()
	m.calls++
	m.payloads = append(m.payloads, imageBytes)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.annotations, nil
}

// mockRecognizer is a scripted DigitRecognizer that records the dimensions
// of every image handed to it and tracks concurrent use.
type mockRecognizer struct {
	words []ocr.Word
	err   error
	delay time.Duration

	mu    sync.Mutex
	sizes []image.Point

	calls       int32
	inflight    int32
	maxInflight int32
}

func (m *mockRecognizer) ReadDigits(img image.Image) ([]ocr.Word, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.inflight, 1)
	for {
		prev := atomic.LoadInt32(&m.maxInflight)
		if cur <= prev || atomic.CompareAndSwapInt32(&m.maxInflight, prev, cur) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	b := img.Bounds()
	m.sizes = append(m.sizes, image.Point{X: b.Dx(), Y: b.Dy()})
	m.mu.Unlock()
	atomic.AddInt32(&m.inflight, -1)
	if m.err != nil {
		return nil, m.err
	}
	return m.words, nil
}

func (m *mockRecognizer) callCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

// flatPhotoPNG encodes a featureless light-gray frame. The region proposer
// finds nothing in it, which forces the whole-image fallback in the local
// stage.
func flatPhotoPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestDetector(t *testing.T, cloud ocr.CloudTextDetector, local ocr.DigitRecognizer) (*Detector, *ResultCache) {
	t.Helper()
	cache := NewResultCache()
	d, err := NewDetector(Options{Cloud: cloud, Local: local, Cache: cache, Tenant: "test"})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	return d, cache
}

func TestNewDetector_Validation(t *testing.T) {
	if _, err := NewDetector(Options{Cache: NewResultCache()}); err == nil {
		t.Error("expected error without a digit recognizer")
	}
	if _, err := NewDetector(Options{Local: &mockRecognizer{}}); err == nil {
		t.Error("expected error without a result cache")
	}
	if _, err := NewDetector(Options{Local: &mockRecognizer{}, Cache: NewResultCache()}); err != nil {
		t.Errorf("cloud detector should be optional, got %v", err)
	}
}

func TestProcess_CloudShortCircuit(t *testing.T) {
	// A confident cloud hit must return immediately without ever invoking
	// the local recognizer.
	cloud := &mockCloud{annotations: []ocr.Annotation{
		{Text: "RACE 123"}, // whole-image summary, skipped
		{Text: "123", Polygon: [4]ocr.Vertex{{X: 150, Y: 880}, {X: 250, Y: 880}, {X: 250, Y: 920}, {X: 150, Y: 920}}},
	}}
	local := &mockRecognizer{words: []ocr.Word{{Text: "999", Confidence: 95}}}
	d, _ := newTestDetector(t, cloud, local)

	data := flatPhotoPNG(t, 400, 1000)
	result, err := d.Process(context.Background(), "photo-1", data)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.BibNumber != "123" {
		t.Errorf("expected bib 123, got %q", result.BibNumber)
	}
	if result.Method != MethodCloud {
		t.Errorf("expected cloud method, got %q", result.Method)
	}
	if !approxEqual(result.Confidence, 0.99) {
		t.Errorf("expected capped confidence 0.99, got %.3f", result.Confidence)
	}
	if result.Bounds == nil {
		t.Fatal("expected a bounding box on the result")
	}
	if result.Bounds.X1 != 150 || result.Bounds.Y1 != 880 || result.Bounds.X2 != 250 || result.Bounds.Y2 != 920 {
		t.Errorf("unexpected bounds %+v", *result.Bounds)
	}

	if local.callCount() != 0 {
		t.Errorf("local recognizer was invoked %d times on a cloud hit", local.callCount())
	}

	// Cached and idempotent.
	cached, ok := d.Result("photo-1")
	if !ok || cached.BibNumber != "123" {
		t.Errorf("expected cached result, got %+v ok=%v", cached, ok)
	}
	again, err := d.Process(context.Background(), "photo-1", data)
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if again != result {
		// Bounds is a pointer; compare the fields.
		if again.BibNumber != result.BibNumber || again.Confidence != result.Confidence ||
			again.Method != result.Method || *again.Bounds != *result.Bounds {
			t.Errorf("repeated processing diverged: %+v vs %+v", again, result)
		}
	}
}

func TestProcess_CloudErrorFallsBackToLocal(t *testing.T) {
	cloud := &mockCloud{err: errors.New("quota exceeded")}
	local := &mockRecognizer{words: []ocr.Word{
		{Text: "7", Confidence: 60, Bounds: ocr.Bounds{X1: 60, Y1: 195, X2: 135, Y2: 225}},
	}}
	d, _ := newTestDetector(t, cloud, local)

	result, err := d.Process(context.Background(), "photo-2", flatPhotoPNG(t, 200, 300))
	if err != nil {
		t.Fatalf("Process failed despite recoverable cloud error: %v", err)
	}

	if cloud.calls != 1 {
		t.Errorf("expected one cloud attempt, got %d", cloud.calls)
	}
	if local.callCount() == 0 {
		t.Error("expected the local pipeline to run after a cloud error")
	}
	if result.BibNumber != "7" || result.Method != MethodLocal {
		t.Errorf("expected local bib 7, got %+v", result)
	}
	if result.Confidence <= localAcceptThreshold {
		t.Errorf("accepted result carries confidence %.3f at or below the threshold", result.Confidence)
	}
}

func TestProcess_CloudBelowThresholdFallsBackToLocal(t *testing.T) {
	// Non-numeric cloud text yields no candidate, so the local stage runs.
	cloud := &mockCloud{annotations: []ocr.Annotation{{Text: "MARATHON"}}}
	local := &mockRecognizer{words: []ocr.Word{
		{Text: "7", Confidence: 60, Bounds: ocr.Bounds{X1: 60, Y1: 195, X2: 135, Y2: 225}},
	}}
	d, _ := newTestDetector(t, cloud, local)

	result, err := d.Process(context.Background(), "photo-3", flatPhotoPNG(t, 200, 300))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Method != MethodLocal {
		t.Errorf("expected local method after empty cloud result, got %+v", result)
	}
}

func TestProcess_NoDigitsAnywhere(t *testing.T) {
	cloud := &mockCloud{annotations: []ocr.Annotation{{Text: "FINISH LINE"}}}
	local := &mockRecognizer{}
	d, cache := newTestDetector(t, cloud, local)

	result, err := d.Process(context.Background(), "photo-4", flatPhotoPNG(t, 120, 160))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.BibNumber != Unknown || result.Confidence != 0.0 {
		t.Errorf("expected the unknown terminal result, got %+v", result)
	}
	if result.Method != "" {
		t.Errorf("unknown result must not claim a method, got %q", result.Method)
	}
	if cache.Len() != 1 {
		t.Errorf("unknown results must still be cached, cache has %d entries", cache.Len())
	}
}

func TestProcess_UndecodableInput(t *testing.T) {
	d, cache := newTestDetector(t, nil, &mockRecognizer{})

	_, err := d.Process(context.Background(), "bad-photo", []byte("not an image"))
	if err == nil {
		t.Fatal("expected error for undecodable input")
	}
	if !errors.Is(err, imaging.ErrInvalidImage) {
		t.Errorf("expected wrapped ErrInvalidImage, got %v", err)
	}
	if cache.Len() != 0 {
		t.Error("undecodable input must not be cached")
	}
}

func TestManualLabel(t *testing.T) {
	d, _ := newTestDetector(t, nil, &mockRecognizer{})

	result, err := d.ManualLabel("photo-5", "42")
	if err != nil {
		t.Fatalf("ManualLabel failed: %v", err)
	}
	if result.BibNumber != "42" || result.Confidence != 1.0 || result.Method != MethodManual {
		t.Errorf("unexpected manual result %+v", result)
	}
	if result.Bounds != nil {
		t.Error("manual labels carry no bounding box")
	}

	result, err = d.ManualLabel("photo-5", Unknown)
	if err != nil {
		t.Fatalf("ManualLabel(unknown) failed: %v", err)
	}
	if result.BibNumber != Unknown || result.Confidence != 0.0 || result.Method != MethodManual {
		t.Errorf("unexpected manual unknown result %+v", result)
	}

	if _, err := d.ManualLabel("photo-5", "12a"); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel, got %v", err)
	}
	if _, err := d.ManualLabel("photo-5", "1000000"); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel for out-of-range value, got %v", err)
	}
}

func TestManualLabel_OverridesPipelineResult(t *testing.T) {
	cloud := &mockCloud{annotations: []ocr.Annotation{
		{Text: "RACE 123"},
		{Text: "123", Polygon: [4]ocr.Vertex{{X: 150, Y: 880}, {X: 250, Y: 880}, {X: 250, Y: 920}, {X: 150, Y: 920}}},
	}}
	d, _ := newTestDetector(t, cloud, &mockRecognizer{})

	if _, err := d.Process(context.Background(), "photo-6", flatPhotoPNG(t, 400, 1000)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if _, err := d.ManualLabel("photo-6", "555"); err != nil {
		t.Fatalf("ManualLabel failed: %v", err)
	}

	got, ok := d.Result("photo-6")
	if !ok {
		t.Fatal("expected a cached result")
	}
	if got.BibNumber != "555" || got.Confidence != 1.0 || got.Method != MethodManual {
		t.Errorf("manual label did not win: %+v", got)
	}
}
