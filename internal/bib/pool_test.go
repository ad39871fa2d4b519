package bib

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestProcessBatch_BoundsConcurrency(t *testing.T) {
	rec := &mockRecognizer{delay: 20 * time.Millisecond}
	d, cache := newTestDetector(t, nil, rec)

	data := flatPhotoPNG(t, 40, 40)
	items := make([]BatchItem, 12)
	for i := range items {
		items[i] = BatchItem{PhotoID: fmt.Sprintf("photo-%d", i), Data: data}
	}

	results := d.ProcessBatch(context.Background(), items, 3)

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("photo %s failed: %v", r.PhotoID, r.Err)
		}
		if r.Result.BibNumber != Unknown {
			t.Errorf("photo %s: expected unknown on a blank frame, got %+v", r.PhotoID, r.Result)
		}
		seen[r.PhotoID] = true
	}
	if len(seen) != len(items) {
		t.Errorf("expected every photo exactly once, saw %d distinct ids", len(seen))
	}

	if got := rec.maxInflight; got > 3 {
		t.Errorf("observed %d concurrent detections, limit was 3", got)
	}
	if cache.Len() != len(items) {
		t.Errorf("expected %d cached results, got %d", len(items), cache.Len())
	}
}

func TestProcessBatch_DefaultConcurrency(t *testing.T) {
	rec := &mockRecognizer{}
	d, _ := newTestDetector(t, nil, rec)

	data := flatPhotoPNG(t, 40, 40)
	items := []BatchItem{
		{PhotoID: "a", Data: data},
		{PhotoID: "b", Data: data},
	}

	results := d.ProcessBatch(context.Background(), items, 0)
	if len(results) != 2 {
		t.Errorf("expected 2 results with the default limit, got %d", len(results))
	}
}

func TestProcessBatch_BadItemDoesNotPoisonBatch(t *testing.T) {
	rec := &mockRecognizer{}
	d, _ := newTestDetector(t, nil, rec)

	items := []BatchItem{
		{PhotoID: "good", Data: flatPhotoPNG(t, 40, 40)},
		{PhotoID: "bad", Data: []byte("corrupt bytes")},
	}

	results := d.ProcessBatch(context.Background(), items, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byID := make(map[string]BatchResult, len(results))
	for _, r := range results {
		byID[r.PhotoID] = r
	}
	if byID["bad"].Err == nil {
		t.Error("expected an error for the corrupt photo")
	}
	if byID["good"].Err != nil {
		t.Errorf("good photo failed: %v", byID["good"].Err)
	}
	if byID["good"].Result.BibNumber != Unknown {
		t.Errorf("expected unknown for a blank frame, got %+v", byID["good"].Result)
	}
}

func TestProcessBatch_Empty(t *testing.T) {
	d, _ := newTestDetector(t, nil, &mockRecognizer{})
	if results := d.ProcessBatch(context.Background(), nil, 3); len(results) != 0 {
		t.Errorf("expected no results for an empty batch, got %d", len(results))
	}
}
