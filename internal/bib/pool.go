package bib

import (
	"context"
	"sync"
)

// DefaultBatchConcurrency bounds simultaneous in-flight detections. Five
// keeps outbound cloud calls and local CPU load within reason on typical
// worker hosts.
const DefaultBatchConcurrency = 5

// BatchItem is one photo queued for batch detection.
type BatchItem struct {
	PhotoID string
	Data    []byte
}

// BatchResult pairs a photo with its detection outcome. Err is non-nil
// only for undecodable input; recognition misses come back as Unknown
// results, not errors.
type BatchResult struct {
	PhotoID string
	Result  Result
	Err     error
}

// ProcessBatch runs detection over a set of photos with bounded
// concurrency.
//
// At most concurrency detections are in flight at once (DefaultBatchConcurrency
// when concurrency <= 0). Results are returned in completion order. Retry
// and backoff policy stays with the caller; a failed photo appears once
// with its error and is not re-queued here.
func (d *Detector) ProcessBatch(ctx context.Context, items []BatchItem, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	sem := make(chan struct{}, concurrency)
	results := make([]BatchResult, 0, len(items))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, item := range items {
		wg.Add(1)
		go func(item BatchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := d.Process(ctx, item.PhotoID, item.Data)
			mu.Lock()
			results = append(results, BatchResult{PhotoID: item.PhotoID, Result: result, Err: err})
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	return results
}
