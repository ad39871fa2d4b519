package bib

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"regexp"

	"github.com/racepix/bibscan/internal/detection"
	"github.com/racepix/bibscan/internal/imaging"
	"github.com/racepix/bibscan/internal/ocr"
)

// Cloud submission limits: providers bill by pixel count and reject huge
// payloads, so the frame is downscaled to at most 2400px on the long side
// and re-encoded as JPEG at quality 90 before upload.
const (
	cloudMaxSide     = 2400
	cloudJPEGQuality = 90
)

// digitRunPattern matches embedded runs of digits inside annotation text.
var digitRunPattern = regexp.MustCompile(`[0-9]+`)

// recognizeCloud runs the whole-image cloud stage and returns scored
// candidates in original image coordinates.
//
// The frame is downscaled and JPEG-recompressed, then handed to the
// injected detector. When more than one annotation comes back the first is
// skipped - providers return a whole-image summary annotation ahead of the
// per-fragment ones. Every digit run embedded in an annotation that passes
// the bib validity check becomes a candidate, with its box computed from
// the annotation polygon and mapped back to the original resolution.
func recognizeCloud(ctx context.Context, detector ocr.CloudTextDetector, raw *imaging.RawImage) ([]Candidate, error) {
	scaled := imaging.Downscale(raw.Color, cloudMaxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: cloudJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cloud payload: %w", err)
	}

	annotations, err := detector.DetectText(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cloud text detection failed: %w", err)
	}

	// Map polygon coordinates from the submitted resolution back to the
	// original frame.
	scale := 1.0
	if sw := scaled.Bounds().Dx(); sw > 0 && sw != raw.Width {
		scale = float64(raw.Width) / float64(sw)
	}

	start := 0
	if len(annotations) > 1 {
		start = 1
	}

	candidates := make([]Candidate, 0)
	for _, ann := range annotations[start:] {
		tokens := digitRunPattern.FindAllString(ann.Text, -1)
		if len(tokens) == 0 {
			continue
		}

		box := polygonBounds(ann.Polygon, scale)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}

		numberRatio := digitRatio(ann.Text)
		for _, token := range tokens {
			if !IsValidBibNumber(token) {
				continue
			}
			score := Score(ScoreContext{
				Token:       token,
				Source:      MethodCloud,
				NumberRatio: numberRatio,
				Bounds:      box,
				ImageWidth:  raw.Width,
				ImageHeight: raw.Height,
			})
			candidates = append(candidates, Candidate{
				Token:  token,
				Score:  score,
				Bounds: box,
				Source: MethodCloud,
			})
		}
	}
	return candidates, nil
}

// polygonBounds computes the axis-aligned box of a four-vertex polygon,
// scaled from submitted to original coordinates.
func polygonBounds(polygon [4]ocr.Vertex, scale float64) detection.Bounds {
	minX, minY := polygon[0].X, polygon[0].Y
	maxX, maxY := polygon[0].X, polygon[0].Y
	for _, v := range polygon[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return detection.Bounds{
		X1: int(float64(minX) * scale),
		Y1: int(float64(minY) * scale),
		X2: int(float64(maxX) * scale),
		Y2: int(float64(maxY) * scale),
	}
}

// digitRatio returns the fraction of characters in text that are digits.
func digitRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(len([]rune(text)))
}
