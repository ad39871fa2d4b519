package bib

import (
	"image"
	"log"

	"github.com/racepix/bibscan/internal/detection"
	"github.com/racepix/bibscan/internal/imaging"
	"github.com/racepix/bibscan/internal/ocr"
)

// recognitionScales are the resize factors tried per candidate region.
// Tesseract's digit accuracy is sensitive to glyph height, and a small
// pyramid around the native size recovers tokens a single pass misses.
var recognitionScales = []float64{0.8, 1.0, 1.3, 1.6}

const (
	// minScaleSide skips pyramid levels where the resized region would be
	// too small for the engine to segment anything.
	minScaleSide = 15

	// regionFallbackThreshold triggers the whole-image OCR pass when no
	// region candidate scores above it.
	regionFallbackThreshold = 0.4
)

// recognizeLocal runs the local recognition stage: every proposed region
// is enhanced and read at multiple scales, and if nothing convincing comes
// back the recognizer takes one pass over the whole preprocessed frame.
//
// A recognizer error on one region (or one scale) is logged and skipped;
// it never aborts the photo.
func recognizeLocal(recognizer ocr.DigitRecognizer, raw *imaging.RawImage, preprocessed *image.Gray, regions []detection.Region) []Candidate {
	candidates := make([]Candidate, 0)
	for _, region := range regions {
		crop := imaging.CropGray(preprocessed, region.Bounds.X1, region.Bounds.Y1, region.Bounds.X2, region.Bounds.Y2)
		enhanced := imaging.EnhanceRegion(crop)
		candidates = append(candidates, recognizeRegion(recognizer, enhanced, region.Bounds, raw)...)
	}

	if best := bestCandidate(candidates); best == nil || best.Score <= regionFallbackThreshold {
		candidates = append(candidates, recognizeWholeImage(recognizer, preprocessed, raw)...)
	}
	return candidates
}

// recognizeRegion reads one enhanced region at every pyramid scale and
// returns the scored candidates, with boxes mapped back to the original
// image frame.
func recognizeRegion(recognizer ocr.DigitRecognizer, enhanced *image.Gray, origin detection.Bounds, raw *imaging.RawImage) []Candidate {
	b := enhanced.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	candidates := make([]Candidate, 0)
	for _, scale := range recognitionScales {
		sw := int(float64(w) * scale)
		sh := int(float64(h) * scale)
		if sw < minScaleSide || sh < minScaleSide {
			continue
		}

		scaled := enhanced
		if scale != 1.0 {
			scaled = imaging.ResizeGray(enhanced, sw, sh)
		}

		words, err := recognizer.ReadDigits(scaled)
		if err != nil {
			log.Printf("local recognition failed on region (%d,%d)-(%d,%d) at scale %.1f: %v",
				origin.X1, origin.Y1, origin.X2, origin.Y2, scale, err)
			continue
		}

		for _, word := range words {
			if !IsValidBibNumber(word.Text) {
				continue
			}
			box := mapWordBounds(word.Bounds, scale, origin)
			candidates = append(candidates, scoreLocalWord(word, box, raw))
		}
	}
	return candidates
}

// recognizeWholeImage is the last-resort pass over the entire enhanced
// frame, for plates the proposer never put a box around.
func recognizeWholeImage(recognizer ocr.DigitRecognizer, preprocessed *image.Gray, raw *imaging.RawImage) []Candidate {
	enhanced := imaging.EnhanceRegion(preprocessed)
	words, err := recognizer.ReadDigits(enhanced)
	if err != nil {
		log.Printf("local recognition failed on whole image: %v", err)
		return nil
	}

	// The enhancer may have resized the frame; map boxes back.
	eb := enhanced.Bounds()
	scaleX := 1.0
	scaleY := 1.0
	if eb.Dx() > 0 && eb.Dy() > 0 {
		scaleX = float64(eb.Dx()) / float64(raw.Width)
		scaleY = float64(eb.Dy()) / float64(raw.Height)
	}

	candidates := make([]Candidate, 0, len(words))
	for _, word := range words {
		if !IsValidBibNumber(word.Text) {
			continue
		}
		box := detection.Bounds{
			X1: int(float64(word.Bounds.X1) / scaleX),
			Y1: int(float64(word.Bounds.Y1) / scaleY),
			X2: int(float64(word.Bounds.X2) / scaleX),
			Y2: int(float64(word.Bounds.Y2) / scaleY),
		}
		box = clampToImage(box, raw.Width, raw.Height)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		candidates = append(candidates, scoreLocalWord(word, box, raw))
	}
	return candidates
}

// mapWordBounds converts a word box from pyramid-scale coordinates back to
// the original image frame: divide by the scale factor, then offset by the
// region origin. The result is clamped into the region so enhancement
// geometry drift cannot push a box outside its plate.
func mapWordBounds(b ocr.Bounds, scale float64, origin detection.Bounds) detection.Bounds {
	box := detection.Bounds{
		X1: origin.X1 + int(float64(b.X1)/scale),
		Y1: origin.Y1 + int(float64(b.Y1)/scale),
		X2: origin.X1 + int(float64(b.X2)/scale),
		Y2: origin.Y1 + int(float64(b.Y2)/scale),
	}
	if box.X1 < origin.X1 {
		box.X1 = origin.X1
	}
	if box.Y1 < origin.Y1 {
		box.Y1 = origin.Y1
	}
	if box.X2 > origin.X2 {
		box.X2 = origin.X2
	}
	if box.Y2 > origin.Y2 {
		box.Y2 = origin.Y2
	}
	return box
}

func clampToImage(b detection.Bounds, width, height int) detection.Bounds {
	if b.X1 < 0 {
		b.X1 = 0
	}
	if b.Y1 < 0 {
		b.Y1 = 0
	}
	if b.X2 > width {
		b.X2 = width
	}
	if b.Y2 > height {
		b.Y2 = height
	}
	return b
}

func scoreLocalWord(word ocr.Word, box detection.Bounds, raw *imaging.RawImage) Candidate {
	score := Score(ScoreContext{
		Token:           word.Text,
		Source:          MethodLocal,
		LocalConfidence: word.Confidence,
		Bounds:          box,
		ImageWidth:      raw.Width,
		ImageHeight:     raw.Height,
	})
	return Candidate{
		Token:  word.Text,
		Score:  score,
		Bounds: box,
		Source: MethodLocal,
	}
}
