package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// digitWhitelist restricts Tesseract to the ten digit glyphs. Bib plates
// carry no letters, and the whitelist removes the usual 1/I and 0/O
// confusions.
const digitWhitelist = "0123456789"

// TesseractRecognizer is the default DigitRecognizer backed by a local
// Tesseract installation via gosseract.
//
// A fresh client is created per call: gosseract clients are not safe for
// concurrent use, and per-call construction keeps the recognizer stateless
// so the batch helper can run detections in parallel.
type TesseractRecognizer struct {
	// Language is the Tesseract language code. Empty means "eng".
	Language string
}

// NewTesseractRecognizer returns a recognizer using English language data.
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{Language: "eng"}
}

// ReadDigits runs Tesseract over the image in single-word, digits-only
// mode and returns the recognized tokens with word-level boxes and 0-100
// confidences.
//
// The image is PNG-encoded in memory and handed to Tesseract as bytes; no
// temporary files are written. Empty words are filtered out.
func (r *TesseractRecognizer) ReadDigits(img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	language := r.Language
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetWhitelist(digitWhitelist); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_WORD); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return words, nil
}
