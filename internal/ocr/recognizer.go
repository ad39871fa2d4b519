package ocr

import (
	"context"
	"image"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Vertex is one corner of a text annotation polygon.
type Vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Annotation is one text detection returned by a cloud provider: the raw
// text and the four-vertex polygon enclosing it. Cloud providers
// conventionally return a whole-image annotation first, followed by one
// annotation per text fragment.
type Annotation struct {
	Text    string    `json:"text"`
	Polygon [4]Vertex `json:"polygon"`
}

// Word is a single recognized token from the local digit recognizer.
type Word struct {
	// Text is the recognized token.
	Text string `json:"text"`

	// Confidence is the recognizer's confidence on the engine's native
	// 0-100 scale (Tesseract convention). The scoring layer normalizes.
	Confidence float64 `json:"confidence"`

	// Bounds is the token's box in the coordinates of the image that was
	// handed to the recognizer.
	Bounds Bounds `json:"bounds"`
}

// CloudTextDetector is the injected cloud OCR capability. Implementations
// wrap a hosted text-detection service and must surface failures as
// errors, never as partial results. The detection orchestrator treats any
// error as recoverable and falls through to the local pipeline.
type CloudTextDetector interface {
	DetectText(ctx context.Context, imageBytes []byte) ([]Annotation, error)
}

// DigitRecognizer is the injected local OCR capability, configured for
// isolated digit strings (digits-only whitelist, single-word segmentation).
// An error applies to the one image handed in; callers skip the region and
// continue.
type DigitRecognizer interface {
	ReadDigits(img image.Image) ([]Word, error)
}
