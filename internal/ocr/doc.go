// Package ocr defines the two injected text-recognition capabilities the
// detection pipeline depends on, plus the default local implementation.
//
// The pipeline never talks to the network or an OCR engine directly; it is
// handed a CloudTextDetector (hosted text detection over the whole image)
// and a DigitRecognizer (local engine tuned for isolated digit strings).
// The cloud capability is optional - a nil detector simply skips the cloud
// stage - while the local capability is required.
//
// TesseractRecognizer is the shipped DigitRecognizer: gosseract with a
// digits-only whitelist and single-word page segmentation. Confidences are
// kept on Tesseract's native 0-100 scale; the scoring layer normalizes.
package ocr
