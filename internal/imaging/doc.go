// Package imaging provides the image processing stages of the bib detection
// pipeline: decoding, preprocessing, and candidate-region enhancement.
//
// All operations work with standard Go image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and
// Y increases downward. Decoded images are re-based at a zero origin so
// downstream stages never deal with non-zero bounds.
//
// # Pipeline Stages
//
// The package covers three stages of the detection pipeline:
//
//   - Decode: raw bytes to a RawImage with color and grayscale views
//   - Preprocess: Gaussian denoise plus CLAHE lighting normalization,
//     producing the working buffer shared by region proposal and
//     enhancement
//   - EnhanceRegion: per-candidate upscale, best-effort perspective
//     correction, heuristic motion deblur, unsharp masking, and histogram
//     equalization
//
// # Determinism
//
// Every transform here is a pure function of its input buffer. Identical
// bytes produce identical outputs, which the detection orchestrator relies
// on for result idempotence.
//
// # Error Handling
//
// Only Decode can fail (ErrInvalidImage on undecodable bytes or zero area).
// The remaining transforms accept any buffer that survived decoding and
// have no failure modes; degenerate crops pass through unchanged.
//
// # Performance Considerations
//
// The transforms iterate over all pixels and the Wiener deconvolution pads
// to power-of-two FFT sizes. Candidate crops are small (tens of pixels per
// side after upscale), so enhancement cost is dominated by the number of
// proposed regions, not the source resolution.
package imaging
