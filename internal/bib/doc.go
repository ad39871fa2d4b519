// Package bib contains the detection orchestrator and everything specific
// to bib numbers: token validation, the composite confidence model, the
// cloud and local recognition stages, the per-session result cache, and
// the batch helper.
//
// # Detection Flow
//
// Detector.Process drives a small state machine per photo:
//
//	Start -> CloudAttempt -> {Accepted | LocalPipeline} -> {Accepted | Unknown}
//
// The cloud stage submits the (downscaled, recompressed) whole image to
// the injected CloudTextDetector and accepts immediately above a 0.45
// composite confidence, skipping all local work. Otherwise the local
// pipeline runs: preprocessing, region proposal, per-region enhancement,
// and multi-scale Tesseract recognition, accepted above 0.4. Photos with
// no convincing token terminate as "unknown" with confidence 0 - a valid
// classification, not an error.
//
// # Confidence Model
//
// Every candidate token gets a base confidence (cloud prior or normalized
// recognizer confidence) composed with an ordered chain of named,
// independently testable multiplier rules: vertical position, standalone
// ratio, aspect ratio, digit length, resolution-adaptive area ratio, and a
// plate-texture proxy. Scores may transiently exceed 1.0 internally; the
// reported confidence is capped at 0.99, with 1.0 reserved for manual
// labels.
//
// # Manual Overrides
//
// Detector.ManualLabel writes a human-supplied label directly into the
// cache from any state and always wins over pipeline output.
package bib
