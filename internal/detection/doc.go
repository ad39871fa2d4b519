// Package detection implements the region-proposal stage of the bib
// detection pipeline.
//
// The proposer looks for plate-shaped structures: it combines an adaptive
// threshold with a Canny edge map, closes gaps with a horizontal-leaning
// morphological kernel, extracts contours, and filters their bounding
// rectangles by the geometry of a torso-mounted bib plate (wide aspect
// ratio, low in the frame, narrow area band).
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward, Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Priority Scores
//
// Surviving candidates carry a heuristic priority in [0.1, ~0.75] built
// from additive position/shape/size bonuses. The priority ranks regions for
// recognition order only; it is not a recognition confidence.
//
// # Limitations
//
// This is a proposal heuristic, not a detector: plates at odd angles, in
// the top third of the frame, or blending into clothing are missed. The
// surrounding pipeline compensates with whole-image cloud text detection
// and a full-image OCR fallback.
package detection
