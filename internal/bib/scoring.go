package bib

import (
	"github.com/racepix/bibscan/internal/detection"
)

// maxReportedConfidence caps the confidence reported at the result
// boundary. Internal scores compose multiplicatively and may transiently
// exceed 1.0 before the cap.
const maxReportedConfidence = 0.99

// highResolutionHeight switches the area-ratio rule to its wide acceptance
// band: on very tall frames a bib plate occupies a much smaller fraction of
// the image.
const highResolutionHeight = 4000

// ScoreContext carries everything a scoring rule may inspect about one
// candidate token.
type ScoreContext struct {
	// Token is the digit string under evaluation.
	Token string

	// Source is MethodCloud or MethodLocal.
	Source Method

	// NumberRatio is len(digits)/len(full annotation text) for cloud
	// candidates. Zero for local candidates, whose recognizer already
	// isolates digit tokens.
	NumberRatio float64

	// LocalConfidence is the local recognizer's confidence on its native
	// 0-100 scale. Unused for cloud candidates.
	LocalConfidence float64

	// Bounds is the candidate box in original image coordinates.
	Bounds detection.Bounds

	// ImageWidth and ImageHeight describe the original frame.
	ImageWidth  int
	ImageHeight int
}

func (c ScoreContext) relativeCenterY() float64 {
	if c.ImageHeight == 0 {
		return 0
	}
	center := float64(c.Bounds.Y1) + float64(c.Bounds.Height())/2
	return center / float64(c.ImageHeight)
}

func (c ScoreContext) aspectRatio() float64 {
	h := c.Bounds.Height()
	if h == 0 {
		return 0
	}
	return float64(c.Bounds.Width()) / float64(h)
}

func (c ScoreContext) areaRatio() float64 {
	total := c.ImageWidth * c.ImageHeight
	if total == 0 {
		return 0
	}
	return float64(c.Bounds.Area()) / float64(total)
}

// ScoreRule is one named, independently testable confidence heuristic.
// Apply returns a multiplier composed onto the base confidence.
type ScoreRule struct {
	Name  string
	Apply func(ScoreContext) float64
}

// defaultRules is the ordered rule chain applied to every candidate.
var defaultRules = []ScoreRule{
	{Name: "position", Apply: positionBoost},
	{Name: "standalone", Apply: standaloneBoost},
	{Name: "aspect", Apply: aspectBoost},
	{Name: "digit-length", Apply: digitLengthBoost},
	{Name: "area-ratio", Apply: areaRatioBoost},
	{Name: "texture", Apply: textureBoost},
}

// baseConfidence computes the pre-boost confidence. Cloud detections start
// from a high prior scaled by how numeric the annotation was; local
// detections normalize the recognizer's 0-100 confidence.
func baseConfidence(ctx ScoreContext) float64 {
	if ctx.Source == MethodCloud {
		return 0.75 + 0.15*ctx.NumberRatio
	}
	return ctx.LocalConfidence / 100.0
}

// Score composes the base confidence with every rule multiplier. The
// returned value is uncapped; use CapConfidence at the result boundary.
func Score(ctx ScoreContext) float64 {
	score := baseConfidence(ctx)
	for _, rule := range defaultRules {
		score *= rule.Apply(ctx)
	}
	return score
}

// CapConfidence clamps a composite score into the reportable range
// [0.0, 0.99].
func CapConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > maxReportedConfidence {
		return maxReportedConfidence
	}
	return score
}

// positionBoost rewards boxes low in the frame, where torso-mounted plates
// sit. Boxes in the top 40% are penalized.
func positionBoost(ctx ScoreContext) float64 {
	relY := ctx.relativeCenterY()
	switch {
	case relY > 0.85:
		return 1.6
	case relY > 0.75:
		return 1.4
	case relY > 0.65:
		return 1.2
	case relY > 0.5:
		return 1.0
	case relY < 0.4:
		return 0.8
	default:
		return 1.0
	}
}

// standaloneBoost rewards cloud annotations that are almost entirely
// numeric: a bib number rarely shares its annotation with other text.
func standaloneBoost(ctx ScoreContext) float64 {
	if ctx.NumberRatio > 0.8 {
		return 1.1
	}
	return 1.0
}

// aspectBoost rewards the wide-but-not-banner shape of a printed plate.
func aspectBoost(ctx ScoreContext) float64 {
	aspect := ctx.aspectRatio()
	if aspect >= 1.5 && aspect <= 4.0 {
		return 1.1
	}
	if aspect > 4.5 {
		return 0.9
	}
	return 1.0
}

// digitLengthBoost rewards the common 1-4 digit race numbers.
func digitLengthBoost(ctx ScoreContext) float64 {
	if n := len(ctx.Token); n >= 1 && n <= 4 {
		return 1.1
	}
	return 1.0
}

// areaRatioBoost rewards boxes whose area fraction matches a plate. The
// acceptance band is resolution-adaptive: above 4000px of height the same
// plate covers far less of the frame, so the band widens downward.
func areaRatioBoost(ctx ScoreContext) float64 {
	ratio := ctx.areaRatio()

	acceptLow, acceptHigh := 0.001, 0.05
	softLow, softHigh := 0.0005, 0.1
	if ctx.ImageHeight > highResolutionHeight {
		acceptLow, acceptHigh = 0.0001, 0.03
		softLow, softHigh = 0.00005, 0.08
	}

	if ratio >= acceptLow && ratio <= acceptHigh {
		return 1.2
	}
	if ratio < softLow || ratio > softHigh {
		return 0.9
	}
	return 1.0
}

// textureBoost is a position/shape proxy separating rigid printed plates
// from digits on fabric. The multiplier floors at 0.7.
func textureBoost(ctx ScoreContext) float64 {
	relY := ctx.relativeCenterY()
	aspect := ctx.aspectRatio()
	ratio := ctx.areaRatio()

	boost := 1.0
	if relY > 0.6 {
		boost *= 1.1
	}
	if relY < 0.4 {
		boost *= 0.9
	}
	if aspect >= 1.5 && aspect <= 4.0 {
		boost *= 1.05
	}
	if ratio >= 0.002 && ratio <= 0.05 {
		boost *= 1.05
	}
	if ratio < 0.001 {
		boost *= 0.8
	}
	if ratio > 0.1 {
		boost *= 0.9
	}

	if boost < 0.7 {
		boost = 0.7
	}
	return boost
}
