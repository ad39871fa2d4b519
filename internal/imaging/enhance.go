package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
)

const (
	// minEnhancedSide is the minimum dimension a candidate region is
	// upscaled to before recognition. Tesseract accuracy collapses on
	// glyphs shorter than roughly 20px, so small crops get cubic upscale.
	minEnhancedSide = 30

	// blurVarianceThreshold gates the deblur step. Variance of the
	// Laplacian below this indicates a soft, likely motion-blurred crop.
	blurVarianceThreshold = 500.0

	// Unsharp mask: out = 1.8*img - 0.8*gaussian(img, sigma=1.0).
	unsharpAmount = 1.8
	unsharpSigma  = 1.0
)

// EnhanceRegion prepares a cropped candidate region for digit recognition.
//
// The chain is:
//
//  1. Cubic upscale if either dimension is below 30px, so the smaller side
//     reaches at least 30px.
//  2. Best-effort perspective correction: if a quadrilateral outline is
//     found inside the crop it is warped to a fronto-parallel rectangle;
//     otherwise the crop passes through unchanged.
//  3. Motion-blur handling: if the variance of the Laplacian is below the
//     blur threshold, an approximate Wiener deconvolution with a fixed
//     horizontal motion kernel is applied. This assumes horizontal motion
//     and is a heuristic correction, not a guaranteed deblur.
//  4. Unsharp masking to crisp up digit strokes.
//  5. Global histogram equalization.
//
// EnhanceRegion is deterministic. Empty crops are returned unchanged.
func EnhanceRegion(crop *image.Gray) *image.Gray {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return crop
	}

	out := crop
	if w < minEnhancedSide || h < minEnhancedSide {
		out = upscaleToMinSide(out, minEnhancedSide)
	}

	out = CorrectPerspective(out)

	if LaplacianVariance(out) < blurVarianceThreshold {
		out = WienerDeblur(out, motionKernelLength, wienerEpsilon)
	}

	out = UnsharpMask(out)
	return Equalize(out)
}

// upscaleToMinSide scales the image up so its smaller side reaches minSide,
// preserving aspect ratio, with cubic interpolation.
func upscaleToMinSide(g *image.Gray, minSide int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	smaller := w
	if h < smaller {
		smaller = h
	}
	scale := float64(minSide) / float64(smaller)
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < minSide {
		nw = minSide
	}
	if nh < minSide {
		nh = minSide
	}
	return ResizeGray(g, nw, nh)
}

// UnsharpMask sharpens digit strokes: out = clip(1.8*img - 0.8*blur(img)).
func UnsharpMask(g *image.Gray) *image.Gray {
	blurred := grayscale(blur.Gaussian(g, unsharpSigma))

	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			orig := float64(g.GrayAt(x+b.Min.X, y+b.Min.Y).Y)
			soft := float64(blurred.GrayAt(x, y).Y)
			out.SetGray(x, y, grayColor(unsharpAmount*orig-(unsharpAmount-1.0)*soft))
		}
	}
	return out
}
