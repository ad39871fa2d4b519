package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// grayColor converts a float luminance value to a color.Gray, clamping to
// the valid 0-255 range.
func grayColor(v float64) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(v + 0.5)}
}

// grayAt reads a grayscale pixel with clamped (replicated) borders.
// Used for boundary handling in convolution loops.
func grayAt(g *image.Gray, x, y int) float64 {
	b := g.Bounds()
	if x < b.Min.X {
		x = b.Min.X
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return float64(g.GrayAt(x, y).Y)
}

// CropGray extracts a rectangular region from a grayscale image, clamping
// the requested rectangle to the image bounds. The result is re-based at
// (0,0). Returns a 0x0 image if the clamped rectangle is empty.
func CropGray(g *image.Gray, x1, y1, x2, y2 int) *image.Gray {
	b := g.Bounds()
	if x1 < b.Min.X {
		x1 = b.Min.X
	}
	if y1 < b.Min.Y {
		y1 = b.Min.Y
	}
	if x2 > b.Max.X {
		x2 = b.Max.X
	}
	if y2 > b.Max.Y {
		y2 = b.Max.Y
	}
	if x1 >= x2 || y1 >= y2 {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}

	out := image.NewGray(image.Rect(0, 0, x2-x1, y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			out.SetGray(x-x1, y-y1, g.GrayAt(x, y))
		}
	}
	return out
}

// ResizeGray resizes a grayscale image to the given dimensions using cubic
// (Catmull-Rom) interpolation.
func ResizeGray(g *image.Gray, width, height int) *image.Gray {
	resized := imaging.Resize(g, width, height, imaging.CatmullRom)
	return grayscale(resized)
}

// Downscale shrinks an image so its long side is at most maxSide, preserving
// aspect ratio, using Lanczos resampling. Images already within the limit
// are returned unchanged.
func Downscale(img *image.NRGBA, maxSide int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxSide, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxSide, imaging.Lanczos)
}
