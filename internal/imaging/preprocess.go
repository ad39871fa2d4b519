package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
)

// Tile grid and clip limit for local contrast enhancement. An 8x8 grid with
// a clip limit of 2x the mean bin height is the conventional CLAHE setup.
const (
	claheTiles     = 8
	claheClipLimit = 2.0
)

// Preprocess produces the working grayscale buffer shared by region proposal
// and the enhancement stages.
//
// Two transforms are applied in order:
//
//  1. A small Gaussian blur to suppress sensor noise before thresholding.
//  2. Contrast-limited adaptive histogram equalization (CLAHE) to normalize
//     lighting across the frame, so plates in shadow and in direct sun end
//     up with comparable local contrast.
//
// Preprocess is deterministic and has no failure modes; invalid input is
// rejected earlier at decode time.
func Preprocess(gray *image.Gray) *image.Gray {
	blurred := grayscale(blur.Gaussian(gray, 1.0))
	return clahe(blurred, claheTiles, claheClipLimit)
}

// clahe performs contrast-limited adaptive histogram equalization.
//
// The image is divided into a tiles x tiles grid. Each tile gets its own
// clipped histogram: bins above clipLimit times the mean bin height are
// clipped and the excess redistributed uniformly, which bounds how much a
// near-uniform tile can amplify noise. Each tile's clipped CDF becomes a
// per-tile intensity mapping, and every pixel is remapped by bilinearly
// interpolating between the mappings of the four surrounding tile centers.
func clahe(g *image.Gray, tiles int, clipLimit float64) *image.Gray {
	bounds := g.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return g
	}

	tileW := (width + tiles - 1) / tiles
	tileH := (height + tiles - 1) / tiles
	if tileW < 1 {
		tileW = 1
	}
	if tileH < 1 {
		tileH = 1
	}
	tilesX := (width + tileW - 1) / tileW
	tilesY := (height + tileH - 1) / tileH

	// Per-tile remap tables.
	maps := make([][][256]uint8, tilesY)
	for ty := 0; ty < tilesY; ty++ {
		maps[ty] = make([][256]uint8, tilesX)
		for tx := 0; tx < tilesX; tx++ {
			x1 := tx * tileW
			y1 := ty * tileH
			x2 := x1 + tileW
			y2 := y1 + tileH
			if x2 > width {
				x2 = width
			}
			if y2 > height {
				y2 = height
			}
			maps[ty][tx] = tileMapping(g, x1, y1, x2, y2, clipLimit)
		}
	}

	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		// Position relative to tile centers, for interpolation weights.
		fy := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := int(fy)
		if fy < 0 {
			ty0 = 0
			fy = 0
		}
		ty1 := ty0 + 1
		if ty0 >= tilesY-1 {
			ty0 = tilesY - 1
			ty1 = tilesY - 1
		}
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		}
		if wy > 1 {
			wy = 1
		}

		for x := 0; x < width; x++ {
			fx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := int(fx)
			if fx < 0 {
				tx0 = 0
				fx = 0
			}
			tx1 := tx0 + 1
			if tx0 >= tilesX-1 {
				tx0 = tilesX - 1
				tx1 = tilesX - 1
			}
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			}
			if wx > 1 {
				wx = 1
			}

			v := g.GrayAt(x, y).Y
			top := (1-wx)*float64(maps[ty0][tx0][v]) + wx*float64(maps[ty0][tx1][v])
			bottom := (1-wx)*float64(maps[ty1][tx0][v]) + wx*float64(maps[ty1][tx1][v])
			out.SetGray(x, y, grayColor((1-wy)*top+wy*bottom))
		}
	}
	return out
}

// tileMapping builds the clipped-histogram equalization table for one tile.
func tileMapping(g *image.Gray, x1, y1, x2, y2 int, clipLimit float64) [256]uint8 {
	var hist [256]float64
	count := 0
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			hist[g.GrayAt(x, y).Y]++
			count++
		}
	}

	var table [256]uint8
	if count == 0 {
		for i := range table {
			table[i] = uint8(i)
		}
		return table
	}

	// Clip bins and redistribute the excess uniformly.
	limit := clipLimit * float64(count) / 256.0
	if limit < 1 {
		limit = 1
	}
	excess := 0.0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256.0
	for i := range hist {
		hist[i] += bonus
	}

	// CDF to intensity mapping.
	cdf := 0.0
	for i := range hist {
		cdf += hist[i]
		table[i] = uint8(cdf/float64(count)*255.0 + 0.5)
	}
	return table
}

// Equalize applies plain global histogram equalization. Used as the final
// contrast normalization on enhanced candidate regions, where the crop is
// small enough that tile-local equalization adds nothing.
func Equalize(g *image.Gray) *image.Gray {
	bounds := g.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return g
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[g.GrayAt(x, y).Y]++
		}
	}

	total := width * height
	var table [256]uint8
	cdf := 0
	for i := range hist {
		cdf += hist[i]
		table[i] = uint8(float64(cdf)/float64(total)*255.0 + 0.5)
	}

	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.SetGray(x, y, color.Gray{Y: table[g.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y]})
		}
	}
	return out
}
