package detection

import (
	"image"
	"math"
	"sort"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive for iteration)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Width returns the horizontal extent in pixels.
func (b Bounds) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent in pixels.
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels.
func (b Bounds) Area() int { return b.Width() * b.Height() }

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Region is a candidate rectangle likely to contain a bib plate, with a
// heuristic priority used to rank candidates before recognition.
type Region struct {
	Bounds   Bounds  `json:"bounds"`
	Priority float64 `json:"priority"`
}

// Geometric gates for plate-shaped contours. Bib plates are wider than
// tall, mounted on the torso (lower part of the frame), and occupy a narrow
// band of the image area.
const (
	minAreaFraction = 0.0005
	maxAreaFraction = 0.10

	minPlateAspect = 1.2
	maxPlateAspect = 5.0

	minPlateWidth  = 25
	minPlateHeight = 15

	// Plates sit in the bottom 70% of the frame.
	maxVerticalCenterRatio = 0.30

	// Accepted boxes are padded so tight contours do not clip digit edges.
	regionPadding = 12

	// maxRegions bounds the recognition workload per photo.
	maxRegions = 10
)

// Canny thresholds and morphology shape for the proposal mask. The 5x3
// closing kernel favors the horizontal gaps between digits on a plate.
const (
	cannyLowThreshold  = 40.0
	cannyHighThreshold = 120.0

	adaptiveBlockSize = 11
	adaptiveConstant  = 2.0

	closeKernelWidth  = 5
	closeKernelHeight = 3
)

// ProposeRegions emits ranked candidate rectangles likely to contain a bib
// plate.
//
// The proposal mask combines an adaptive mean threshold (block size 11,
// constant 2) with a Canny-style edge map (thresholds 40/120) via bitwise
// OR, closes gaps with a 5x3 rectangular kernel, dilates once, and extracts
// external contours. Each contour's bounding rectangle is filtered by area
// fraction, aspect ratio, minimum size, and vertical position, then padded
// by a fixed margin clamped to the image.
//
// Returns at most 10 regions sorted by priority descending, ties broken by
// area descending. This is a heuristic stage: false negatives are expected
// and compensated by whole-image cloud detection and the full-image OCR
// fallback downstream.
func ProposeRegions(gray *image.Gray) []Region {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	mask := adaptiveThreshold(gray, adaptiveBlockSize, adaptiveConstant)
	edges := cannyMask(gray, cannyLowThreshold, cannyHighThreshold)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			mask[y][x] = mask[y][x] || edges[y][x]
		}
	}

	mask = dilate(mask, width, height, closeKernelWidth, closeKernelHeight)
	mask = erode(mask, width, height, closeKernelWidth, closeKernelHeight)
	mask = dilate(mask, width, height, 3, 3)

	contours := findContours(mask, width, height)

	imageArea := float64(width * height)
	regions := make([]Region, 0, len(contours))
	for _, contour := range contours {
		box, ok := contourBox(contour, width, height, imageArea)
		if !ok {
			continue
		}
		priority := regionPriority(box, width, height, imageArea)
		regions = append(regions, Region{
			Bounds:   padBounds(box, regionPadding, width, height),
			Priority: priority,
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Priority != regions[j].Priority {
			return regions[i].Priority > regions[j].Priority
		}
		return regions[i].Bounds.Area() > regions[j].Bounds.Area()
	})

	if len(regions) > maxRegions {
		regions = regions[:maxRegions]
	}
	return regions
}

// contourBox computes the bounding rectangle of a contour and applies the
// plate geometry gates. Returns false when the contour is rejected.
func contourBox(contour []Point, width, height int, imageArea float64) (Bounds, bool) {
	minX, minY := width, height
	maxX, maxY := 0, 0
	for _, p := range contour {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	box := Bounds{X1: minX, Y1: minY, X2: maxX + 1, Y2: maxY + 1}
	w := box.Width()
	h := box.Height()
	if w <= minPlateWidth || h <= minPlateHeight {
		return Bounds{}, false
	}

	areaFraction := float64(box.Area()) / imageArea
	if areaFraction < minAreaFraction || areaFraction > maxAreaFraction {
		return Bounds{}, false
	}

	aspect := float64(w) / float64(h)
	if aspect < minPlateAspect || aspect > maxPlateAspect {
		return Bounds{}, false
	}

	// Bib plates are mounted low; reject contours centered in the top 30%.
	centerRatio := (float64(box.Y1) + float64(h)/2) / float64(height)
	if centerRatio < maxVerticalCenterRatio {
		return Bounds{}, false
	}

	return box, true
}

// regionPriority scores a plate candidate by how well its position and
// shape match a torso-mounted bib. The score floors at 0.1 so surviving
// contours always rank above nothing.
func regionPriority(box Bounds, width, height int, imageArea float64) float64 {
	priority := 0.0

	centerY := (float64(box.Y1) + float64(box.Height())/2) / float64(height)
	if centerY >= 0.5 && centerY <= 0.85 {
		priority += 0.3
	}

	centerX := (float64(box.X1) + float64(box.Width())/2) / float64(width)
	if centerX >= 0.3 && centerX <= 0.7 {
		priority += 0.1
	}

	aspect := float64(box.Width()) / float64(box.Height())
	if aspect >= 2.0 && aspect <= 4.0 {
		priority += 0.2
	}
	if aspect > 4.5 {
		priority -= 0.1
	}

	areaRatio := float64(box.Area()) / imageArea
	if areaRatio >= 0.002 && areaRatio <= 0.03 {
		priority += 0.15
	}
	if areaRatio < 0.001 {
		priority -= 0.1
	}

	if priority < 0.1 {
		priority = 0.1
	}
	return priority
}

// padBounds grows a box by margin on every side, clamped to the image.
func padBounds(b Bounds, margin, width, height int) Bounds {
	out := Bounds{X1: b.X1 - margin, Y1: b.Y1 - margin, X2: b.X2 + margin, Y2: b.Y2 + margin}
	if out.X1 < 0 {
		out.X1 = 0
	}
	if out.Y1 < 0 {
		out.Y1 = 0
	}
	if out.X2 > width {
		out.X2 = width
	}
	if out.Y2 > height {
		out.Y2 = height
	}
	return out
}

// adaptiveThreshold marks pixels darker than their local block mean minus a
// constant. Uses an integral image so the cost is independent of block
// size. Dark digit strokes on a light plate come out true.
func adaptiveThreshold(gray *image.Gray, blockSize int, c float64) [][]bool {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	half := blockSize / 2

	// Integral image with a zero top row / left column.
	integral := make([][]float64, height+1)
	integral[0] = make([]float64, width+1)
	for y := 0; y < height; y++ {
		integral[y+1] = make([]float64, width+1)
		rowSum := 0.0
		for x := 0; x < width; x++ {
			rowSum += float64(gray.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y)
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}

	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		y1 := y - half
		y2 := y + half + 1
		if y1 < 0 {
			y1 = 0
		}
		if y2 > height {
			y2 = height
		}
		for x := 0; x < width; x++ {
			x1 := x - half
			x2 := x + half + 1
			if x1 < 0 {
				x1 = 0
			}
			if x2 > width {
				x2 = width
			}

			sum := integral[y2][x2] - integral[y1][x2] - integral[y2][x1] + integral[y1][x1]
			mean := sum / float64((y2-y1)*(x2-x1))
			if float64(gray.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y) < mean-c {
				mask[y][x] = true
			}
		}
	}
	return mask
}

// cannyMask performs Canny-style edge detection on a grayscale image and
// returns a binary edge mask.
//
// The stages are the classic chain: 5x5 Gaussian smoothing, Sobel
// gradients, non-maximum suppression along the gradient direction, and
// hysteresis thresholding where weak edges survive only next to strong
// ones. Thresholds are on the 0-255 gradient magnitude scale.
func cannyMask(gray *image.Gray, low, high float64) [][]bool {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	blurred := gaussian5x5(gray)

	sobelX := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

	magnitude := make([][]float64, height)
	direction := make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := blurred[clampInt(y+ky, 0, height-1)][clampInt(x+kx, 0, width-1)]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression thins edges to single-pixel ridges.
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := direction[y][x]
			mag := magnitude[y][x]

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			} else {
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	// Hysteresis: strong edges always kept, weak edges kept only when an
	// 8-neighbor is strong.
	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			val := suppressed[y][x]
			if val >= high {
				mask[y][x] = true
				continue
			}
			if val < low {
				continue
			}
			for ky := -1; ky <= 1 && !mask[y][x]; ky++ {
				for kx := -1; kx <= 1 && !mask[y][x]; kx++ {
					py := clampInt(y+ky, 0, height-1)
					px := clampInt(x+kx, 0, width-1)
					if suppressed[py][px] >= high {
						mask[y][x] = true
					}
				}
			}
		}
	}
	return mask
}

// gaussian5x5 applies a standard 5x5 Gaussian kernel (sigma ~1.4) with
// replicated borders, returning a float buffer on the 0-255 scale.
func gaussian5x5(gray *image.Gray) [][]float64 {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	out := make([][]float64, height)
	for y := 0; y < height; y++ {
		out[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					py := clampInt(y+ky, 0, height-1)
					px := clampInt(x+kx, 0, width-1)
					sum += float64(gray.GrayAt(px+bounds.Min.X, py+bounds.Min.Y).Y) * kernel[ky+2][kx+2]
				}
			}
			out[y][x] = sum / kernelSum
		}
	}
	return out
}

// dilate grows mask regions with a kw x kh rectangular structuring element.
func dilate(mask [][]bool, width, height, kw, kh int) [][]bool {
	hw := kw / 2
	hh := kh / 2
	out := make([][]bool, height)
	for y := 0; y < height; y++ {
		out[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			for ky := -hh; ky <= hh && !out[y][x]; ky++ {
				for kx := -hw; kx <= hw && !out[y][x]; kx++ {
					py := y + ky
					px := x + kx
					if py >= 0 && py < height && px >= 0 && px < width && mask[py][px] {
						out[y][x] = true
					}
				}
			}
		}
	}
	return out
}

// erode shrinks mask regions with a kw x kh rectangular structuring
// element. Pixels outside the image count as background.
func erode(mask [][]bool, width, height, kw, kh int) [][]bool {
	hw := kw / 2
	hh := kh / 2
	out := make([][]bool, height)
	for y := 0; y < height; y++ {
		out[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			keep := true
			for ky := -hh; ky <= hh && keep; ky++ {
				for kx := -hw; kx <= hw && keep; kx++ {
					py := y + ky
					px := x + kx
					if py < 0 || py >= height || px < 0 || px >= width || !mask[py][px] {
						keep = false
					}
				}
			}
			out[y][x] = keep
		}
	}
	return out
}

// findContours groups connected mask pixels into contours using flood-fill.
// Connectivity is 8-connected; components smaller than 10 pixels are
// discarded as noise.
func findContours(mask [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(mask, visited, x, y, width, height, &contour)
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow on
// large components. Uses 8-connectivity (includes diagonal neighbors).
func floodFill(mask, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// clampInt constrains an integer value to the range [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
