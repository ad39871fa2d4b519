package imaging

import (
	"image"
	"math"
	"sort"
)

// Perspective correction parameters. The contour epsilon is the polygon
// approximation tolerance as a fraction of the hull perimeter; 2% matches
// the usual approxPolyDP setting for plate-like quadrilaterals.
const (
	perspectiveEdgeThreshold = 30.0
	perspectiveEpsilonRatio  = 0.02
	minWarpSide              = 10
)

type fpoint struct {
	X, Y float64
}

// CorrectPerspective warps a plate crop to a fronto-parallel rectangle when
// a quadrilateral outline can be found inside it.
//
// The crop's edge map is computed, the largest connected edge component is
// reduced to its convex hull, and the hull is approximated to a polygon. If
// exactly four vertices survive, the corners are ordered (top-left,
// top-right, bottom-right, bottom-left), the destination rectangle is sized
// from the corresponding side lengths, and the crop is warped through a
// 4-point homography with bilinear sampling.
//
// This is best-effort, not guaranteed: when no quadrilateral is found, or
// the quad is degenerate, the crop is returned unchanged.
func CorrectPerspective(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minWarpSide || h < minWarpSide {
		return g
	}

	contour := largestEdgeComponent(g, perspectiveEdgeThreshold)
	if len(contour) < 4 {
		return g
	}

	hull := convexHull(contour)
	if len(hull) < 4 {
		return g
	}

	eps := perspectiveEpsilonRatio * polygonPerimeter(hull)
	approx := approxPolygonClosed(hull, eps)
	if len(approx) != 4 {
		return g
	}

	tl, tr, br, bl := orderCorners(approx)

	dstW := int(math.Max(distance(tl, tr), distance(bl, br)) + 0.5)
	dstH := int(math.Max(distance(tl, bl), distance(tr, br)) + 0.5)
	if dstW < minWarpSide || dstH < minWarpSide {
		return g
	}

	m, ok := homography(
		[4]fpoint{{0, 0}, {float64(dstW - 1), 0}, {float64(dstW - 1), float64(dstH - 1)}, {0, float64(dstH - 1)}},
		[4]fpoint{tl, tr, br, bl},
	)
	if !ok {
		return g
	}

	return warp(g, m, dstW, dstH)
}

// largestEdgeComponent returns the pixel set of the biggest 8-connected
// component of the crop's gradient edge map.
func largestEdgeComponent(g *image.Gray, threshold float64) []fpoint {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	edges := make([][]bool, h)
	for y := 0; y < h; y++ {
		edges[y] = make([]bool, w)
		for x := 1; x < w-1; x++ {
			if y == 0 || y == h-1 {
				continue
			}
			c := grayAt(g, x+b.Min.X, y+b.Min.Y)
			dx := math.Abs(c - grayAt(g, x+1+b.Min.X, y+b.Min.Y))
			dy := math.Abs(c - grayAt(g, x+b.Min.X, y+1+b.Min.Y))
			if dx > threshold || dy > threshold {
				edges[y][x] = true
			}
		}
	}

	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var best []fpoint
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !edges[y][x] || visited[y][x] {
				continue
			}
			component := floodComponent(edges, visited, x, y, w, h)
			if len(component) > len(best) {
				best = component
			}
		}
	}
	return best
}

// floodComponent collects an 8-connected edge component with an explicit
// stack (recursion would overflow on long plate outlines).
func floodComponent(edges, visited [][]bool, startX, startY, w, h int) []fpoint {
	component := make([]fpoint, 0, 64)
	stack := [][2]int{{startX, startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p[0], p[1]
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		if visited[y][x] || !edges[y][x] {
			continue
		}
		visited[y][x] = true
		component = append(component, fpoint{float64(x), float64(y)})
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, [2]int{x + dx, y + dy})
			}
		}
	}
	return component
}

// convexHull computes the convex hull with Andrew's monotone chain,
// returning vertices in counter-clockwise order.
func convexHull(points []fpoint) []fpoint {
	if len(points) < 3 {
		return points
	}

	pts := make([]fpoint, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b fpoint) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower, upper []fpoint
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// approxPolygonClosed simplifies a closed polygon with Douglas-Peucker.
// The polygon is split at its two most distant vertices and each open chain
// is simplified independently.
func approxPolygonClosed(poly []fpoint, eps float64) []fpoint {
	n := len(poly)
	if n < 4 {
		return poly
	}

	// Find the most distant vertex pair to anchor the two chains.
	ai, bi := 0, 1
	maxDist := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := distance(poly[i], poly[j]); d > maxDist {
				maxDist = d
				ai, bi = i, j
			}
		}
	}

	chain1 := append([]fpoint{}, poly[ai:bi+1]...)
	chain2 := append(append([]fpoint{}, poly[bi:]...), poly[:ai+1]...)

	s1 := douglasPeucker(chain1, eps)
	s2 := douglasPeucker(chain2, eps)

	// Chain endpoints are shared; drop the duplicates when joining.
	out := append([]fpoint{}, s1...)
	if len(s2) > 2 {
		out = append(out, s2[1:len(s2)-1]...)
	}
	return out
}

// douglasPeucker simplifies an open polyline to within eps of the original.
func douglasPeucker(points []fpoint, eps float64) []fpoint {
	if len(points) < 3 {
		return points
	}

	maxDist := 0.0
	index := 0
	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], points[0], points[len(points)-1])
		if d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= eps {
		return []fpoint{points[0], points[len(points)-1]}
	}

	left := douglasPeucker(points[:index+1], eps)
	right := douglasPeucker(points[index:], eps)
	return append(left[:len(left)-1], right...)
}

func perpendicularDistance(p, a, b fpoint) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return distance(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / norm
}

func distance(a, b fpoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func polygonPerimeter(poly []fpoint) float64 {
	total := 0.0
	for i := range poly {
		total += distance(poly[i], poly[(i+1)%len(poly)])
	}
	return total
}

// orderCorners sorts four quad vertices into top-left, top-right,
// bottom-right, bottom-left using a y-then-x sort: the two topmost points
// split left/right by x, and likewise for the bottom pair.
func orderCorners(quad []fpoint) (tl, tr, br, bl fpoint) {
	pts := make([]fpoint, 4)
	copy(pts, quad)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Y != pts[j].Y {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})

	top := pts[:2]
	bottom := pts[2:]
	if top[0].X <= top[1].X {
		tl, tr = top[0], top[1]
	} else {
		tl, tr = top[1], top[0]
	}
	if bottom[0].X <= bottom[1].X {
		bl, br = bottom[0], bottom[1]
	} else {
		bl, br = bottom[1], bottom[0]
	}
	return tl, tr, br, bl
}

// homography solves the 8-unknown projective transform mapping each src
// corner to the corresponding dst corner. Returns false for degenerate
// (collinear) inputs.
func homography(src, dst [4]fpoint) ([9]float64, bool) {
	// Build the standard 8x8 system A*h = b for h = (h0..h7), h8 = 1.
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		a[2*i] = [9]float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy, dx}
		a[2*i+1] = [9]float64{0, 0, 0, sx, sy, 1, -dy * sx, -dy * sy, dy}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-10 {
			return [9]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			factor := a[row][col] / a[col][col]
			for k := col; k < 9; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	var m [9]float64
	for i := 0; i < 8; i++ {
		m[i] = a[i][8] / a[i][i]
	}
	m[8] = 1
	return m, true
}

// warp renders a dstW x dstH image by mapping each destination pixel
// through the homography and bilinearly sampling the source.
func warp(g *image.Gray, m [9]float64, dstW, dstH int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			fx, fy := float64(x), float64(y)
			denom := m[6]*fx + m[7]*fy + m[8]
			if math.Abs(denom) < 1e-10 {
				continue
			}
			sx := (m[0]*fx + m[1]*fy + m[2]) / denom
			sy := (m[3]*fx + m[4]*fy + m[5]) / denom
			out.SetGray(x, y, grayColor(bilinearSample(g, sx+float64(b.Min.X), sy+float64(b.Min.Y))))
		}
	}
	return out
}

// bilinearSample reads a sub-pixel grayscale value with clamped borders.
func bilinearSample(g *image.Gray, x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := grayAt(g, x0, y0)
	v10 := grayAt(g, x0+1, y0)
	v01 := grayAt(g, x0, y0+1)
	v11 := grayAt(g, x0+1, y0+1)

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}
