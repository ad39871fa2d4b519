package imaging

import (
	"image"
	"math"
	"math/cmplx"
)

const (
	// motionKernelLength is the assumed horizontal motion extent in pixels.
	// The real motion direction is unknown and unestimated; this is a
	// heuristic correction tuned for runners crossing the frame.
	motionKernelLength = 9

	// wienerEpsilon regularizes the Wiener division so near-zero kernel
	// frequencies do not explode into ringing.
	wienerEpsilon = 0.01
)

// LaplacianVariance measures image sharpness as the variance of the
// response to a 3x3 Laplacian kernel. Sharp, high-frequency content (crisp
// digit edges) produces high variance; motion blur flattens it.
func LaplacianVariance(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	n := 0
	sum := 0.0
	sumSq := 0.0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := grayAt(g, x+b.Min.X, y+b.Min.Y)
			up := grayAt(g, x+b.Min.X, y-1+b.Min.Y)
			down := grayAt(g, x+b.Min.X, y+1+b.Min.Y)
			left := grayAt(g, x-1+b.Min.X, y+b.Min.Y)
			right := grayAt(g, x+1+b.Min.X, y+b.Min.Y)

			lap := up + down + left + right - 4*c
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// WienerDeblur applies an approximate Wiener deconvolution assuming a
// horizontal box motion kernel of the given length.
//
// The image is zero-padded to power-of-two dimensions, transformed with a
// 2D FFT, divided by the kernel spectrum with regularization eps
// (F * conj(K) / (|K|^2 + eps)), and transformed back. Output values are
// clamped to 0-255 and cropped to the original size.
//
// This is a best-effort restoration: when the actual blur does not match
// the assumed kernel the result can be no sharper than the input, which is
// why the caller gates it on the Laplacian variance.
func WienerDeblur(g *image.Gray, kernelLength int, eps float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || kernelLength < 2 {
		return g
	}

	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)

	// Image spectrum.
	f := make([][]complex128, ph)
	for y := range f {
		f[y] = make([]complex128, pw)
		if y < h {
			for x := 0; x < w; x++ {
				f[y][x] = complex(grayAt(g, x+b.Min.X, y+b.Min.Y)/255.0, 0)
			}
		}
	}
	fft2(f, false)

	// Kernel spectrum: a horizontal run of 1/len taps centered at the
	// origin with wraparound, so the deconvolution is phase-neutral.
	k := make([][]complex128, ph)
	for y := range k {
		k[y] = make([]complex128, pw)
	}
	tap := complex(1.0/float64(kernelLength), 0)
	for i := 0; i < kernelLength; i++ {
		x := (i - kernelLength/2 + pw) % pw
		k[0][x] = tap
	}
	fft2(k, false)

	// Regularized inverse filtering.
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			kv := k[y][x]
			denom := real(kv)*real(kv) + imag(kv)*imag(kv) + eps
			f[y][x] = f[y][x] * cmplx.Conj(kv) / complex(denom, 0)
		}
	}
	fft2(f, true)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetGray(x, y, grayColor(real(f[y][x])*255.0))
		}
	}
	return out
}

// fft2 performs an in-place 2D FFT (rows then columns). When inverse is
// true the inverse transform is applied, including 1/N normalization.
func fft2(data [][]complex128, inverse bool) {
	h := len(data)
	if h == 0 {
		return
	}
	w := len(data[0])

	for y := 0; y < h; y++ {
		fft1(data[y], inverse)
	}

	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y][x]
		}
		fft1(col, inverse)
		for y := 0; y < h; y++ {
			data[y][x] = col[y]
		}
	}
}

// fft1 is an iterative radix-2 Cooley-Tukey FFT. len(data) must be a power
// of two.
func fft1(data []complex128, inverse bool) {
	n := len(data)
	if n < 2 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			data[i], data[j] = data[j], data[i]
		}
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for length := 2; length <= n; length <<= 1 {
		angle := sign * 2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, angle)
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			half := length / 2
			for i := 0; i < half; i++ {
				u := data[start+i]
				v := data[start+i+half] * w
				data[start+i] = u + v
				data[start+i+half] = u - v
				w *= wl
			}
		}
	}

	if inverse {
		inv := complex(1.0/float64(n), 0)
		for i := range data {
			data[i] *= inv
		}
	}
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
