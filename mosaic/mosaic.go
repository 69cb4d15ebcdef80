// Package mosaic replaces a rectangular, baseline-aligned strip of a
// rendered text image with a block-mosaic: every B×B tile becomes the
// mean color of the pixels it covers.
package mosaic

import (
	"fmt"
	"image"
	"image/color"

	"github.com/JonasSchatz/depixhmm/render"
)

// Options configures a single pixelization pass. OffsetX must satisfy
// 0 <= OffsetX < BlockSize once reduced; OffsetY is an unbounded signed
// offset of the grid relative to the text baseline and is reduced
// modulo BlockSize internally, so callers supplying a value outside
// [0, BlockSize) only observe the modular residue.
type Options struct {
	BlockSize int
	OffsetX   int
	OffsetY   int
}

// Image is a mosaicked image: its pixel buffer, the block size, the
// tile count (Nx, Ny), and the grid origin (OriginX, OriginY) in image
// coordinates. The mosaicked region is exactly
// [OriginX, OriginX+Nx*BlockSize) x [OriginY, OriginY+Ny*BlockSize),
// and every tile within it is a single uniform color.
type Image struct {
	Pixels    *image.RGBA
	BlockSize int
	Nx, Ny    int
	OriginX   int
	OriginY   int
}

// floorMod reduces a into [0, m) for any sign of a (Go's `%` keeps the
// sign of a, which is wrong for this purpose).
func floorMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// ceilDiv returns ceil(a/b) for b > 0 and any sign of a (Go's `/`
// truncates toward zero, which already equals ceil for negative a but
// needs a +1 correction for positive a with a remainder).
func ceilDiv(a, b int) int {
	q, r := a/b, a%b
	if r == 0 || a < 0 {
		return q
	}
	return q + 1
}

// Pixelize mosaics the baseline-aligned text strip of img according to
// opts, returning a new Image (the source is left untouched).
func Pixelize(img *render.Image, opts Options) (*Image, error) {
	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("mosaic: BlockSize must be positive")
	}
	ox := floorMod(opts.OffsetX, opts.BlockSize)
	oy := floorMod(opts.OffsetY, opts.BlockSize)

	textWidth := img.TextWidth
	ascent, descent := img.Ascent, img.Descent
	B := opts.BlockSize

	tyAbove := ceilDiv(ascent-oy, B)
	tyBelow := ceilDiv(descent+oy, B)
	nx := ceilDiv(textWidth+ox, B)
	ny := tyAbove + tyBelow

	originX := img.Options.PaddingX - ox
	originY := img.Options.PaddingY + ascent - (oy + tyAbove*B)

	bounds := img.Pixels.Bounds()
	out := image.NewRGBA(bounds)
	copy(out.Pix, img.Pixels.Pix)

	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			left := originX + i*B
			top := originY + j*B
			right := left + B - 1
			bottom := top + B - 1
			mean := averageColor(img.Pixels, left, top, right, bottom)
			fillRect(out, left, top, right, bottom, mean)
		}
	}

	return &Image{
		Pixels:    out,
		BlockSize: B,
		Nx:        nx,
		Ny:        ny,
		OriginX:   originX,
		OriginY:   originY,
	}, nil
}

// averageColor computes the integer per-channel mean over the closed
// rectangle [left, right] x [top, bottom] of img, clipping reads to the
// image bounds.
func averageColor(img *image.RGBA, left, top, right, bottom int) color.RGBA {
	bounds := img.Bounds()
	var sumR, sumG, sumB, sumA, n int64
	for y := top; y <= bottom; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := left; x <= right; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			c := img.RGBAAt(x, y)
			sumR += int64(c.R)
			sumG += int64(c.G)
			sumB += int64(c.B)
			sumA += int64(c.A)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(roundDiv(sumR, n)),
		G: uint8(roundDiv(sumG, n)),
		B: uint8(roundDiv(sumB, n)),
		A: uint8(roundDiv(sumA, n)),
	}
}

func roundDiv(sum, n int64) int64 {
	return (sum + n/2) / n
}

// fillRect paints the closed rectangle [left, right] x [top, bottom]
// of img with c, clipping writes to the image bounds.
func fillRect(img *image.RGBA, left, top, right, bottom int, c color.RGBA) {
	bounds := img.Bounds()
	for y := top; y <= bottom; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := left; x <= right; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}
