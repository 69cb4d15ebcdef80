package window

import (
	"image"
	"image/color"
	"testing"

	"github.com/JonasSchatz/depixhmm/mosaic"
	"github.com/JonasSchatz/depixhmm/render"
)

func TestOverlapIsCommutativeAndNonNegative(t *testing.T) {
	cases := []struct {
		a, b [2]int
		want int
	}{
		{[2]int{0, 10}, [2]int{5, 15}, 5},
		{[2]int{0, 10}, [2]int{11, 20}, 0},
		{[2]int{0, 10}, [2]int{10, 20}, 0},
		{[2]int{-5, 5}, [2]int{-3, 3}, 6},
	}
	for _, c := range cases {
		if got := Overlap(c.a, c.b); got != c.want {
			t.Errorf("Overlap(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
		if got, rev := Overlap(c.a, c.b), Overlap(c.b, c.a); got != rev {
			t.Errorf("Overlap not commutative for %v, %v: %d != %d", c.a, c.b, got, rev)
		}
		if Overlap(c.a, c.b) < 0 {
			t.Errorf("Overlap(%v, %v) is negative", c.a, c.b)
		}
	}
}

// buildMosaic constructs a mosaic.Image with Nx*B x Ny*B uniformly
// colored tiles, each tile's color encoding its (i,j) index, so sampled
// feature vectors can be checked exactly.
func buildMosaic(nx, ny, blockSize, originX, originY int) *mosaic.Image {
	w := originX + nx*blockSize + blockSize
	h := originY + ny*blockSize + blockSize
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			c := color.RGBA{R: uint8(10 * i), G: uint8(10 * j), B: 7, A: 255}
			left := originX + i*blockSize
			top := originY + j*blockSize
			for dy := 0; dy < blockSize; dy++ {
				for dx := 0; dx < blockSize; dx++ {
					img.SetRGBA(left+dx, top+dy, c)
				}
			}
		}
	}
	return &mosaic.Image{
		Pixels:    img,
		BlockSize: blockSize,
		Nx:        nx,
		Ny:        ny,
		OriginX:   originX,
		OriginY:   originY,
	}
}

func fakeRenderImage(boxes []render.CharacterBox) *render.Image {
	return &render.Image{Boxes: boxes}
}

func TestExtractWindowCountAndFeatureLength(t *testing.T) {
	const nx, ny, B = 6, 3, 10
	pix := buildMosaic(nx, ny, B, 5, 5)
	img := fakeRenderImage(nil)

	S := 2
	windows := Extract(img, pix, Options{WindowSize: S})

	wantCount := nx - S + 1
	if len(windows) != wantCount {
		t.Fatalf("got %d windows, want %d", len(windows), wantCount)
	}
	for i, w := range windows {
		if len(w.Values) != 3*S*ny {
			t.Errorf("window %d: feature length %d, want %d", i, len(w.Values), 3*S*ny)
		}
		if w.Index != i {
			t.Errorf("window %d: WindowIndex = %d, want %d", i, w.Index, i)
		}
		if w.Index < 0 || w.Index >= wantCount {
			t.Errorf("window %d: WindowIndex %d out of range [0, %d)", i, w.Index, wantCount)
		}
	}
}

func TestExtractSamplesTileColors(t *testing.T) {
	const nx, ny, B = 4, 2, 8
	pix := buildMosaic(nx, ny, B, 0, 0)
	img := fakeRenderImage(nil)

	windows := Extract(img, pix, Options{WindowSize: 2})
	// window 0 covers tile-columns 0,1; row-major over j=0,1 then i=0,1.
	w0 := windows[0]
	wantTile := func(i, j int) (r, g, b float64) {
		return float64(10 * i), float64(10 * j), 7
	}
	idx := 0
	for j := 0; j < ny; j++ {
		for i := 0; i < 2; i++ {
			r, g, b := wantTile(i, j)
			if w0.Values[idx] != r || w0.Values[idx+1] != g || w0.Values[idx+2] != b {
				t.Errorf("sample (i=%d,j=%d): got (%v,%v,%v), want (%v,%v,%v)",
					i, j, w0.Values[idx], w0.Values[idx+1], w0.Values[idx+2], r, g, b)
			}
			idx += 3
		}
	}
}

func TestExtractLabelsByOverlapThreshold(t *testing.T) {
	const nx, ny, B = 5, 1, 10
	pix := buildMosaic(nx, ny, B, 0, 0)

	// Glyph 'a' spans [2,12], glyph 'b' spans [25,30]; window 0 covers
	// pixel columns [0,19] (two tile-columns of width 10).
	img := fakeRenderImage([]render.CharacterBox{
		{Char: 'a', Left: 2, Right: 12, Top: 0, Bottom: 10},
		{Char: 'b', Left: 25, Right: 30, Top: 0, Bottom: 10},
	})

	windows := Extract(img, pix, Options{WindowSize: 2})
	if string(windows[0].Characters) != "a" {
		t.Errorf("window 0 label = %q, want %q", string(windows[0].Characters), "a")
	}
}

func TestExtractRejectsWindowSizeLargerThanNx(t *testing.T) {
	pix := buildMosaic(3, 2, 10, 0, 0)
	img := fakeRenderImage(nil)
	if windows := Extract(img, pix, Options{WindowSize: 4}); windows != nil {
		t.Errorf("expected nil windows for WindowSize > Nx, got %d", len(windows))
	}
}
