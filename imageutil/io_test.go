package imageutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadImageDecodesPNGPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(40 * x), G: uint8(80 * y), B: 7, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "mosaic.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		t.Fatalf("encoding test PNG: %v", err)
	}
	f.Close()

	loaded, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if !loaded.Bounds().Eq(img.Bounds()) {
		t.Fatalf("bounds = %v, want %v", loaded.Bounds(), img.Bounds())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if got, want := loaded.RGBAAt(x, y), img.RGBAAt(x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestLoadImageReportsMissingFile(t *testing.T) {
	if _, err := LoadImage(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestToRGBAReturnsSameBufferForRGBAInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if ToRGBA(img) != img {
		t.Error("ToRGBA copied an image that was already RGBA")
	}
}

func TestToRGBAConvertsOtherFormats(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})

	rgba := ToRGBA(gray)
	if got := rgba.RGBAAt(1, 1); got.R != 200 || got.G != 200 || got.B != 200 {
		t.Errorf("converted pixel = %v, want gray 200", got)
	}
}
