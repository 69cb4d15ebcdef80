// Package window slides a fixed-width window across a mosaicked image,
// extracting a flat color feature vector and a character-tuple label
// for every window position.
package window

import (
	"github.com/JonasSchatz/depixhmm/mosaic"
	"github.com/JonasSchatz/depixhmm/render"
)

// Options configures window extraction.
type Options struct {
	// WindowSize is S, the number of consecutive tile-columns a window
	// spans. Must be >= 1 and <= the image's tile-column count.
	WindowSize int
	// CharacterThreshold is the horizontal pixel overlap (in box/window
	// coordinates) a glyph's overlap with a window must exceed before it
	// is included in the window's label. Zero means "any positive overlap".
	CharacterThreshold int
}

// Window is one sliding-window position: its character-tuple label
// (Characters), its flat feature vector (Values, length 3*S*Ny), its
// 0-based position within the image (Index), and a cluster index
// (Cluster) assigned later by a quantizer. Cluster is -1 until assigned.
type Window struct {
	Characters []rune
	Values     []float64
	Index      int
	Cluster    int
}

// UnclusteredWindow is Extract's initial Cluster value for every
// window it produces, before a quantizer assigns one.
const UnclusteredWindow = -1

// Overlap returns the length of the intersection of closed intervals
// [a0,a1] and [b0,b1], or 0 if they are disjoint. It is symmetric in
// its two interval arguments.
func Overlap(a, b [2]int) int {
	lo := max(a[0], b[0])
	hi := min(a[1], b[1])
	if hi < lo {
		return 0
	}
	return hi - lo
}

// Extract slides a WindowSize-wide window across pix, the mosaicked
// counterpart of img, producing one Window per valid position. There
// are Nx-S+1 windows, indexed left to right starting at 0.
func Extract(img *render.Image, pix *mosaic.Image, opts Options) []Window {
	S := opts.WindowSize
	if S <= 0 || S > pix.Nx {
		return nil
	}

	windows := make([]Window, 0, pix.Nx-S+1)
	for w := 0; w <= pix.Nx-S; w++ {
		windowLeft := pix.OriginX + w*pix.BlockSize
		windowRight := windowLeft + S*pix.BlockSize - 1

		windows = append(windows, Window{
			Characters: labelFor(img, windowLeft, windowRight, opts.CharacterThreshold),
			Values:     sampleFeatures(pix, windowLeft, S),
			Index:      w,
			Cluster:    UnclusteredWindow,
		})
	}
	return windows
}

// ExtractFeatures is Extract without labels: it produces one Window per
// valid position with only the feature vector and index populated. It
// is the extraction path for a user-supplied mosaicked image, where no
// ground-truth bounding boxes exist.
func ExtractFeatures(pix *mosaic.Image, windowSize int) []Window {
	S := windowSize
	if S <= 0 || S > pix.Nx {
		return nil
	}

	windows := make([]Window, 0, pix.Nx-S+1)
	for w := 0; w <= pix.Nx-S; w++ {
		windowLeft := pix.OriginX + w*pix.BlockSize
		windows = append(windows, Window{
			Values:  sampleFeatures(pix, windowLeft, S),
			Index:   w,
			Cluster: UnclusteredWindow,
		})
	}
	return windows
}

// sampleFeatures reads one pixel per tile covered by the window at
// stride BlockSize, in row-major (top-to-bottom, left-to-right) image
// memory order, concatenating R, G, B per sample. Each mosaic tile is
// internally uniform, so sampling its origin pixel is exact regardless
// of where within the tile the sample falls.
func sampleFeatures(pix *mosaic.Image, windowLeft, S int) []float64 {
	B := pix.BlockSize
	features := make([]float64, 0, 3*S*pix.Ny)
	for j := 0; j < pix.Ny; j++ {
		y := pix.OriginY + j*B
		for i := 0; i < S; i++ {
			x := windowLeft + i*B
			c := pix.Pixels.RGBAAt(x, y)
			features = append(features, float64(c.R), float64(c.G), float64(c.B))
		}
	}
	return features
}

// labelFor returns the character tuple, in text order, of every glyph
// in img whose bounding box overlaps [windowLeft, windowRight] by more
// than threshold pixels.
func labelFor(img *render.Image, windowLeft, windowRight, threshold int) []rune {
	window := [2]int{windowLeft, windowRight}
	var label []rune
	for _, box := range img.Boxes {
		box2 := [2]int{box.Left, box.Right}
		if Overlap(window, box2) > threshold {
			label = append(label, box.Char)
		}
	}
	return label
}
