package depix

import (
	"fmt"
	"image"
	"log"

	"github.com/golang/freetype/truetype"
	xfont "golang.org/x/image/font"

	"github.com/JonasSchatz/depixhmm/hmm"
	"github.com/JonasSchatz/depixhmm/imageutil"
	"github.com/JonasSchatz/depixhmm/mosaic"
	"github.com/JonasSchatz/depixhmm/quantize"
	"github.com/JonasSchatz/depixhmm/window"
)

// Model is a trained depixelization model: the HMM, the quantizer that
// produced its observation alphabet, and the picture geometry it was
// trained for. A Model is immutable and safe for concurrent decoding.
type Model struct {
	HMM       *hmm.Model
	Quantizer *quantize.Quantizer

	picture    PictureParameters
	widths     map[rune]int
	featureLen int
	moduleLog  *log.Logger
}

// stateCharWidths measures the advance width of every character that
// appears in any state, so reconstruction can place characters without
// re-opening a font face per lookup.
func stateCharWidths(picture PictureParameters, states [][]rune) (map[rune]int, error) {
	face := truetype.NewFace(picture.Font, &truetype.Options{
		Size:    picture.FontSize,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	defer face.Close()

	widths := make(map[rune]int)
	for _, state := range states {
		for _, r := range state {
			if _, ok := widths[r]; ok {
				continue
			}
			widths[r] = xfont.MeasureString(face, string(r)).Ceil()
		}
	}
	if len(widths) == 0 {
		return nil, fmt.Errorf("depix: trained states contain no characters")
	}
	return widths, nil
}

func (m *Model) charWidth(r rune) int {
	return m.widths[r]
}

// DecodeWindows assigns each window's feature vector to a cluster,
// Viterbi-decodes the cluster sequence in the log domain, and merges
// the decoded n-gram states into a string.
func (m *Model) DecodeWindows(windows []window.Window) (string, error) {
	if len(windows) == 0 {
		return "", nil
	}

	vectors := make([][]float64, len(windows))
	for i, w := range windows {
		if len(w.Values) != m.featureLen {
			return "", fmt.Errorf("depix: window %d has %d features, model was trained with %d", i, len(w.Values), m.featureLen)
		}
		vectors[i] = w.Values
	}

	sequence := m.Quantizer.Assign(vectors)
	path, err := m.HMM.LogViterbi(sequence)
	if err != nil {
		return "", err
	}
	return hmm.Reconstruct(path, m.picture.BlockSize, m.charWidth), nil
}

// Decode reconstructs the hidden string from a user-supplied mosaicked
// image. The image is expected to be cropped to the mosaicked region,
// with the pixelization grid anchored at its top-left corner. An image
// too narrow to hold even one window decodes to the empty string; this
// is logged, not an error.
func (m *Model) Decode(img image.Image) (string, error) {
	rgba := imageutil.ToRGBA(img)
	bounds := rgba.Bounds()

	B := m.picture.BlockSize
	nx := bounds.Dx() / B
	ny := bounds.Dy() / B

	if nx < m.picture.WindowSize {
		m.moduleLog.Printf("image yields %d tile columns, fewer than window size %d; nothing to decode", nx, m.picture.WindowSize)
		return "", nil
	}
	if want := m.featureLen / (3 * m.picture.WindowSize); ny != want {
		return "", fmt.Errorf("depix: image yields %d tile rows, model was trained with %d; check block size and vertical crop", ny, want)
	}

	pix := &mosaic.Image{
		Pixels:    rgba,
		BlockSize: B,
		Nx:        nx,
		Ny:        ny,
		OriginX:   bounds.Min.X,
		OriginY:   bounds.Min.Y,
	}
	return m.DecodeWindows(window.ExtractFeatures(pix, m.picture.WindowSize))
}
