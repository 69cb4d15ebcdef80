// Package render synthesizes a single-line text image and reports the
// pixel bounding box of every character in it. The box algorithm
// mixes a character's isolated ink extent with the cumulative advance
// of the text rendered so far, because font-rendering libraries report
// cumulative horizontal advance but only per-glyph vertical extent.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// Options controls how a string is rendered to a canvas. An Options
// value is immutable for the lifetime of the OriginalImage it produces.
type Options struct {
	// PaddingX, PaddingY reserve blank margin around the text so later
	// pixelization can extend past the text's own bounding box.
	PaddingX, PaddingY int
	Font               *truetype.Font
	FontSize           float64
	FontColor          color.RGBA
	BackgroundColor    color.RGBA
}

// DefaultOptions returns black-on-white Options with no padding; the
// caller is expected to set Font, FontSize, and padding explicitly.
func DefaultOptions() Options {
	return Options{
		FontColor:       color.RGBA{A: 255},
		BackgroundColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// CharacterBox is the pixel rectangle of one character's glyph within
// its Image, in image coordinates ([Left, Right] x [Top, Bottom]).
type CharacterBox struct {
	Char                     rune
	Left, Top, Right, Bottom int
}

// Image is a rendered string: its pixel buffer, the creation options,
// and one CharacterBox per character of Text, in text order. The
// rectangle of every box lies inside the image, and boxes are
// left-to-right non-decreasing in Left (kerning may make adjacent
// boxes overlap, so they are not guaranteed disjoint).
type Image struct {
	Text    string
	Pixels  *image.RGBA
	Boxes   []CharacterBox
	Options Options

	// TextWidth, Ascent, and Descent are the font metrics used to size
	// the canvas, exposed so downstream stages (mosaic, window) don't
	// need to re-measure the font.
	TextWidth int
	Ascent    int
	Descent   int
}

// LoadFont reads a TrueType/OpenType font file from disk.
func LoadFont(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: reading font file: %w", err)
	}
	f, err := freetype.ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("render: parsing font file: %w", err)
	}
	return f, nil
}

// Render draws text onto a fresh canvas sized to fit it plus padding,
// and computes each character's bounding box.
func Render(text string, opts Options) (*Image, error) {
	if opts.Font == nil {
		return nil, fmt.Errorf("render: Options.Font is required")
	}
	if opts.FontSize <= 0 {
		return nil, fmt.Errorf("render: Options.FontSize must be positive")
	}

	face := truetype.NewFace(opts.Font, &truetype.Options{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	width := advanceWidth(face, text)
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	descent := m.Descent.Ceil()

	imgW := 2*opts.PaddingX + width
	imgH := 2*opts.PaddingY + ascent + descent
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("render: computed canvas size %dx%d is empty", imgW, imgH)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, imgW, imgH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.BackgroundColor), image.Point{}, draw.Src)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(opts.Font)
	ctx.SetFontSize(opts.FontSize)
	ctx.SetClip(canvas.Bounds())
	ctx.SetDst(canvas)
	ctx.SetSrc(image.NewUniform(opts.FontColor))
	ctx.SetHinting(font.HintingFull)

	pt := freetype.Pt(opts.PaddingX, opts.PaddingY+ascent)
	if _, err := ctx.DrawString(text, pt); err != nil {
		return nil, fmt.Errorf("render: drawing text: %w", err)
	}

	boxes := characterBoundingBoxes(face, text, opts)

	return &Image{
		Text:      text,
		Pixels:    canvas,
		Boxes:     boxes,
		Options:   opts,
		TextWidth: width,
		Ascent:    ascent,
		Descent:   descent,
	}, nil
}

// characterBoundingBoxes computes the pixel rectangle of every
// character of text, using the face that produced the rendering. The
// bottom edge takes the smaller of the character's isolated line
// extent and the prefix's line extent; both are measured from the top
// of the line box, so a glyph with no descender bottoms out at the
// baseline while the prefix's extent only grows as deeper descenders
// are seen. Subtracting the tight glyph ink height then gives tops
// that vary per glyph.
func characterBoundingBoxes(face font.Face, text string, opts Options) []CharacterBox {
	runes := []rune(text)
	boxes := make([]CharacterBox, 0, len(runes))

	for i, ch := range runes {
		prefix := string(runes[:i+1])

		rightAdvance := advanceWidth(face, prefix)
		b2 := lineExtent(face, prefix)
		isoW, isoH := glyphInkSize(face, ch)
		b1 := lineExtent(face, string(ch))

		bottom := b1
		if b2 < bottom {
			bottom = b2
		}
		bottom += opts.PaddingY
		right := rightAdvance + opts.PaddingX
		top := bottom - isoH
		left := right - isoW

		boxes = append(boxes, CharacterBox{
			Char: ch, Left: left, Top: top, Right: right, Bottom: bottom,
		})
	}
	return boxes
}

// advanceWidth measures the cumulative horizontal advance of text, the
// Go analogue of a font library's getsize width.
func advanceWidth(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}

// lineExtent is the distance from the top of the line box to the
// bottommost ink of text: the face's ascent plus however far the
// deepest descender reaches below the baseline. This is the Go
// analogue of a font library's getsize height, which measures from
// the line top rather than from the ink top. Ink that stays entirely
// above the baseline (quotes, apostrophes) yields an extent smaller
// than the ascent; text with no ink at all yields exactly the ascent.
func lineExtent(face font.Face, text string) int {
	ascent := face.Metrics().Ascent.Ceil()
	haveInk := false
	var bottom int
	for _, r := range text {
		bounds, _, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		// Max.Y is positive below the baseline, negative above it.
		if b := bounds.Max.Y.Ceil(); !haveInk || b > bottom {
			bottom, haveInk = b, true
		}
	}
	if !haveInk {
		return ascent
	}
	return ascent + bottom
}

// glyphInkSize is the tight bounding box of a single glyph's ink, the
// Go analogue of a font library's getmask size for an isolated
// character. A glyph with no ink (e.g. a space) reports (0, 0).
func glyphInkSize(face font.Face, r rune) (width, height int) {
	bounds, _, ok := face.GlyphBounds(r)
	if !ok {
		return 0, 0
	}
	return (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}
