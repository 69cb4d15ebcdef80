package depix

import (
	"fmt"
	"image/color"
	"log"

	"github.com/golang/freetype/truetype"
)

// PictureParameters describes the picture side of an attack: the string
// language, the font, and the pixelization geometry of the image under
// reconstruction. Block size, font, font size, and the approximate
// vertical grid alignment must be known to the caller; the system does
// not infer them.
type PictureParameters struct {
	// Pattern is the regular expression (bounded quantifiers only)
	// describing the candidate strings.
	Pattern string

	Font     *truetype.Font
	FontSize float64

	FontColor       color.RGBA
	BackgroundColor color.RGBA

	// BlockSize is B, the side length of a mosaic tile in pixels.
	BlockSize int

	// RandomizePixelizationOriginX varies the horizontal grid offset per
	// training image, making the model robust to an unknown x alignment.
	RandomizePixelizationOriginX bool

	// WindowSize is S, the number of tile-columns per observation window.
	WindowSize int

	// OffsetY shifts the pixelization grid vertically relative to the
	// text baseline. Values outside [0, BlockSize) are reduced modulo
	// BlockSize inside the mosaic filter.
	OffsetY int
}

// TrainingParameters sizes the synthesized corpus and the observation
// alphabet.
type TrainingParameters struct {
	NImgTrain int
	NImgTest  int
	NClusters int
}

// LoggingParameters carries the two independently configurable loggers:
// ModuleLogger for general diagnostics and warnings, TimeLogger for
// per-stage timing records. A nil logger falls back to the package
// default.
type LoggingParameters struct {
	ModuleLogger *log.Logger
	TimeLogger   *log.Logger
}

// PictureParametersGridSearch is PictureParameters with the two
// picture-side hyperparameters replaced by candidate lists for the
// grid-search driver.
type PictureParametersGridSearch struct {
	Pattern string

	Font     *truetype.Font
	FontSize float64

	FontColor       color.RGBA
	BackgroundColor color.RGBA

	BlockSize                    int
	RandomizePixelizationOriginX bool

	WindowSizes []int
	OffsetsY    []int
}

// TrainingParametersGridSearch is TrainingParameters with the two
// training-side hyperparameters replaced by candidate lists.
type TrainingParametersGridSearch struct {
	NImgTest  int
	NImgTrain []int
	NClusters []int
}

// at builds the concrete PictureParameters for one grid point.
func (p PictureParametersGridSearch) at(windowSize, offsetY int) PictureParameters {
	return PictureParameters{
		Pattern:                      p.Pattern,
		Font:                         p.Font,
		FontSize:                     p.FontSize,
		FontColor:                    p.FontColor,
		BackgroundColor:              p.BackgroundColor,
		BlockSize:                    p.BlockSize,
		RandomizePixelizationOriginX: p.RandomizePixelizationOriginX,
		WindowSize:                   windowSize,
		OffsetY:                      offsetY,
	}
}

func (p PictureParameters) validate() error {
	if p.Pattern == "" {
		return fmt.Errorf("depix: PictureParameters.Pattern is required")
	}
	if p.Font == nil {
		return fmt.Errorf("depix: PictureParameters.Font is required")
	}
	if p.FontSize <= 0 {
		return fmt.Errorf("depix: PictureParameters.FontSize must be positive")
	}
	if p.BlockSize <= 0 {
		return fmt.Errorf("depix: PictureParameters.BlockSize must be positive")
	}
	if p.WindowSize < 1 {
		return fmt.Errorf("depix: PictureParameters.WindowSize must be >= 1")
	}
	return nil
}

func (t TrainingParameters) validate() error {
	if t.NImgTrain <= 0 {
		return fmt.Errorf("depix: TrainingParameters.NImgTrain must be positive")
	}
	if t.NImgTest <= 0 {
		return fmt.Errorf("depix: TrainingParameters.NImgTest must be positive")
	}
	if t.NClusters <= 0 {
		return fmt.Errorf("depix: TrainingParameters.NClusters must be positive")
	}
	return nil
}

// withColorDefaults substitutes the conventional black-on-white pair
// for unset colors (a zero color.RGBA has alpha 0, which no caller
// wants as an actual foreground or background).
func (p PictureParameters) withColorDefaults() PictureParameters {
	if p.FontColor.A == 0 {
		p.FontColor = color.RGBA{A: 255}
	}
	if p.BackgroundColor.A == 0 {
		p.BackgroundColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return p
}
