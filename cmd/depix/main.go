package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/JonasSchatz/depixhmm/depix"
	"github.com/JonasSchatz/depixhmm/imageutil"
	"github.com/JonasSchatz/depixhmm/render"
)

// parseHexColor turns "rrggbb" (with or without a leading '#') into an
// opaque RGBA color.
func parseHexColor(s string) (color.RGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q, want rrggbb", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func main() {
	fontPath := flag.String("font", "",
		"Path to the TrueType/OpenType font file (required)")
	fontSize := flag.Float64("fontsize", 50,
		"Font size in points")
	pattern := flag.String("pattern", "",
		"Regular expression describing the candidate strings (required)")
	blockSize := flag.Int("blocksize", 6,
		"Side length of a mosaic tile in pixels")
	windowSize := flag.Int("windowsize", 5,
		"Number of tile-columns per observation window")
	offsetY := flag.Int("offsety", 0,
		"Vertical offset of the pixelization grid relative to the baseline")
	randomizeOriginX := flag.Bool("randomize-origin-x", false,
		"Vary the horizontal grid offset per training image")
	nClusters := flag.Int("clusters", 300,
		"Number of k-means clusters (the observation alphabet size)")
	nTrain := flag.Int("train", 1000,
		"Number of synthesized training images")
	nTest := flag.Int("test", 100,
		"Number of synthesized evaluation images")
	imagePath := flag.String("image", "",
		"Path to a mosaicked image to decode, cropped to the mosaic region")
	seed := flag.Int64("seed", 0,
		"Random seed; 0 leaves the pipeline non-deterministic")
	fgColor := flag.String("fgcolor", "000000",
		"Text color as rrggbb hex")
	bgColor := flag.String("bgcolor", "ffffff",
		"Background color as rrggbb hex")
	quiet := flag.Bool("quiet", false,
		"Suppress per-image diagnostics")
	timings := flag.Bool("timings", true,
		"Log per-stage timings")
	flag.Parse()

	if *fontPath == "" || *pattern == "" {
		flag.Usage()
		os.Exit(2)
	}

	font, err := render.LoadFont(*fontPath)
	if err != nil {
		log.Fatal(err)
	}
	fg, err := parseHexColor(*fgColor)
	if err != nil {
		log.Fatal(err)
	}
	bg, err := parseHexColor(*bgColor)
	if err != nil {
		log.Fatal(err)
	}

	logging := depix.LoggingParameters{}
	if *quiet {
		logging.ModuleLogger = log.New(io.Discard, "", 0)
	}
	if !*timings {
		logging.TimeLogger = log.New(io.Discard, "", 0)
	}

	opts := []depix.Option{depix.WithLogging(logging)}
	if *seed != 0 {
		opts = append(opts, depix.WithSeed(*seed))
	}

	pipeline, err := depix.NewPipeline(
		depix.PictureParameters{
			Pattern:                      *pattern,
			Font:                         font,
			FontSize:                     *fontSize,
			FontColor:                    fg,
			BackgroundColor:              bg,
			BlockSize:                    *blockSize,
			RandomizePixelizationOriginX: *randomizeOriginX,
			WindowSize:                   *windowSize,
			OffsetY:                      *offsetY,
		},
		depix.TrainingParameters{
			NImgTrain: *nTrain,
			NImgTest:  *nTest,
			NClusters: *nClusters,
		},
		opts...,
	)
	if err != nil {
		log.Fatal(err)
	}

	model, err := pipeline.Train()
	if err != nil {
		log.Fatal(err)
	}

	accuracy, meanSimilarity, err := pipeline.Evaluate(model)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("accuracy: %.3f\nmean similarity: %.3f\n", accuracy, meanSimilarity)

	if *imagePath == "" {
		return
	}
	img, err := imageutil.LoadImage(*imagePath)
	if err != nil {
		log.Fatal(err)
	}
	decoded, err := model.Decode(img)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("decoded: %s\n", decoded)
}
