package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/JonasSchatz/depixhmm/depix"
	"github.com/JonasSchatz/depixhmm/imageutil"
	"github.com/JonasSchatz/depixhmm/render"
)

// parseIntList parses a comma-separated list of integers, e.g. "2,3,5".
func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid integer list %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
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
	windowSizes := flag.String("windowsizes", "5",
		"Comma-separated window sizes to search")
	offsetsY := flag.String("offsets-y", "0",
		"Comma-separated vertical grid offsets to search")
	nClusters := flag.String("clusters", "300",
		"Comma-separated cluster counts to search")
	nTrain := flag.String("train", "1000",
		"Comma-separated training-corpus sizes to search")
	nTest := flag.Int("test", 100,
		"Number of synthesized evaluation images per configuration")
	imagePath := flag.String("image", "",
		"Path to a mosaicked image to decode under the best configuration")
	seed := flag.Int64("seed", 0,
		"Random seed; 0 leaves the search non-deterministic")
	flag.Parse()

	if *fontPath == "" || *pattern == "" {
		flag.Usage()
		os.Exit(2)
	}

	font, err := render.LoadFont(*fontPath)
	if err != nil {
		log.Fatal(err)
	}
	windowSizeList, err := parseIntList(*windowSizes)
	if err != nil {
		log.Fatal(err)
	}
	offsetYList, err := parseIntList(*offsetsY)
	if err != nil {
		log.Fatal(err)
	}
	clusterList, err := parseIntList(*nClusters)
	if err != nil {
		log.Fatal(err)
	}
	trainList, err := parseIntList(*nTrain)
	if err != nil {
		log.Fatal(err)
	}

	var opts []depix.Option
	if *seed != 0 {
		opts = append(opts, depix.WithSeed(*seed))
	}

	best, err := depix.GridSearch(
		depix.PictureParametersGridSearch{
			Pattern:     *pattern,
			Font:        font,
			FontSize:    *fontSize,
			BlockSize:   *blockSize,
			WindowSizes: windowSizeList,
			OffsetsY:    offsetYList,
		},
		depix.TrainingParametersGridSearch{
			NImgTest:  *nTest,
			NImgTrain: trainList,
			NClusters: clusterList,
		},
		opts...,
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("best: window size %d, clusters %d, training images %d, offset y %d\n",
		best.WindowSize, best.NClusters, best.NImgTrain, best.OffsetY)
	fmt.Printf("accuracy: %.3f\nmean similarity: %.3f\n", best.Accuracy, best.MeanSimilarity)

	if *imagePath == "" {
		return
	}
	img, err := imageutil.LoadImage(*imagePath)
	if err != nil {
		log.Fatal(err)
	}
	decoded, err := best.Model.Decode(img)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("decoded: %s\n", decoded)
}
