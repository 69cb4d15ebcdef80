// Package depix composes the depixelization pipeline end to end:
// synthesize a labeled training corpus for a given font and
// pixelization geometry, fit the observation quantizer, estimate the
// HMM, and decode mosaicked images back into text.
package depix

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/JonasSchatz/depixhmm/hmm"
	"github.com/JonasSchatz/depixhmm/mosaic"
	"github.com/JonasSchatz/depixhmm/quantize"
	"github.com/JonasSchatz/depixhmm/render"
	"github.com/JonasSchatz/depixhmm/textgen"
	"github.com/JonasSchatz/depixhmm/window"
)

// ModuleLogger and TimeLogger are the package-default log sinks: one
// for general diagnostics and warnings, one for per-stage timings. Both
// can be replaced per Pipeline via WithLogging.
var (
	ModuleLogger = log.New(os.Stderr, "depix: ", log.LstdFlags)
	TimeLogger   = log.New(os.Stderr, "depix/time: ", log.LstdFlags)
)

// trainingPadding is the blank margin, in pixels, added on every side
// of a synthesized training image so the mosaic grid can extend past
// the text's own bounding box.
const trainingPadding = 20

// Pipeline holds validated parameters and drives training, evaluation,
// and decoding. A Pipeline is safe to reuse across multiple Train
// calls; each call synthesizes a fresh corpus.
type Pipeline struct {
	picture  PictureParameters
	training TrainingParameters

	moduleLog *log.Logger
	timeLog   *log.Logger

	seed    int64
	seeded  bool
	streams int64

	workers int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogging replaces the pipeline's loggers. Nil fields keep the
// package defaults.
func WithLogging(lp LoggingParameters) Option {
	return func(p *Pipeline) {
		if lp.ModuleLogger != nil {
			p.moduleLog = lp.ModuleLogger
		}
		if lp.TimeLogger != nil {
			p.timeLog = lp.TimeLogger
		}
	}
}

// WithSeed makes corpus synthesis, clustering initialization, and
// therefore the trained model deterministic.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) {
		p.seed = seed
		p.seeded = true
	}
}

// WithWorkers caps the number of goroutines used for per-image corpus
// synthesis. Values < 1 restore the default of GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// NewPipeline validates the parameters and returns a ready Pipeline.
func NewPipeline(picture PictureParameters, training TrainingParameters, opts ...Option) (*Pipeline, error) {
	picture = picture.withColorDefaults()
	if err := picture.validate(); err != nil {
		return nil, err
	}
	if err := training.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		picture:   picture,
		training:  training,
		moduleLog: ModuleLogger,
		timeLog:   TimeLogger,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	return p, nil
}

// newRand returns a fresh random source for the next synthesis stream.
// Seeded pipelines derive a distinct, reproducible stream per call, so
// training and evaluation corpora differ but are stable run to run.
func (p *Pipeline) newRand() *rand.Rand {
	p.streams++
	if p.seeded {
		return rand.New(rand.NewSource(p.seed + p.streams))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano() + p.streams))
}

// example is one synthesized training or evaluation unit: the ground
// truth text and its extracted windows, in left-to-right order.
type example struct {
	text    string
	windows []window.Window
}

// buildExamples synthesizes n (text, image, mosaic, windows) examples.
// Text generation and per-image offset draws happen up front on a
// single random stream so the corpus is reproducible; the per-image
// rendering, mosaicking, and window extraction fan out across the
// worker pool, writing results by index to preserve image order.
func (p *Pipeline) buildExamples(n int) ([]example, error) {
	rng := p.newRand()

	t := time.Now()
	gen, err := textgen.NewGenerator(p.picture.Pattern, textgen.WithRand(rng))
	if err != nil {
		return nil, err
	}
	texts := make([]string, n)
	for i := range texts {
		texts[i], err = gen.Generate()
		if err != nil {
			return nil, err
		}
	}
	p.timeLog.Printf("created %d texts in %s", n, time.Since(t))

	offsetsX := make([]int, n)
	if p.picture.RandomizePixelizationOriginX {
		for i := range offsetsX {
			offsetsX[i] = rng.Intn(p.picture.BlockSize + 1)
		}
	}

	renderOpts := render.Options{
		PaddingX:        trainingPadding,
		PaddingY:        trainingPadding,
		Font:            p.picture.Font,
		FontSize:        p.picture.FontSize,
		FontColor:       p.picture.FontColor,
		BackgroundColor: p.picture.BackgroundColor,
	}

	t = time.Now()
	examples := make([]example, n)
	errs := make([]error, n)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				examples[i], errs[i] = p.buildExample(texts[i], offsetsX[i], renderOpts)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	p.timeLog.Printf("rendered, pixelized, and windowed %d images in %s", n, time.Since(t))

	return examples, nil
}

func (p *Pipeline) buildExample(text string, offsetX int, renderOpts render.Options) (example, error) {
	orig, err := render.Render(text, renderOpts)
	if err != nil {
		return example{}, fmt.Errorf("depix: rendering %q: %w", text, err)
	}

	pix, err := mosaic.Pixelize(orig, mosaic.Options{
		BlockSize: p.picture.BlockSize,
		OffsetX:   offsetX,
		OffsetY:   p.picture.OffsetY,
	})
	if err != nil {
		return example{}, fmt.Errorf("depix: pixelizing %q: %w", text, err)
	}

	windows := window.Extract(orig, pix, window.Options{WindowSize: p.picture.WindowSize})
	if len(windows) == 0 {
		return example{}, fmt.Errorf("depix: text %q yields no windows at window size %d", text, p.picture.WindowSize)
	}
	return example{text: text, windows: windows}, nil
}

// Train synthesizes the training corpus, fits the quantizer, estimates
// the HMM, and returns the trained Model.
func (p *Pipeline) Train() (*Model, error) {
	examples, err := p.buildExamples(p.training.NImgTrain)
	if err != nil {
		return nil, err
	}

	var flat []window.Window
	for _, ex := range examples {
		flat = append(flat, ex.windows...)
	}

	vectors := make([][]float64, len(flat))
	for i := range flat {
		vectors[i] = flat[i].Values
	}

	t := time.Now()
	quantizer, err := quantize.Fit(vectors, p.training.NClusters, quantize.Options{
		Rand: p.newRand(),
	})
	if err != nil {
		return nil, err
	}
	p.timeLog.Printf("clustered %d windows into %d clusters in %s", len(flat), p.training.NClusters, time.Since(t))

	if used := quantizer.UsedClusters; used != p.training.NClusters {
		p.moduleLog.Printf("only %d of %d clusters are used; this can happen when a monospaced font's glyph advance divides the window width", used, p.training.NClusters)
	}

	for i, k := range quantizer.Assign(vectors) {
		flat[i].Cluster = k
	}

	t = time.Now()
	model, warnings, err := hmm.EstimateParameters(hmm.Labeled(flat))
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		p.moduleLog.Printf("%s", w)
	}
	p.timeLog.Printf("estimated HMM parameters (%d states, %d observations) in %s", len(model.States), len(model.Observations), time.Since(t))

	widths, err := stateCharWidths(p.picture, model.States)
	if err != nil {
		return nil, err
	}

	return &Model{
		HMM:        model,
		Quantizer:  quantizer,
		picture:    p.picture,
		widths:     widths,
		featureLen: len(vectors[0]),
		moduleLog:  p.moduleLog,
	}, nil
}

// Evaluate synthesizes a fresh test corpus and reports accuracy (the
// fraction of examples reconstructed exactly) and the mean similarity
// (1 minus the normalized edit distance).
func (p *Pipeline) Evaluate(m *Model) (accuracy, meanSimilarity float64, err error) {
	t := time.Now()
	examples, err := p.buildExamples(p.training.NImgTest)
	if err != nil {
		return 0, 0, err
	}

	var exact int
	var totalSimilarity float64
	for _, ex := range examples {
		decoded, err := m.DecodeWindows(ex.windows)
		if err != nil {
			return 0, 0, err
		}
		similarity := hmm.Similarity(ex.text, decoded)
		totalSimilarity += similarity
		if decoded == ex.text {
			exact++
		}
		p.moduleLog.Printf("expected %q, decoded %q, similarity %.3f", ex.text, decoded, similarity)
	}

	n := float64(len(examples))
	p.timeLog.Printf("evaluated %d images in %s", len(examples), time.Since(t))
	return float64(exact) / n, totalSimilarity / n, nil
}
