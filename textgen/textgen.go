// Package textgen samples strings from the language of a regular
// expression with bounded quantifiers, and a lighter fixed-length digit
// sampler. It is the text generator of the depixelization training
// pipeline: every synthesized training image starts from a string
// produced here.
package textgen

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp/syntax"
	"strings"
	"time"
)

// ErrUnboundedQuantifier is returned by NewGenerator when the pattern
// contains a quantifier with no upper bound, such as `*`, `+`, or
// `{n,}`. Only bounded languages can be sampled exhaustively enough to
// build a character-level training corpus.
var ErrUnboundedQuantifier = errors.New("textgen: unbounded quantifier not supported")

// ErrNoMatch is returned when the pattern cannot match any string.
var ErrNoMatch = errors.New("textgen: pattern matches no strings")

// Generator samples strings uniformly at the branch level from the
// language described by a regular expression.
type Generator struct {
	pattern string
	re      *syntax.Regexp
	rng     *rand.Rand
}

// Option configures a Generator or DigitGenerator.
type Option func(*rand.Rand) *rand.Rand

// WithSeed makes generation deterministic, the reproducibility hook
// the contract requires without mandating a seed at the call site.
func WithSeed(seed int64) Option {
	return func(*rand.Rand) *rand.Rand {
		return rand.New(rand.NewSource(seed))
	}
}

// WithRand injects a caller-owned random source, e.g. to share entropy
// across many generators in one training run.
func WithRand(r *rand.Rand) Option {
	return func(*rand.Rand) *rand.Rand {
		return r
	}
}

func applyOptions(opts []Option) *rand.Rand {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, opt := range opts {
		rng = opt(rng)
	}
	return rng
}

// NewGenerator parses pattern and returns a Generator for its language.
// It fails fast with ErrUnboundedQuantifier if the pattern contains any
// unbounded repetition.
func NewGenerator(pattern string, opts ...Option) (*Generator, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("textgen: parsing pattern %q: %w", pattern, err)
	}
	if err := validateBounded(re); err != nil {
		return nil, err
	}
	return &Generator{pattern: pattern, re: re, rng: applyOptions(opts)}, nil
}

// Generate returns a string drawn from the pattern's language. Each
// call is independent.
func (g *Generator) Generate() (string, error) {
	var sb strings.Builder
	if err := g.walk(g.re, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) walk(re *syntax.Regexp, sb *strings.Builder) error {
	switch re.Op {
	case syntax.OpLiteral:
		sb.WriteString(string(re.Rune))
	case syntax.OpCharClass:
		sb.WriteRune(randClassRune(g.rng, re.Rune))
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		sb.WriteRune(randPrintableRune(g.rng))
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := g.walk(sub, sb); err != nil {
				return err
			}
		}
	case syntax.OpAlternate:
		return g.walk(re.Sub[g.rng.Intn(len(re.Sub))], sb)
	case syntax.OpCapture:
		return g.walk(re.Sub[0], sb)
	case syntax.OpQuest:
		if g.rng.Intn(2) == 1 {
			return g.walk(re.Sub[0], sb)
		}
	case syntax.OpRepeat:
		n := re.Min
		if re.Max > re.Min {
			n += g.rng.Intn(re.Max-re.Min+1)
		}
		for i := 0; i < n; i++ {
			if err := g.walk(re.Sub[0], sb); err != nil {
				return err
			}
		}
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		// zero-width assertions contribute no characters
	default:
		return fmt.Errorf("textgen: unsupported regex construct %v in %q", re.Op, g.pattern)
	}
	return nil
}

// validateBounded walks the parsed tree once and rejects any
// unbounded Star, Plus, or open-ended Repeat ({n,}) node.
func validateBounded(re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		return fmt.Errorf("%w: %q", ErrUnboundedQuantifier, re.String())
	case syntax.OpRepeat:
		if re.Max < 0 {
			return fmt.Errorf("%w: %q", ErrUnboundedQuantifier, re.String())
		}
	case syntax.OpNoMatch:
		return ErrNoMatch
	}
	for _, sub := range re.Sub {
		if err := validateBounded(sub); err != nil {
			return err
		}
	}
	return nil
}

// randClassRune picks a rune uniformly from a char class's ranges,
// weighted by range width so a 26-letter range isn't as likely as a
// single-rune range.
func randClassRune(rng *rand.Rand, ranges []rune) rune {
	total := 0
	for i := 0; i < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
	}
	pick := rng.Intn(total)
	for i := 0; i < len(ranges); i += 2 {
		width := int(ranges[i+1]-ranges[i]) + 1
		if pick < width {
			return ranges[i] + rune(pick)
		}
		pick -= width
	}
	// Unreachable given the accounting above.
	return ranges[0]
}

// printableLo and printableHi bound the ASCII range used for `.`:
// wide enough to render with any monospace font, narrow enough to
// exclude control characters a font can't draw.
const (
	printableLo = 0x20
	printableHi = 0x7e
)

func randPrintableRune(rng *rand.Rand) rune {
	return rune(printableLo + rng.Intn(printableHi-printableLo+1))
}

// DigitGenerator produces fixed-length random digit strings. It exists
// purely as a lighter sampler than a full regex Generator when the
// caller already knows the pattern is `\d{n}`.
type DigitGenerator struct {
	length int
	rng    *rand.Rand
}

// NewDigitGenerator returns a DigitGenerator producing strings of the
// given length.
func NewDigitGenerator(length int, opts ...Option) *DigitGenerator {
	return &DigitGenerator{length: length, rng: applyOptions(opts)}
}

// Generate returns a random digit string of the configured length.
func (g *DigitGenerator) Generate() string {
	const digits = "0123456789"
	b := make([]byte, g.length)
	for i := range b {
		b[i] = digits[g.rng.Intn(len(digits))]
	}
	return string(b)
}
