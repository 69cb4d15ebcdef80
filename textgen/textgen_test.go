package textgen

import (
	"regexp"
	"testing"
)

func TestGeneratorMatchesPattern(t *testing.T) {
	patterns := []string{
		`\d{7}`,
		`[A-Za-z]{3,6}`,
		`\d{2,4}-\d{2}`,
		`(foo|bar|baz)\d{1,2}`,
		`a?b{0,3}c`,
	}

	for _, pattern := range patterns {
		pattern := pattern
		t.Run(pattern, func(t *testing.T) {
			t.Parallel()
			g, err := NewGenerator(pattern, WithSeed(1))
			if err != nil {
				t.Fatalf("NewGenerator(%q): %v", pattern, err)
			}
			re := regexp.MustCompile("^(?:" + pattern + ")$")
			for i := 0; i < 50; i++ {
				s, err := g.Generate()
				if err != nil {
					t.Fatalf("Generate: %v", err)
				}
				if !re.MatchString(s) {
					t.Errorf("generated %q does not match pattern %q", s, pattern)
				}
			}
		})
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	g1, err := NewGenerator(`[A-Za-z0-9]{10}`, WithSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	g2, err := NewGenerator(`[A-Za-z0-9]{10}`, WithSeed(42))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		s1, err := g1.Generate()
		if err != nil {
			t.Fatal(err)
		}
		s2, err := g2.Generate()
		if err != nil {
			t.Fatal(err)
		}
		if s1 != s2 {
			t.Fatalf("same-seed generators diverged: %q != %q", s1, s2)
		}
	}
}

func TestNewGeneratorRejectsUnboundedQuantifiers(t *testing.T) {
	patterns := []string{
		`\d+`,
		`a*`,
		`\d{3,}`,
	}
	for _, pattern := range patterns {
		if _, err := NewGenerator(pattern); err == nil {
			t.Errorf("NewGenerator(%q) should have failed on unbounded quantifier", pattern)
		}
	}
}

func TestDigitGeneratorLengthAndAlphabet(t *testing.T) {
	g := NewDigitGenerator(9, WithSeed(7))
	for i := 0; i < 20; i++ {
		s := g.Generate()
		if len(s) != 9 {
			t.Fatalf("expected length 9, got %d (%q)", len(s), s)
		}
		for _, c := range s {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit character %q in %q", c, s)
			}
		}
	}
}
