package hmm

import "testing"

func TestOverlapExamples(t *testing.T) {
	cases := []struct {
		reconstructed, next string
		want                int
	}{
		{"123", "23", 2},
		{"123", "34", 1},
		{"123", "4", 0},
	}
	for _, c := range cases {
		got := Overlap([]rune(c.reconstructed), []rune(c.next))
		if got != c.want {
			t.Errorf("Overlap(%q, %q) = %d, want %d", c.reconstructed, c.next, got, c.want)
		}
	}
}

func TestReconstructDigitExample(t *testing.T) {
	// Each Viterbi output tuple below stands for a contiguous run of
	// windows decoded to that same state (runs of length 5,5,4,5,5,4,
	// 5,5,4,1 per the worked example); a repeated identical tuple
	// always produces full self-overlap and leaves reconstructed
	// untouched, so collapsing each run to one representative call
	// exercises the same merge logic with one Reconstruct call per
	// state transition.
	path := [][]rune{
		{'8', '1'}, {'1', '2'}, {'2', '9'}, {'9', '2'}, {'2', '7'},
		{'7', '7'}, {'7', '2'}, {'2', '0'}, {'0', '2'}, {'2'},
	}
	unitWidth := func(r rune) int { return 1 }

	got := Reconstruct(path, 1, unitWidth)
	want := "8129277202"
	if got != want {
		t.Errorf("Reconstruct() = %q, want %q", got, want)
	}
}

func TestSimilarityAndLevenshtein(t *testing.T) {
	if got := Similarity("hello", "hello"); got != 1 {
		t.Errorf("Similarity of identical strings = %v, want 1", got)
	}
	if got := levenshtein("kitten", "sitting"); got != 3 {
		t.Errorf("levenshtein(kitten, sitting) = %d, want 3", got)
	}
	sim := Similarity("abcde", "abcxe")
	if sim <= 0 || sim >= 1 {
		t.Errorf("Similarity(abcde, abcxe) = %v, want in (0, 1)", sim)
	}
}

// twoStateModel builds a small, well-formed HMM for Viterbi tests: two
// states ('a') and ('b'), two observations 0 and 1, each state more
// likely to emit its "own" observation and more likely to stay put.
func twoStateModel(t *testing.T) *Model {
	t.Helper()
	states := [][]rune{{'a'}, {'b'}}
	observations := []int{0, 1}
	start := []float64{0.5, 0.5}
	trans := [][]float64{
		{0.9, 0.1},
		{0.1, 0.9},
	}
	emit := [][]float64{
		{0.8, 0.2},
		{0.2, 0.8},
	}
	m, warnings, err := NewModel(observations, states, start, trans, emit)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return m
}

func TestLinearAndLogViterbiAgreeOnShortSequences(t *testing.T) {
	m := twoStateModel(t)
	seq := []int{0, 0, 0, 1, 1, 0, 1, 1, 1, 0}

	linear, err := m.Viterbi(seq)
	if err != nil {
		t.Fatalf("Viterbi: %v", err)
	}
	log, err := m.LogViterbi(seq)
	if err != nil {
		t.Fatalf("LogViterbi: %v", err)
	}
	if len(linear) != len(log) {
		t.Fatalf("path length mismatch: %d vs %d", len(linear), len(log))
	}
	for i := range linear {
		if string(linear[i]) != string(log[i]) {
			t.Errorf("step %d: linear=%q log=%q, want equal", i, string(linear[i]), string(log[i]))
		}
	}
}

func TestLogViterbiHandlesSequencesTooLongForLinear(t *testing.T) {
	m := twoStateModel(t)

	const T = 600
	seq := make([]int, T)
	for i := range seq {
		seq[i] = i % 2
	}

	// Demonstrate, independently of the package, that naive repeated
	// multiplication of probabilities this small underflows to exactly
	// zero well before T=600 -- the scenario log-domain decoding exists
	// to avoid.
	prob := 1.0
	for i := 0; i < T; i++ {
		prob *= 0.2
	}
	if prob != 0 {
		t.Fatalf("test setup: expected naive product to underflow to 0, got %v", prob)
	}

	path, err := m.LogViterbi(seq)
	if err != nil {
		t.Fatalf("LogViterbi: %v", err)
	}
	if len(path) != T {
		t.Fatalf("LogViterbi path length = %d, want %d", len(path), T)
	}
	for i, s := range path {
		if len(s) == 0 {
			t.Fatalf("step %d: empty state in decoded path", i)
		}
	}

	if _, err := m.Viterbi(seq); err != nil {
		t.Fatalf("Viterbi on long sequence returned an error instead of an underflowed-but-valid path: %v", err)
	}
}

func TestEstimateParametersRowsSumToOne(t *testing.T) {
	windows := []LabeledWindow{
		{Label: []rune{'a'}, Cluster: 0, WindowIndex: 0},
		{Label: []rune{'a', 'b'}, Cluster: 1, WindowIndex: 1},
		{Label: []rune{'b'}, Cluster: 0, WindowIndex: 2},
		{Label: []rune{'a'}, Cluster: 0, WindowIndex: 0},
		{Label: []rune{'b'}, Cluster: 1, WindowIndex: 1},
	}
	m, warnings, err := EstimateParameters(windows)
	if err != nil {
		t.Fatalf("EstimateParameters: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	const tol = 1e-3
	for i, row := range m.Trans {
		if !sumsToOne(row, tol) {
			t.Errorf("transition row %d does not sum to 1: %v", i, row)
		}
	}
	for i, row := range m.Emit {
		if !sumsToOne(row, tol) {
			t.Errorf("emission row %d does not sum to 1: %v", i, row)
		}
	}
}

func TestEstimateParametersUniformFallbackForDeadEndState(t *testing.T) {
	// label "z" only ever appears as the very last window of its image,
	// so it has no outgoing transition in the training stream and must
	// fall back to a uniform row.
	windows := []LabeledWindow{
		{Label: []rune{'a'}, Cluster: 0, WindowIndex: 0},
		{Label: []rune{'z'}, Cluster: 1, WindowIndex: 1},
		{Label: []rune{'a'}, Cluster: 0, WindowIndex: 0},
		{Label: []rune{'a'}, Cluster: 0, WindowIndex: 1},
	}
	m, _, err := EstimateParameters(windows)
	if err != nil {
		t.Fatalf("EstimateParameters: %v", err)
	}

	zIdx := -1
	for i, s := range m.States {
		if string(s) == "z" {
			zIdx = i
		}
	}
	if zIdx == -1 {
		t.Fatalf("state \"z\" not found among %v", m.States)
	}
	uniform := 1.0 / float64(len(m.States))
	for j, p := range m.Trans[zIdx] {
		if p != uniform {
			t.Errorf("dead-end state row[%d] = %v, want uniform %v", j, p, uniform)
		}
	}
}

func TestNewModelRejectsShapeMismatch(t *testing.T) {
	states := [][]rune{{'a'}, {'b'}}
	observations := []int{0, 1}
	if _, _, err := NewModel(observations, states, []float64{1}, [][]float64{{1, 0}, {0, 1}}, [][]float64{{1, 0}, {0, 1}}); err == nil {
		t.Error("expected ErrShapeMismatch for wrong-length starting probabilities")
	}
	if _, _, err := NewModel(observations, states, []float64{0.5, 0.5}, [][]float64{{1, 0}}, [][]float64{{1, 0}, {0, 1}}); err == nil {
		t.Error("expected ErrShapeMismatch for wrong-shaped transition matrix")
	}
}

func TestNewModelReportsUnnormalizedRowsAsWarnings(t *testing.T) {
	states := [][]rune{{'a'}, {'b'}}
	observations := []int{0, 1}
	start := []float64{0.5, 0.5}
	trans := [][]float64{{0.9, 0.2}, {0.1, 0.9}}
	emit := [][]float64{{0.8, 0.2}, {0.2, 0.8}}

	m, warnings, err := NewModel(observations, states, start, trans, emit)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if m == nil {
		t.Fatal("NewModel returned nil model despite only a warning-class issue")
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the unnormalized transition row")
	}
}
