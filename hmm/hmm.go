// Package hmm implements a Hidden Markov Model whose states are
// character n-grams and whose observations are quantizer cluster
// indices: parameter estimation from labeled windows, Viterbi decoding
// in linear and log domains, and greedy reconstruction of a flat
// string from a decoded sequence of overlapping n-gram states.
package hmm

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/JonasSchatz/depixhmm/window"
)

// ErrShapeMismatch is returned by NewModel when the starting,
// transition, or emission matrices are inconsistent with the number of
// states or observations.
var ErrShapeMismatch = fmt.Errorf("hmm: probability matrix shape mismatch")

// LabeledWindow is the slice of a window.Window the estimator needs: its
// character-tuple label, its assigned cluster, and its position within
// its image. WindowIndex 0 marks the first window of an image; the
// estimator uses it to count starting states and to suppress transitions
// across image boundaries.
type LabeledWindow struct {
	Label       []rune
	Cluster     int
	WindowIndex int
}

// Labeled converts extracted, clustered windows into the estimator's
// input form, preserving order.
func Labeled(windows []window.Window) []LabeledWindow {
	out := make([]LabeledWindow, len(windows))
	for i, w := range windows {
		out[i] = LabeledWindow{
			Label:       w.Characters,
			Cluster:     w.Cluster,
			WindowIndex: w.Index,
		}
	}
	return out
}

// Model holds a trained HMM: its state/observation alphabets and the
// starting, transition, and emission probability matrices, plus their
// log-domain counterparts computed lazily on first decode.
type Model struct {
	Observations []int
	States       [][]rune

	Start []float64
	Trans [][]float64
	Emit  [][]float64

	stateIndex map[string]int
	obsIndex   map[int]int

	logOnce  sync.Once
	logStart []float64
	logTrans [][]float64
	logEmit  [][]float64
}

// NewModel constructs a Model from already-estimated probability
// matrices, validating their shapes. Unnormalized rows are reported as
// warnings rather than rejected, matching the training-side guarantee
// that EstimateParameters always produces normalized output; NewModel
// itself may also be called directly (e.g. from tests) with hand-built
// matrices that are not guaranteed normalized.
func NewModel(observations []int, states [][]rune, start []float64, trans, emit [][]float64) (*Model, []string, error) {
	n := len(states)
	m := len(observations)

	if len(start) != n {
		return nil, nil, fmt.Errorf("%w: starting probabilities has %d entries, want %d states", ErrShapeMismatch, len(start), n)
	}
	if len(trans) != n {
		return nil, nil, fmt.Errorf("%w: transition matrix has %d rows, want %d", ErrShapeMismatch, len(trans), n)
	}
	for i, row := range trans {
		if len(row) != n {
			return nil, nil, fmt.Errorf("%w: transition row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), n)
		}
	}
	if len(emit) != n {
		return nil, nil, fmt.Errorf("%w: emission matrix has %d rows, want %d", ErrShapeMismatch, len(emit), n)
	}
	for i, row := range emit {
		if len(row) != m {
			return nil, nil, fmt.Errorf("%w: emission row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), m)
		}
	}

	var warnings []string
	const tol = 1e-3
	for i, row := range trans {
		if !sumsToOne(row, tol) {
			warnings = append(warnings, fmt.Sprintf("hmm: transition row %d does not sum to 1", i))
		}
	}
	for i, row := range emit {
		if !sumsToOne(row, tol) {
			warnings = append(warnings, fmt.Sprintf("hmm: emission row %d does not sum to 1", i))
		}
	}

	stateIndex := make(map[string]int, n)
	for i, s := range states {
		stateIndex[string(s)] = i
	}
	obsIndex := make(map[int]int, m)
	for i, o := range observations {
		obsIndex[o] = i
	}

	return &Model{
		Observations: observations,
		States:       states,
		Start:        start,
		Trans:        trans,
		Emit:         emit,
		stateIndex:   stateIndex,
		obsIndex:     obsIndex,
	}, warnings, nil
}

func sumsToOne(row []float64, tol float64) bool {
	var sum float64
	for _, x := range row {
		sum += x
	}
	return math.Abs(sum-1) <= tol
}

// EstimateParameters builds starting, transition, and emission
// distributions from a stream of labeled, clustered windows. windows
// must be presented in image-major, window-index-major order; a
// WindowIndex of 0 marks the start of a new image and suppresses the
// transition from the previous image's final window.
func EstimateParameters(windows []LabeledWindow) (*Model, []string, error) {
	if len(windows) == 0 {
		return nil, nil, fmt.Errorf("hmm: no windows to estimate parameters from")
	}

	stateSet := make(map[string][]rune)
	obsSet := make(map[int]bool)
	for _, w := range windows {
		stateSet[string(w.Label)] = w.Label
		obsSet[w.Cluster] = true
	}

	states := make([][]rune, 0, len(stateSet))
	for _, label := range stateSet {
		states = append(states, label)
	}
	sort.Slice(states, func(i, j int) bool { return string(states[i]) < string(states[j]) })

	observations := make([]int, 0, len(obsSet))
	for o := range obsSet {
		observations = append(observations, o)
	}
	sort.Ints(observations)

	stateIndex := make(map[string]int, len(states))
	for i, s := range states {
		stateIndex[string(s)] = i
	}
	obsIndex := make(map[int]int, len(observations))
	for i, o := range observations {
		obsIndex[o] = i
	}

	n, m := len(states), len(observations)

	startCounts := make([]float64, n)
	var startTotal float64
	transCounts := make([][]float64, n)
	emitCounts := make([][]float64, n)
	emitTotals := make([]float64, n)
	for i := range transCounts {
		transCounts[i] = make([]float64, n)
		emitCounts[i] = make([]float64, m)
	}

	for i, w := range windows {
		s := stateIndex[string(w.Label)]
		o := obsIndex[w.Cluster]

		emitCounts[s][o]++
		emitTotals[s]++

		if w.WindowIndex == 0 {
			startCounts[s]++
			startTotal++
		}

		if i > 0 && w.WindowIndex != 0 {
			prev := stateIndex[string(windows[i-1].Label)]
			transCounts[prev][s]++
		}
	}

	start := make([]float64, n)
	for i, c := range startCounts {
		if startTotal > 0 {
			start[i] = c / startTotal
		}
	}

	trans := make([][]float64, n)
	for i, row := range transCounts {
		var rowSum float64
		for _, c := range row {
			rowSum += c
		}
		trans[i] = make([]float64, n)
		if rowSum == 0 {
			uniform := 1.0 / float64(n)
			for j := range trans[i] {
				trans[i][j] = uniform
			}
			continue
		}
		for j, c := range row {
			trans[i][j] = c / rowSum
		}
	}

	emit := make([][]float64, n)
	for i, row := range emitCounts {
		emit[i] = make([]float64, m)
		total := emitTotals[i]
		for j, c := range row {
			if total > 0 {
				emit[i][j] = c / total
			}
		}
	}

	return NewModel(observations, states, start, trans, emit)
}

func (m *Model) ensureLogMatrices() {
	m.logOnce.Do(func() {
		m.logStart = logVector(m.Start)
		m.logTrans = logMatrix(m.Trans)
		m.logEmit = logMatrix(m.Emit)
	})
}

func logVector(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Log(x)
	}
	return out
}

func logMatrix(mat [][]float64) [][]float64 {
	out := make([][]float64, len(mat))
	for i, row := range mat {
		out[i] = logVector(row)
	}
	return out
}

// obsIndices translates a sequence of raw cluster indices into indices
// into the model's observation alphabet.
func (m *Model) obsIndices(sequence []int) ([]int, error) {
	out := make([]int, len(sequence))
	for i, o := range sequence {
		idx, ok := m.obsIndex[o]
		if !ok {
			return nil, fmt.Errorf("hmm: observation %d not in training alphabet", o)
		}
		out[i] = idx
	}
	return out, nil
}

// Viterbi runs the standard linear-domain Viterbi algorithm over
// sequence (a list of cluster indices), returning the most likely
// sequence of states. It underflows to all-zero columns for sequences
// long enough that the product of probabilities drops below float64's
// smallest representable positive value; LogViterbi does not share this
// limitation and is the production decoder.
func (m *Model) Viterbi(sequence []int) ([][]rune, error) {
	obs, err := m.obsIndices(sequence)
	if err != nil {
		return nil, err
	}
	n, T := len(m.States), len(obs)
	if T == 0 {
		return nil, nil
	}

	v := make([][]float64, n)
	ptr := make([][]int, n)
	for s := range v {
		v[s] = make([]float64, T)
		ptr[s] = make([]int, T)
	}

	for s := 0; s < n; s++ {
		v[s][0] = m.Start[s] * m.Emit[s][obs[0]]
	}

	for t := 1; t < T; t++ {
		for s := 0; s < n; s++ {
			best, bestPrev := -1.0, 0
			for sp := 0; sp < n; sp++ {
				score := v[sp][t-1] * m.Trans[sp][s]
				if score > best {
					best, bestPrev = score, sp
				}
			}
			v[s][t] = best * m.Emit[s][obs[t]]
			ptr[s][t] = bestPrev
		}
	}

	return backtrack(m.States, v, ptr)
}

// LogViterbi runs the log-domain Viterbi algorithm, immune to the
// underflow that affects Viterbi on long sequences. For sequences short
// enough that Viterbi does not underflow, the two return identical
// state paths.
func (m *Model) LogViterbi(sequence []int) ([][]rune, error) {
	obs, err := m.obsIndices(sequence)
	if err != nil {
		return nil, err
	}
	m.ensureLogMatrices()

	n, T := len(m.States), len(obs)
	if T == 0 {
		return nil, nil
	}

	v := make([][]float64, n)
	ptr := make([][]int, n)
	for s := range v {
		v[s] = make([]float64, T)
		ptr[s] = make([]int, T)
	}

	for s := 0; s < n; s++ {
		v[s][0] = m.logStart[s] + m.logEmit[s][obs[0]]
	}

	for t := 1; t < T; t++ {
		for s := 0; s < n; s++ {
			best, bestPrev := math.Inf(-1), 0
			for sp := 0; sp < n; sp++ {
				score := v[sp][t-1] + m.logTrans[sp][s]
				if score > best {
					best, bestPrev = score, sp
				}
			}
			v[s][t] = best + m.logEmit[s][obs[t]]
			ptr[s][t] = bestPrev
		}
	}

	return backtrack(m.States, v, ptr)
}

func backtrack(states [][]rune, v [][]float64, ptr [][]int) ([][]rune, error) {
	n := len(v)
	T := len(v[0])

	last := 0
	for s := 1; s < n; s++ {
		if v[s][T-1] > v[last][T-1] {
			last = s
		}
	}

	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = ptr[path[t]][t]
	}

	out := make([][]rune, T)
	for t, s := range path {
		out[t] = states[s]
	}
	return out, nil
}

// Overlap returns the largest k >= 0 such that the last k elements of
// reconstructed equal the first k elements of next.
func Overlap(reconstructed, next []rune) int {
	largest := 0
	for k := 1; k <= len(next); k++ {
		if k > len(reconstructed) {
			break
		}
		if string(reconstructed[len(reconstructed)-k:]) == string(next[:k]) {
			largest = k
		}
	}
	return largest
}

// CharWidth reports the advance width, in pixels, of a single
// character; Reconstruct uses it to estimate where each emitted
// character falls in image coordinates.
type CharWidth func(r rune) int

// Reconstruct merges a Viterbi state path (a sequence of overlapping
// character tuples) into a single string, greedily resolving overlaps
// between consecutive tuples via Overlap. Disagreements between
// windows (no shared character where one is expected) are resolved by
// keeping the first observation: the full second tuple is appended.
func Reconstruct(path [][]rune, blockSize int, width CharWidth) string {
	var reconstructed []rune
	var rights []int

	for w, tuple := range path {
		blockStart := w * blockSize
		if len(tuple) == 0 {
			continue
		}

		cutoff := blockStart - width(tuple[0])
		var candidate []rune
		for i := range reconstructed {
			if rights[i] >= cutoff {
				candidate = reconstructed[i:]
				break
			}
		}

		overlap := Overlap(candidate, tuple)

		offset := 0
		for i := overlap; i < len(tuple); i++ {
			ch := tuple[i]
			start := blockStart + offset
			end := start + width(ch)
			reconstructed = append(reconstructed, ch)
			rights = append(rights, end)
			offset += width(ch)
		}
	}

	return string(reconstructed)
}

// Similarity is 1 minus the Levenshtein distance between original and
// recovered, normalized by the length of original; 1.0 means a perfect
// match.
func Similarity(original, recovered string) float64 {
	if len(original) == 0 {
		return 0
	}
	return 1 - float64(levenshtein(original, recovered))/float64(len([]rune(original)))
}

// levenshtein computes the classic edit distance between two strings
// using a two-row dynamic program.
func levenshtein(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) > len(r2) {
		r1, r2 = r2, r1
	}

	prev := make([]int, len(r1)+1)
	for i := range prev {
		prev[i] = i
	}

	for _, c2 := range r2 {
		cur := make([]int, len(r1)+1)
		cur[0] = prev[0] + 1
		for i, c1 := range r1 {
			if c1 == c2 {
				cur[i+1] = prev[i]
			} else {
				cur[i+1] = 1 + min3(prev[i], prev[i+1], cur[i])
			}
		}
		prev = cur
	}

	return prev[len(r1)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
