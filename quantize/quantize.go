// Package quantize maps window feature vectors onto a finite alphabet
// of cluster indices via Lloyd's k-means, with KD-tree-backed
// nearest-centroid lookup for assignment.
package quantize

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Options configures a k-means fit.
type Options struct {
	MaxIterations int
	Rand          *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 100
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(1))
	}
	return o
}

// Quantizer assigns arbitrary-length float vectors to one of K
// centroids found by Fit. It is immutable once constructed.
type Quantizer struct {
	centroids [][]float64
	tree      *pointNode
	// UsedClusters is the number of distinct centroid indices that were
	// actually closest to at least one training vector.
	UsedClusters int
}

// Fit runs Lloyd's k-means over vectors (Euclidean distance) until
// convergence or opts.MaxIterations, returning a Quantizer with k
// centroids. Callers should compare the result's UsedClusters against k
// and log a degenerate-clustering warning when they differ; the
// Quantizer remains usable either way.
func Fit(vectors [][]float64, k int, opts Options) (*Quantizer, error) {
	opts = opts.withDefaults()
	if k <= 0 {
		return nil, fmt.Errorf("quantize: k must be positive")
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("quantize: no vectors to fit")
	}
	if len(vectors) < k {
		return nil, fmt.Errorf("quantize: fewer vectors (%d) than clusters (%d)", len(vectors), k)
	}
	dim := len(vectors[0])

	centroids := initCentroids(vectors, k, opts.Rand)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < opts.MaxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroidIndex(v, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for kk := range sums {
			sums[kk] = make([]float64, dim)
		}
		for i, v := range vectors {
			kk := assignments[i]
			counts[kk]++
			for d, x := range v {
				sums[kk][d] += x
			}
		}
		for kk := range centroids {
			if counts[kk] == 0 {
				continue
			}
			for d := range centroids[kk] {
				centroids[kk][d] = sums[kk][d] / float64(counts[kk])
			}
		}

		if iter > 0 && !changed {
			break
		}
	}

	// Restrict the lookup tree to centroids that are actually nearest to
	// at least one training vector, so Assign can never produce a
	// cluster index the training set has not seen. Removing a centroid
	// can re-route a vector that was tied between two, so iterate until
	// the used set is stable; it shrinks monotonically.
	active := make([]int, k)
	for i := range active {
		active[i] = i
	}
	q := &Quantizer{centroids: centroids}
	for {
		q.tree = buildPointTree(centroids, active)
		used := make(map[int]bool)
		for _, a := range q.Assign(vectors) {
			used[a] = true
		}
		if len(used) == len(active) {
			q.UsedClusters = len(used)
			return q, nil
		}
		active = active[:0]
		for idx := range used {
			active = append(active, idx)
		}
		sort.Ints(active)
	}
}

// Assign maps each vector to the index of its nearest centroid. Total:
// every input vector always maps to some centroid in [0, K).
func (q *Quantizer) Assign(vectors [][]float64) []int {
	indices := make([]int, len(vectors))
	for i, v := range vectors {
		indices[i] = q.tree.nearest(v, 0, 0, math.Inf(1))
	}
	return indices
}

// K returns the number of centroids the Quantizer was fit with.
func (q *Quantizer) K() int {
	return len(q.centroids)
}

func initCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	used := make(map[int]bool, k)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		var idx int
		for {
			idx = rng.Intn(len(vectors))
			if !used[idx] {
				used[idx] = true
				break
			}
		}
		c := make([]float64, len(vectors[idx]))
		copy(c, vectors[idx])
		centroids[i] = c
	}
	return centroids
}

func nearestCentroidIndex(v []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		d := squaredDistance(v, c)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// pointNode is a node of a KD-tree over centroid points. The split
// axis is chosen per node as the dimension with the widest range among
// the node's points.
type pointNode struct {
	point       []float64
	index       int
	left, right *pointNode
	splitAxis   int
}

type indexedPoint struct {
	point []float64
	index int
}

// buildPointTree indexes the subset of points named by indices; the
// tree reports a point's original index, so restricting the subset
// never renumbers clusters.
func buildPointTree(points [][]float64, indices []int) *pointNode {
	if len(indices) == 0 {
		return nil
	}
	indexed := make([]indexedPoint, len(indices))
	for i, idx := range indices {
		indexed[i] = indexedPoint{point: points[idx], index: idx}
	}
	return buildIndexedTree(indexed)
}

func buildIndexedTree(points []indexedPoint) *pointNode {
	if len(points) == 0 {
		return nil
	}
	axis := chooseSplitAxis(points)
	sort.Slice(points, func(i, j int) bool {
		return points[i].point[axis] < points[j].point[axis]
	})

	median := len(points) / 2
	for median < len(points)-1 && points[median].point[axis] == points[median+1].point[axis] {
		median++
	}

	return &pointNode{
		point:     points[median].point,
		index:     points[median].index,
		left:      buildIndexedTree(points[:median]),
		right:     buildIndexedTree(points[median+1:]),
		splitAxis: axis,
	}
}

func chooseSplitAxis(points []indexedPoint) int {
	dim := len(points[0].point)
	best, bestRange := 0, -1.0
	for d := 0; d < dim; d++ {
		lo, hi := points[0].point[d], points[0].point[d]
		for _, p := range points {
			if p.point[d] < lo {
				lo = p.point[d]
			}
			if p.point[d] > hi {
				hi = p.point[d]
			}
		}
		if r := hi - lo; r > bestRange {
			best, bestRange = d, r
		}
	}
	return best
}

// nearest returns the index of the point in the subtree rooted at node
// closest to target, given the best index/distance found so far.
func (node *pointNode) nearest(target []float64, bestIndex int, depth int, bestDist float64) int {
	return nearestWithDist(node, target, bestIndex, &bestDist)
}

// nearestWithDist recurses down the KD-tree, descending into the
// half-space containing target first and only visiting the other half
// when it could still hold a closer point than bestDist.
func nearestWithDist(node *pointNode, target []float64, bestIndex int, bestDist *float64) int {
	if node == nil {
		return bestIndex
	}
	dist := squaredDistance(node.point, target)
	if dist < *bestDist {
		bestIndex, *bestDist = node.index, dist
	}

	axis := node.splitAxis
	var next, other *pointNode
	if target[axis] < node.point[axis] {
		next, other = node.left, node.right
	} else {
		next, other = node.right, node.left
	}

	bestIndex = nearestWithDist(next, target, bestIndex, bestDist)

	axisDist := target[axis] - node.point[axis]
	if axisDist*axisDist < *bestDist {
		bestIndex = nearestWithDist(other, target, bestIndex, bestDist)
	}

	return bestIndex
}
