// Package model implements the yield regressor and its preprocessing: a
// random forest of CART regression trees, a standard scaler, a one-hot
// encoder, and a JSON bundle that ties them to an ordered feature list.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrNotFitted is returned when a model is used before Fit.
var ErrNotFitted = errors.New("model not fitted")

// Params are the forest hyperparameters. MaxDepth 0 grows trees until the
// leaves are pure or too small to split.
type Params struct {
	NumTrees        int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"random_state"`
}

// DefaultParams returns the fixed training configuration.
func DefaultParams() Params {
	return Params{NumTrees: 100, MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42}
}

// Validate checks the hyperparameters.
func (p Params) Validate() error {
	switch {
	case p.NumTrees < 1:
		return fmt.Errorf("n_estimators must be positive, got %d", p.NumTrees)
	case p.MaxDepth < 0:
		return fmt.Errorf("max_depth must be >= 0, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("min_samples_split must be >= 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("min_samples_leaf must be >= 1, got %d", p.MinSamplesLeaf)
	}
	return nil
}

// RandomForest averages bootstrap-trained regression trees. Every split
// considers all features.
type RandomForest struct {
	Params      Params    `json:"params"`
	NumFeatures int       `json:"num_features"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"feature_importances"`
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(p Params) *RandomForest {
	return &RandomForest{Params: p}
}

// Fit trains the forest on X (rows of equal width) and y. Each tree is
// grown on a bootstrap sample drawn from a generator seeded by Params.Seed
// and the tree index, so a fit is reproducible.
func (f *RandomForest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := f.Params.Validate(); err != nil {
		return err
	}
	nf, err := checkMatrix(X, y)
	if err != nil {
		return err
	}

	trees := make([]Tree, f.Params.NumTrees)
	importances := make([]float64, nf)
	n := len(X)
	for t := range trees {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(uint64(f.Params.Seed), uint64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		b := &builder{X: X, y: y, p: f.Params, importance: make([]float64, nf)}
		b.build(sample, 0)
		trees[t] = Tree{Nodes: b.nodes}

		if total := floats.Sum(b.importance); total > 0 {
			for j, v := range b.importance {
				importances[j] += v / total
			}
		}
	}
	if total := floats.Sum(importances); total > 0 {
		for j := range importances {
			importances[j] /= total
		}
	}

	f.NumFeatures = nf
	f.Trees = trees
	f.Importances = importances
	return nil
}

// Fitted reports whether the forest has been trained.
func (f *RandomForest) Fitted() bool {
	return f != nil && len(f.Trees) > 0
}

// Predict returns the mean tree prediction for one row.
func (f *RandomForest) Predict(x []float64) (float64, error) {
	if !f.Fitted() {
		return 0, ErrNotFitted
	}
	if len(x) != f.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", f.NumFeatures, len(x))
	}
	var total float64
	for i := range f.Trees {
		total += f.Trees[i].Predict(x)
	}
	return total / float64(len(f.Trees)), nil
}

// PredictAll predicts every row of X.
func (f *RandomForest) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := f.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Node is one node of a flattened tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree; a row goes left when its value is <= Threshold.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type builder struct {
	X          [][]float64
	y          []float64
	p          Params
	nodes      []Node
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// build grows the subtree for the sample rows idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	mean, sse := b.moments(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: mean})

	if b.p.MaxDepth > 0 && depth >= b.p.MaxDepth {
		return id
	}
	if len(idx) < b.p.MinSamplesSplit || len(idx) < 2*b.p.MinSamplesLeaf || sse <= 1e-12 {
		return id
	}
	s, ok := b.bestSplit(idx, sse)
	if !ok {
		return id
	}
	b.importance[s.feature] += s.gain

	var left, right []int
	for _, i := range idx {
		if b.X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r, Value: mean}
	return id
}

func (b *builder) moments(idx []int) (mean, sse float64) {
	var s, q float64
	for _, i := range idx {
		s += b.y[i]
		q += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean = s / n
	return mean, math.Max(0, q-s*s/n)
}

// bestSplit scans every feature for the threshold with the largest
// reduction in squared error. Ties keep the first feature and threshold.
func (b *builder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	n := len(idx)
	minLeaf := b.p.MinSamplesLeaf
	best := split{feature: -1}
	sorted := make([]int, n)

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	for f := 0; f < len(b.importance); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.y[sorted[k]]
			leftSum += v
			leftSq += v * v
			nl := k + 1
			nr := n - nl
			cur, next := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if cur == next || nl < minLeaf || nr < minLeaf {
				continue
			}
			sseL := leftSq - leftSum*leftSum/float64(nl)
			rs := totalSum - leftSum
			sseR := (totalSq - leftSq) - rs*rs/float64(nr)
			gain := parentSSE - sseL - sseR
			if gain > best.gain+1e-12 {
				thr := cur + (next-cur)/2
				if thr >= next {
					thr = cur
				}
				best = split{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	return best, best.feature >= 0
}

func checkMatrix(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("no training rows")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return 0, errors.New("no features")
	}
	for i, row := range X {
		if len(row) != nf {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), nf)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("row %d feature %d is not finite", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("target %d is not finite", i)
		}
	}
	return nf, nil
}
