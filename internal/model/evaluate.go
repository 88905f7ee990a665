package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scores are regression metrics on one set of predictions.
type Scores struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Score computes R², RMSE and MAE. R² is 0 when yTrue is constant.
func Score(yTrue, yPred []float64) Scores {
	n := float64(len(yTrue))
	if n == 0 {
		return Scores{}
	}
	var s Scores
	if stat.Variance(yTrue, nil) > 0 {
		s.R2 = stat.RSquaredFrom(yPred, yTrue, nil)
	}
	s.RMSE = floats.Distance(yPred, yTrue, 2) / math.Sqrt(n)
	s.MAE = floats.Distance(yPred, yTrue, 1) / n
	return s
}

// CVScores summarizes k-fold R².
type CVScores struct {
	Folds []float64 `json:"folds"`
	Mean  float64   `json:"mean"`
	Std   float64   `json:"std"`
}

func summarizeFolds(folds []float64) CVScores {
	out := CVScores{Folds: folds}
	if len(folds) > 0 {
		out.Mean, out.Std = stat.PopMeanStdDev(folds, nil)
	}
	return out
}

// TrainTestSplit shuffles row indices with seed and holds out
// ceil(n*testFraction) of them.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %g", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test fraction %g", n, testFraction)
	}
	perm := rand.New(rand.NewPCG(uint64(seed), 0)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// KFold partitions 0..n-1 into k contiguous folds; the first n%k folds get
// one extra row.
func KFold(n, k int) ([][]int, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}
	folds := make([][]int, k)
	start := 0
	for f := range folds {
		size := n / k
		if f < n%k {
			size++
		}
		folds[f] = make([]int, size)
		for i := range folds[f] {
			folds[f][i] = start + i
		}
		start += size
	}
	return folds, nil
}

// CrossValidate fits a forest on each k-1 folds and scores R² on the
// remaining fold.
func CrossValidate(ctx context.Context, X [][]float64, y []float64, p Params, k int) (CVScores, error) {
	folds, err := KFold(len(X), k)
	if err != nil {
		return CVScores{}, err
	}
	scores := make([]float64, 0, k)
	for f, test := range folds {
		inTest := make(map[int]bool, len(test))
		for _, i := range test {
			inTest[i] = true
		}
		var trX, teX [][]float64
		var trY, teY []float64
		for i := range X {
			if inTest[i] {
				teX, teY = append(teX, X[i]), append(teY, y[i])
			} else {
				trX, trY = append(trX, X[i]), append(trY, y[i])
			}
		}
		rf := NewRandomForest(p)
		if err := rf.Fit(ctx, trX, trY); err != nil {
			return CVScores{}, fmt.Errorf("fold %d: %w", f, err)
		}
		pred, err := rf.PredictAll(teX)
		if err != nil {
			return CVScores{}, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, Score(teY, pred).R2)
	}
	return summarizeFolds(scores), nil
}

// Grid is the hyperparameter search space. A MaxDepth of 0 means unlimited.
type Grid struct {
	NumTrees        []int `yaml:"n_estimators"`
	MaxDepth        []int `yaml:"max_depth"`
	MinSamplesSplit []int `yaml:"min_samples_split"`
	MinSamplesLeaf  []int `yaml:"min_samples_leaf"`
}

// DefaultGrid returns the standard search space.
func DefaultGrid() Grid {
	return Grid{
		NumTrees:        []int{100, 200, 300},
		MaxDepth:        []int{10, 15, 20, 0},
		MinSamplesSplit: []int{2, 5, 10},
		MinSamplesLeaf:  []int{1, 2, 4},
	}
}

// Candidates expands the grid in declaration order.
func (g Grid) Candidates(seed int64) []Params {
	var out []Params
	for _, nt := range g.NumTrees {
		for _, md := range g.MaxDepth {
			for _, ss := range g.MinSamplesSplit {
				for _, sl := range g.MinSamplesLeaf {
					out = append(out, Params{
						NumTrees:        nt,
						MaxDepth:        md,
						MinSamplesSplit: ss,
						MinSamplesLeaf:  sl,
						Seed:            seed,
					})
				}
			}
		}
	}
	return out
}

// SearchResult is the outcome of GridSearch.
type SearchResult struct {
	Best      Params
	BestScore float64
	Evaluated int
}

// GridSearch cross-validates every candidate and keeps the one with the
// highest mean R². Ties keep the earlier candidate.
func GridSearch(ctx context.Context, X [][]float64, y []float64, g Grid, k int, seed int64) (SearchResult, error) {
	candidates := g.Candidates(seed)
	if len(candidates) == 0 {
		return SearchResult{}, errors.New("empty parameter grid")
	}
	res := SearchResult{BestScore: math.Inf(-1)}
	for _, p := range candidates {
		cv, err := CrossValidate(ctx, X, y, p, k)
		if err != nil {
			return SearchResult{}, err
		}
		res.Evaluated++
		if cv.Mean > res.BestScore {
			res.Best, res.BestScore = p, cv.Mean
		}
	}
	return res, nil
}
