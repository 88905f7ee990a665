package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column on its mean and divides by its
// population standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit learns column statistics from X.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.New("scaler: empty matrix")
	}
	nf := len(X[0])
	s.Mean = make([]float64, nf)
	s.Scale = make([]float64, nf)
	col := make([]float64, len(X))
	for j := 0; j < nf; j++ {
		for i, row := range X {
			if len(row) != nf {
				return fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), nf)
			}
			col[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = 1
		if sd := math.Sqrt(variance); sd > 0 {
			s.Scale[j] = sd
		}
	}
	return nil
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: expected %d columns, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row of X.
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		v, err := s.Transform(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// OneHotEncoder maps a category to an indicator vector over the sorted
// categories seen in Fit.
type OneHotEncoder struct {
	Prefix     string   `json:"prefix"`
	Categories []string `json:"categories"`
}

// NewOneHotEncoder returns an encoder whose feature names start with prefix.
func NewOneHotEncoder(prefix string) *OneHotEncoder {
	return &OneHotEncoder{Prefix: prefix}
}

// Fit records the distinct values, sorted.
func (e *OneHotEncoder) Fit(values []string) error {
	seen := make(map[string]bool, len(values))
	var cats []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			cats = append(cats, v)
		}
	}
	if len(cats) == 0 {
		return errors.New("encoder: no categories")
	}
	sort.Strings(cats)
	e.Categories = cats
	return nil
}

// FeatureNames returns Prefix+category for each category.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		out[i] = e.Prefix + c
	}
	return out
}

// Known reports whether value was seen in Fit.
func (e *OneHotEncoder) Known(value string) bool {
	_, ok := e.index(value)
	return ok
}

// Transform encodes value. An unseen value is encoded as the first
// category and reported with ok false.
func (e *OneHotEncoder) Transform(value string) (vec []float64, ok bool) {
	vec = make([]float64, len(e.Categories))
	if len(vec) == 0 {
		return vec, false
	}
	i, ok := e.index(value)
	if !ok {
		i = 0
	}
	vec[i] = 1
	return vec, ok
}

func (e *OneHotEncoder) index(value string) (int, bool) {
	i := sort.SearchStrings(e.Categories, value)
	if i < len(e.Categories) && e.Categories[i] == value {
		return i, true
	}
	return 0, false
}
