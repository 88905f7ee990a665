package domain

import "math"

// Float returns a pointer to v. NaN and ±Inf map to nil.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value dereferences p, returning NaN for nil.
func Value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// accumulator collects non-nil samples for a single column.
type accumulator struct {
	n   int
	sum float64
	min float64
	max float64
}

func (a *accumulator) add(p *float64) {
	if p == nil {
		return
	}
	v := *p
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.n++
	a.sum += v
}

func (a *accumulator) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	return Float(a.sum / float64(a.n))
}

func (a *accumulator) total() *float64 {
	if a.n == 0 {
		return nil
	}
	return Float(a.sum)
}

func (a *accumulator) minimum() *float64 {
	if a.n == 0 {
		return nil
	}
	return Float(a.min)
}

func (a *accumulator) maximum() *float64 {
	if a.n == 0 {
		return nil
	}
	return Float(a.max)
}
