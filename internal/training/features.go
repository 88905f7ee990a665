// Package training turns the monthly master dataset into an annual
// feature table and fits the yield regressor on it.
package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// Soil quality weights for pH, organic carbon and clay.
const (
	soilWeightPH   = 0.3
	soilWeightOC   = 0.4
	soilWeightClay = 0.3
)

// DefaultGrowingRainMM is the monthly rainfall above which a month counts
// toward the growing season.
const DefaultGrowingRainMM = 50.0

// SoilQuality scores a soil profile. Any NaN input yields NaN.
func SoilQuality(ph, organicCarbon, clay float64) float64 {
	return ph*soilWeightPH + organicCarbon*soilWeightOC + clay*soilWeightClay
}

// WaterStress relates rainfall to temperature.
func WaterStress(rainfall, temperature float64) float64 {
	return rainfall / (temperature + 1)
}

var featureIndex = func() map[string]int {
	m := make(map[string]int, len(domain.NumericFeatures))
	for i, name := range domain.NumericFeatures {
		m[name] = i
	}
	return m
}()

// AnnualRow is one (county, year) training example. Features follow
// domain.NumericFeatures; missing values are NaN.
type AnnualRow struct {
	County   string
	Year     int
	Features []float64
	Yield    float64
}

// Feature returns the named feature, or NaN if the name is unknown.
func (r AnnualRow) Feature(name string) float64 {
	i, ok := featureIndex[name]
	if !ok || i >= len(r.Features) {
		return math.NaN()
	}
	return r.Features[i]
}

func (r *AnnualRow) set(name string, v float64) {
	r.Features[featureIndex[name]] = v
}

// Numeric returns the features keyed by name.
func (r AnnualRow) Numeric() map[string]float64 {
	out := make(map[string]float64, len(r.Features))
	for i, name := range domain.NumericFeatures {
		out[name] = r.Features[i]
	}
	return out
}

type annualAcc struct {
	precip, temp, humidity, ph, oc, clay, yield []float64
}

func appendValue(dst []float64, p *float64) []float64 {
	if p == nil {
		return dst
	}
	return append(dst, *p)
}

// AggregateAnnual collapses master rows to the (county, year) grain.
// Rainfall is the sum of monthly precipitation; standard deviations are
// sample deviations and need at least two months. Growing season counts
// months whose precipitation exceeds growingRainMM (50 when zero). Rows are
// sorted by county and year.
func AggregateAnnual(rows []domain.MasterRow, growingRainMM float64) []AnnualRow {
	if growingRainMM <= 0 {
		growingRainMM = DefaultGrowingRainMM
	}
	type key struct {
		county string
		year   int
	}
	groups := make(map[key]*annualAcc)
	for i := range rows {
		r := &rows[i]
		k := key{r.County, r.Year}
		acc, ok := groups[k]
		if !ok {
			acc = &annualAcc{}
			groups[k] = acc
		}
		acc.precip = appendValue(acc.precip, r.Precipitation)
		acc.temp = appendValue(acc.temp, r.Temperature)
		acc.humidity = appendValue(acc.humidity, r.Humidity)
		acc.ph = appendValue(acc.ph, r.SoilValue("pH_H2O"))
		acc.oc = appendValue(acc.oc, r.SoilValue("Organic_Carbon"))
		acc.clay = appendValue(acc.clay, r.SoilValue("Clay"))
		acc.yield = appendValue(acc.yield, r.MaizeYield())
	}

	out := make([]AnnualRow, 0, len(groups))
	for k, acc := range groups {
		row := AnnualRow{
			County:   k.county,
			Year:     k.year,
			Features: make([]float64, len(domain.NumericFeatures)),
			Yield:    mean(acc.yield),
		}
		annual := math.NaN()
		growing := math.NaN()
		if len(acc.precip) > 0 {
			annual = floats.Sum(acc.precip)
			growing = 0
			for _, p := range acc.precip {
				if p > growingRainMM {
					growing++
				}
			}
		}
		rainStd, tempStd, humStd := sampleStd(acc.precip), sampleStd(acc.temp), sampleStd(acc.humidity)
		avgTemp := mean(acc.temp)
		ph, oc, clay := mean(acc.ph), mean(acc.oc), mean(acc.clay)

		row.set(domain.FeatAnnualRainfall, annual)
		row.set(domain.FeatAvgRainfall, mean(acc.precip))
		row.set(domain.FeatRainfallStd, rainStd)
		row.set(domain.FeatAvgTemperature, avgTemp)
		row.set(domain.FeatTemperatureStd, tempStd)
		row.set(domain.FeatAvgHumidity, mean(acc.humidity))
		row.set(domain.FeatHumidityStd, humStd)
		row.set(domain.FeatSoilPH, ph)
		row.set(domain.FeatSoilOrganicCarbon, oc)
		row.set(domain.FeatSoilClay, clay)
		row.set(domain.FeatGrowingSeason, growing)
		row.set(domain.FeatWaterStressIndex, WaterStress(annual, avgTemp))
		row.set(domain.FeatSoilQualityScore, SoilQuality(ph, oc, clay))
		row.set(domain.FeatClimateVariability, rainStd+tempStd+humStd)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].County != out[j].County {
			return out[i].County < out[j].County
		}
		return out[i].Year < out[j].Year
	})
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

func sampleStd(v []float64) float64 {
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

// YieldBand is the inclusive range of plausible yields in t/ha.
type YieldBand struct {
	Min float64
	Max float64
}

// DefaultYieldBand returns the realistic range for Kenyan maize.
func DefaultYieldBand() YieldBand {
	return YieldBand{Min: 0.8, Max: 5.0}
}

// Removal counts rows dropped by FilterYield, by reason. A row outside both
// the IQR fence and the band is counted once, as out of band.
type Removal struct {
	MissingTarget int `json:"missing_target"`
	OutOfBand     int `json:"out_of_band"`
	Outlier       int `json:"iqr_outlier"`
}

// Total is the number of rows removed.
func (r Removal) Total() int {
	return r.MissingTarget + r.OutOfBand + r.Outlier
}

// AsMap returns the counts keyed by reason.
func (r Removal) AsMap() map[string]int {
	return map[string]int{
		"missing_target": r.MissingTarget,
		"out_of_band":    r.OutOfBand,
		"iqr_outlier":    r.Outlier,
	}
}

// FilterYield drops rows with a missing target, then keeps rows whose yield
// is inside band and inside [Q1 - 1.5 IQR, Q3 + 1.5 IQR]. Quartiles are
// computed over the non-missing targets by linear interpolation. Both
// bounds are inclusive.
func FilterYield(rows []AnnualRow, band YieldBand) ([]AnnualRow, Removal) {
	var rm Removal
	present := make([]AnnualRow, 0, len(rows))
	for _, r := range rows {
		if math.IsNaN(r.Yield) {
			rm.MissingTarget++
			continue
		}
		present = append(present, r)
	}
	if len(present) == 0 {
		return nil, rm
	}

	ys := make([]float64, len(present))
	for i, r := range present {
		ys[i] = r.Yield
	}
	sort.Float64s(ys)
	q1, q3 := quantile(ys, 0.25), quantile(ys, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	kept := make([]AnnualRow, 0, len(present))
	for _, r := range present {
		switch {
		case r.Yield < band.Min || r.Yield > band.Max:
			rm.OutOfBand++
		case r.Yield < lo || r.Yield > hi:
			rm.Outlier++
		default:
			kept = append(kept, r)
		}
	}
	return kept, rm
}

// quantile interpolates linearly between closest ranks of sorted data
// (the h = (n-1)p definition).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// ImputeMean replaces NaN features with the column mean over rows that have
// the value. Columns with no values at all are set to 0 and their names
// returned.
func ImputeMean(rows []AnnualRow) (empty []string) {
	for j, name := range domain.NumericFeatures {
		var sum float64
		var n int
		for _, r := range rows {
			if v := r.Features[j]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		fill := 0.0
		if n > 0 {
			fill = sum / float64(n)
		} else {
			empty = append(empty, name)
		}
		for i := range rows {
			if math.IsNaN(rows[i].Features[j]) {
				rows[i].Features[j] = fill
			}
		}
	}
	return empty
}
