package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestWaterStressIndex(t *testing.T) {
	s := DefaultHeuristics().Stress

	tests := []struct {
		name                string
		temp, et, rain, hum *float64
		want                float64
		wantOK              bool
	}{
		{"no rain is maximum stress", f(20), f(1), f(0), f(90), 0.86, true},
		{"negative rain is maximum stress", f(20), f(1), f(-1), f(90), 0.86, true},
		{"benign hour stays at base", f(20), f(3), f(60), f(70), 0.73, true},
		{"temperature adds slope", f(27), f(3), f(60), f(70), 0.85, true},
		{"rain deficit adds slope", f(20), f(3), f(40), f(70), 0.81, true},
		{"dry air adds slope", f(20), f(3), f(60), f(50), 0.75, true},
		{"extreme inputs are clamped", f(100), f(50), f(1), f(0), 0.86, true},
		{"missing temperature", nil, f(3), f(60), f(70), 0, false},
		{"missing evapotranspiration", f(20), nil, f(60), f(70), 0, false},
		{"missing precipitation", f(20), f(3), nil, f(70), 0, false},
		{"missing humidity", f(20), f(3), f(60), nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WaterStressIndex(tt.temp, tt.et, tt.rain, tt.hum, s)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
			if ok {
				assert.GreaterOrEqual(t, got, s.Base)
				assert.LessOrEqual(t, got, s.Max)
			}
		})
	}
}

func TestDecideIrrigation(t *testing.T) {
	ih := DefaultHeuristics().Irrigation

	tests := []struct {
		name       string
		rain       float64
		stress     float64
		wantNeeded string
		wantVolume float64
		wantImpact float64
	}{
		{"severe stress", 5, 0.86, IrrigationYes, 4450, 20},
		{"high stress", 5, 0.79, IrrigationYes, 4300, 15},
		{"moderate stress", 5, 0.76, IrrigationYes, 3800, 10},
		{"stress at threshold", 5, 0.75, IrrigationNo, 0, 0},
		{"rain at threshold", 10, 0.86, IrrigationNo, 0, 0},
		{"wet hour", 40, 0.86, IrrigationNo, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideIrrigation(tt.rain, tt.stress, ih)
			assert.Equal(t, tt.wantNeeded, d.Needed)
			assert.Equal(t, tt.wantVolume, d.VolumeLitersHa)
			assert.Equal(t, tt.wantImpact, d.ImpactPercent)
		})
	}
}

func TestDeriveHourly(t *testing.T) {
	h := DefaultHeuristics()
	ts := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("dry hot hour", func(t *testing.T) {
		obs := DeriveHourly(HourlyObservation{
			County: "Turkana", Time: ts,
			Temperature: f(34), Humidity: f(30), Pressure: f(950),
			Evapotranspiration: f(0.6), Precipitation: f(0),
		}, h)

		require.NotNil(t, obs.WaterStressIndex)
		assert.InDelta(t, 0.86, *obs.WaterStressIndex, 1e-9)
		assert.Equal(t, IrrigationYes, obs.IrrigationNeeded)
		assert.Equal(t, 4450.0, *obs.IrrigationVolume)
		assert.Equal(t, 20.0, *obs.CropYieldImpact)
		assert.Equal(t, 1.0, *obs.HeatStressDays)
	})

	t.Run("missing input leaves derived fields empty", func(t *testing.T) {
		obs := DeriveHourly(HourlyObservation{
			County: "Turkana", Time: ts,
			Temperature: f(22), Humidity: f(30), Precipitation: f(0),
		}, h)

		assert.Nil(t, obs.WaterStressIndex)
		assert.Nil(t, obs.IrrigationVolume)
		assert.Nil(t, obs.CropYieldImpact)
		assert.Equal(t, IrrigationUnknown, obs.IrrigationNeeded)
		require.NotNil(t, obs.HeatStressDays)
		assert.Equal(t, 0.0, *obs.HeatStressDays)
	})

	t.Run("idempotent", func(t *testing.T) {
		in := HourlyObservation{
			County: "Kitui", Time: ts,
			Temperature: f(28), Humidity: f(55), Pressure: f(900),
			Evapotranspiration: f(6), Precipitation: f(3),
		}
		once := DeriveHourly(in, h)
		twice := DeriveHourly(once, h)
		assert.Equal(t, once, twice)
	})
}

func TestHeatStress(t *testing.T) {
	assert.Equal(t, 0.0, HeatStress(30, 30))
	assert.Equal(t, 1.0, HeatStress(30.1, 30))
}

func TestCoverageRatio(t *testing.T) {
	assert.InDelta(t, 0.5, CoverageRatio(21912, 43824), 1e-9)
	assert.Equal(t, 0.0, CoverageRatio(10, 0))
}
