package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthly(county string, year, month int) MonthlyAggregate {
	return MonthlyAggregate{
		MonthKey:         MonthKey{County: county, Year: year, Month: month},
		Temperature:      f(22),
		Precipitation:    f(80),
		WaterStressIndex: f(0.8),
		CropYieldImpact:  f(15),
		IrrigationNeeded: IrrigationYes,
		ObservationHours: 720,
	}
}

func TestBuildMaster_LeftJoin(t *testing.T) {
	h := DefaultHeuristics()
	base := []MonthlyAggregate{
		monthly("Nakuru", 2020, 2),
		monthly("Nakuru", 2020, 1),
		monthly("Kitui", 2021, 1),
		monthly("Atlantis", 2020, 1),
	}
	src := MasterSources{
		Yield: []YieldRecord{
			{County: "Nakuru", Year: 2020, YieldTonnesHa: f(2.4)},
			{County: "Nakuru", Year: 2020, YieldTonnesHa: f(9.9)},
			{County: "Bomet", Year: 2020, YieldTonnesHa: f(1.9)},
		},
		Soil: []SoilProfile{
			{County: "Nakuru", Values: map[string]*float64{"pH_H2O": f(6.1)}},
		},
		Rainfall: []RainfallSample{
			{MonthKey: MonthKey{"Kitui", 2021, 1}, RainfallMM: 42},
			{MonthKey: MonthKey{"Turkana", 2021, 1}, RainfallMM: 3},
		},
	}

	rows, report, err := BuildMaster(base, src, h)
	require.NoError(t, err)
	require.Len(t, rows, 3, "one row per recognized base row")

	assert.Equal(t, MonthKey{"Kitui", 2021, 1}, rows[0].MonthKey)
	assert.Equal(t, MonthKey{"Nakuru", 2020, 1}, rows[1].MonthKey)
	assert.Equal(t, MonthKey{"Nakuru", 2020, 2}, rows[2].MonthKey)

	assert.Nil(t, rows[0].Yield)
	assert.Nil(t, rows[0].Soil)
	require.NotNil(t, rows[0].Rainfall)
	assert.Equal(t, 42.0, *rows[0].Rainfall)

	for _, r := range rows[1:] {
		require.NotNil(t, r.MaizeYield(), "yield broadcast to every month of the year")
		assert.Equal(t, 2.4, *r.MaizeYield())
		require.NotNil(t, r.SoilValue("pH_H2O"))
		assert.Equal(t, 6.1, *r.SoilValue("pH_H2O"))
		assert.Nil(t, r.Rainfall)
	}

	assert.Equal(t, 3, report.BaseRows)
	assert.Equal(t, 1, report.UnknownCounty)
	assert.Equal(t, 2, report.WithYield)
	assert.Equal(t, 2, report.WithSoil)
	assert.Equal(t, 1, report.WithRainfall)
	assert.Equal(t, 1, report.DuplicateYield)
}

func TestBuildMaster_DuplicateBaseKey(t *testing.T) {
	base := []MonthlyAggregate{monthly("Kisumu", 2020, 5), monthly("Kisumu", 2020, 5)}
	_, _, err := BuildMaster(base, MasterSources{}, DefaultHeuristics())
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestBuildMaster_NoOptionalSources(t *testing.T) {
	base := []MonthlyAggregate{monthly("Kisumu", 2020, 5)}
	rows, _, err := BuildMaster(base, MasterSources{}, DefaultHeuristics())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].MaizeYield())
	assert.Nil(t, rows[0].SoilValue("Clay"))
	assert.Equal(t, "May", rows[0].Dashboard.MonthName)
}

func TestApplyComposites(t *testing.T) {
	c := DefaultHeuristics().Composite

	tests := []struct {
		name                                 string
		stress, impact                       *float64
		flag                                 string
		wantScarcity, wantRisk, wantPriority float64
	}{
		{"all inputs", f(0.8), f(15), IrrigationYes, 80, 15, 75},
		{"no irrigation", f(0.73), f(0), IrrigationNo, 73, 0, 25},
		{"missing inputs use defaults", nil, nil, IrrigationUnknown, 50, 25, 50},
		{"unrecognized flag", f(0.75), f(10), "", 75, 10, 50},
		{"scores are clamped", f(1.5), f(120), IrrigationYes, 100, 100, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := MasterRow{MonthlyAggregate: MonthlyAggregate{
				WaterStressIndex: tt.stress,
				CropYieldImpact:  tt.impact,
				IrrigationNeeded: tt.flag,
			}}
			ApplyComposites(&row, c)
			assert.InDelta(t, tt.wantScarcity, row.WaterScarcityScore, 1e-9)
			assert.InDelta(t, tt.wantRisk, row.AgriculturalRiskIndex, 1e-9)
			assert.InDelta(t, tt.wantPriority, row.IrrigationPriorityScore, 1e-9)
		})
	}
}
