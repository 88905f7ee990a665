package domain

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hour(day, h int, temp, hum, et, rain *float64) HourlyObservation {
	return HourlyObservation{
		County:             "Makueni",
		Time:               time.Date(2021, 3, day, h, 0, 0, 0, time.UTC),
		Temperature:        temp,
		Humidity:           hum,
		Pressure:           f(880),
		Evapotranspiration: et,
		Precipitation:      rain,
	}
}

func derive(h Heuristics, obs ...HourlyObservation) []HourlyObservation {
	out := make([]HourlyObservation, len(obs))
	for i, o := range obs {
		out[i] = DeriveHourly(o, h)
	}
	return out
}

func TestAggregateMonthly_IrrigationVote(t *testing.T) {
	h := DefaultHeuristics()
	obs := derive(h,
		hour(1, 0, f(24), f(70), f(0.2), f(0)),
		hour(1, 1, f(24), f(70), f(0.2), f(20)),
		hour(1, 2, f(24), f(70), f(0.2), f(80)),
	)

	rows := AggregateMonthly("Makueni", obs, h)
	require.Len(t, rows, 1)
	assert.Equal(t, IrrigationYes, rows[0].IrrigationNeeded)
	require.NotNil(t, rows[0].Precipitation)
	assert.InDelta(t, 100, *rows[0].Precipitation, 1e-9)
	assert.Equal(t, 3, rows[0].ObservationHours)

	h.Irrigation.Vote = VoteMajority
	rows = AggregateMonthly("Makueni", obs, h)
	require.Len(t, rows, 1)
	assert.Equal(t, IrrigationNo, rows[0].IrrigationNeeded)
}

// Three hours of one month: dry and hot, moderate, wet and cool.
func mixedMonth(h Heuristics) []HourlyObservation {
	return derive(h,
		hour(1, 0, f(35), f(50), f(8), f(0)),
		hour(1, 1, f(25), f(70), f(4), f(20)),
		hour(1, 2, f(20), f(80), f(2), f(80)),
	)
}

func TestAggregateMonthly_MixedMonthNeedsIrrigation(t *testing.T) {
	h := DefaultHeuristics()
	obs := mixedMonth(h)
	require.Equal(t, IrrigationYes, obs[0].IrrigationNeeded, "the dry hour trips the rule on its own")

	rows := AggregateMonthly("Makueni", obs, h)
	require.Len(t, rows, 1)
	assert.Equal(t, IrrigationYes, rows[0].IrrigationNeeded)
	require.NotNil(t, rows[0].WaterStressIndex)
	assert.InDelta(t, (0.86+0.86+0.73)/3, *rows[0].WaterStressIndex, 1e-3)

	h.Irrigation.Vote = VoteMajority
	rows = AggregateMonthly("Makueni", obs, h)
	require.Len(t, rows, 1)
	assert.Equal(t, IrrigationNo, rows[0].IrrigationNeeded, "one yes out of three is not a majority")
}

func TestAggregateMonthly_Idempotent(t *testing.T) {
	h := DefaultHeuristics()
	obs := append(mixedMonth(h), derive(h,
		hour(2, 0, f(28), nil, f(6), f(1)),
		hour(3, 5, f(22), f(65), f(3), f(0)),
	)...)
	snapshot := slices.Clone(obs)

	first := AggregateMonthly("Makueni", obs, h)
	second := AggregateMonthly("Makueni", obs, h)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, obs, "input is not modified")
}

func TestAggregateMonthly_SkipsMissing(t *testing.T) {
	h := DefaultHeuristics()
	obs := derive(h,
		hour(1, 0, f(20), nil, f(1), f(2)),
		hour(1, 1, nil, nil, f(3), nil),
		hour(2, 0, f(30), nil, nil, f(4)),
	)

	rows := AggregateMonthly("Makueni", obs, h)
	require.Len(t, rows, 1)
	m := rows[0]

	assert.Equal(t, MonthKey{County: "Makueni", Year: 2021, Month: 3}, m.MonthKey)
	assert.InDelta(t, 25, *m.Temperature, 1e-9)
	assert.Nil(t, m.Humidity, "an all-missing column stays empty")
	assert.InDelta(t, 4, *m.Evapotranspiration, 1e-9)
	assert.InDelta(t, 6, *m.Precipitation, 1e-9)
	assert.InDelta(t, 30, *m.MaxTemperature, 1e-9)
	assert.InDelta(t, 20, *m.MinTemperature, 1e-9)
	assert.Nil(t, m.WaterStressIndex)
	assert.Equal(t, IrrigationUnknown, m.IrrigationNeeded)
	assert.Equal(t, 3, m.ObservationHours)
}

func TestAggregateMonthly_SortedByMonth(t *testing.T) {
	h := DefaultHeuristics()
	obs := []HourlyObservation{
		{Time: time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC), Temperature: f(20)},
		{Time: time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC), Temperature: f(21)},
		{Time: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: f(22)},
	}

	rows := AggregateMonthly("Nakuru", obs, h)
	require.Len(t, rows, 3)
	assert.Equal(t, MonthKey{"Nakuru", 2021, 12}, rows[0].MonthKey)
	assert.Equal(t, MonthKey{"Nakuru", 2022, 1}, rows[1].MonthKey)
	assert.Equal(t, MonthKey{"Nakuru", 2022, 2}, rows[2].MonthKey)
}

func TestVoteIrrigation(t *testing.T) {
	tests := []struct {
		yes, no int
		policy  string
		want    string
	}{
		{0, 0, VoteAny, IrrigationUnknown},
		{1, 9, VoteAny, IrrigationYes},
		{0, 9, VoteAny, IrrigationNo},
		{1, 9, VoteMajority, IrrigationNo},
		{5, 5, VoteMajority, IrrigationNo},
		{6, 5, VoteMajority, IrrigationYes},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VoteIrrigation(tt.yes, tt.no, tt.policy), "yes=%d no=%d %s", tt.yes, tt.no, tt.policy)
	}
}
