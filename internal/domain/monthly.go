package domain

import (
	"sort"
)

// MonthKey identifies one county-month.
type MonthKey struct {
	County string
	Year   int
	Month  int
}

// Less orders keys by county, year, month.
func (k MonthKey) Less(o MonthKey) bool {
	if k.County != o.County {
		return k.County < o.County
	}
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// MonthlyAggregate is the monthly weather summary of one county.
type MonthlyAggregate struct {
	MonthKey
	Temperature        *float64
	Humidity           *float64
	Pressure           *float64
	Evapotranspiration *float64
	Precipitation      *float64
	WaterStressIndex   *float64
	IrrigationNeeded   string
	IrrigationVolume   *float64
	CropYieldImpact    *float64
	HeatStressDays     *float64
	MaxTemperature     *float64
	MinTemperature     *float64
	ObservationHours   int
}

type monthlyAcc struct {
	temp, humidity, pressure, et, precip, stress, volume, impact, heat accumulator

	hours             int
	yesVotes, noVotes int
}

// AggregateMonthly collapses hourly observations of one county into monthly
// rows sorted by year and month. Observations are expected to carry derived
// fields already (see DeriveHourly). Means and sums skip missing values; a
// column with no values in a month stays nil.
func AggregateMonthly(county string, obs []HourlyObservation, h Heuristics) []MonthlyAggregate {
	groups := make(map[MonthKey]*monthlyAcc)
	for i := range obs {
		o := &obs[i]
		key := MonthKey{County: county, Year: o.Time.Year(), Month: int(o.Time.Month())}
		acc, ok := groups[key]
		if !ok {
			acc = &monthlyAcc{}
			groups[key] = acc
		}
		acc.hours++
		acc.temp.add(o.Temperature)
		acc.humidity.add(o.Humidity)
		acc.pressure.add(o.Pressure)
		acc.et.add(o.Evapotranspiration)
		acc.precip.add(o.Precipitation)
		acc.stress.add(o.WaterStressIndex)
		acc.volume.add(o.IrrigationVolume)
		acc.impact.add(o.CropYieldImpact)
		acc.heat.add(o.HeatStressDays)
		switch o.IrrigationNeeded {
		case IrrigationYes:
			acc.yesVotes++
		case IrrigationNo:
			acc.noVotes++
		}
	}

	out := make([]MonthlyAggregate, 0, len(groups))
	for key, acc := range groups {
		out = append(out, MonthlyAggregate{
			MonthKey:           key,
			Temperature:        acc.temp.mean(),
			Humidity:           acc.humidity.mean(),
			Pressure:           acc.pressure.mean(),
			Evapotranspiration: acc.et.total(),
			Precipitation:      acc.precip.total(),
			WaterStressIndex:   acc.stress.mean(),
			IrrigationNeeded:   VoteIrrigation(acc.yesVotes, acc.noVotes, h.Irrigation.Vote),
			IrrigationVolume:   acc.volume.total(),
			CropYieldImpact:    acc.impact.mean(),
			HeatStressDays:     acc.heat.total(),
			MaxTemperature:     acc.temp.maximum(),
			MinTemperature:     acc.temp.minimum(),
			ObservationHours:   acc.hours,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey.Less(out[j].MonthKey) })
	return out
}

// VoteIrrigation collapses per-record irrigation decisions into one flag.
// With VoteAny a single stressed hour marks the month; with VoteMajority
// strictly more Yes than No votes are required. Unknown when nothing was
// evaluable.
func VoteIrrigation(yes, no int, policy string) string {
	if yes+no == 0 {
		return IrrigationUnknown
	}
	switch policy {
	case VoteMajority:
		if yes > no {
			return IrrigationYes
		}
		return IrrigationNo
	default:
		if yes > 0 {
			return IrrigationYes
		}
		return IrrigationNo
	}
}
