package domain

import "time"

// Irrigation flag values.
const (
	IrrigationYes     = "Yes"
	IrrigationNo      = "No"
	IrrigationUnknown = "Unknown"
)

// HourlyObservation is one hourly weather record for a county. Measured
// fields are nil when the upstream archive has no value for the hour.
type HourlyObservation struct {
	County             string
	Time               time.Time
	Latitude           float64
	Longitude          float64
	Temperature        *float64
	Humidity           *float64
	Pressure           *float64
	Evapotranspiration *float64
	Precipitation      *float64

	// Derived by DeriveHourly.
	WaterStressIndex *float64
	IrrigationNeeded string
	IrrigationVolume *float64
	CropYieldImpact  *float64
	HeatStressDays   *float64
}

// IrrigationDecision is the outcome of the irrigation rule for one record.
type IrrigationDecision struct {
	Needed         string
	VolumeLitersHa float64
	ImpactPercent  float64
}

// DeriveHourly fills the derived stress, irrigation and heat fields of obs.
// Records missing any stress input keep nil stress fields and an Unknown
// irrigation flag.
func DeriveHourly(obs HourlyObservation, h Heuristics) HourlyObservation {
	obs.WaterStressIndex = nil
	obs.IrrigationVolume = nil
	obs.CropYieldImpact = nil
	obs.IrrigationNeeded = IrrigationUnknown
	obs.HeatStressDays = nil

	if obs.Temperature != nil {
		obs.HeatStressDays = Float(HeatStress(*obs.Temperature, h.HeatStressThreshold))
	}

	stress, ok := WaterStressIndex(obs.Temperature, obs.Evapotranspiration, obs.Precipitation, obs.Humidity, h.Stress)
	if !ok {
		return obs
	}
	d := DecideIrrigation(*obs.Precipitation, stress, h.Irrigation)
	obs.WaterStressIndex = Float(stress)
	obs.IrrigationNeeded = d.Needed
	obs.IrrigationVolume = Float(d.VolumeLitersHa)
	obs.CropYieldImpact = Float(d.ImpactPercent)
	return obs
}

// WaterStressIndex computes the heuristic hourly stress score. The second
// result is false when any input is missing.
func WaterStressIndex(temp, et, rain, humidity *float64, s StressHeuristics) (float64, bool) {
	if temp == nil || et == nil || rain == nil || humidity == nil {
		return 0, false
	}
	if *rain <= 0 {
		return s.Max, true
	}

	stress := s.Base
	if *temp > s.TempThreshold {
		stress += min(s.TempCap, (*temp-s.TempThreshold)*s.TempSlope)
	}
	if *et > s.ETThreshold {
		stress += min(s.ETCap, (*et-s.ETThreshold)*s.ETSlope)
	}
	if *rain < s.RainThreshold {
		stress += min(s.RainCap, (s.RainThreshold-*rain)*s.RainSlope)
	}
	if *humidity < s.HumidityThreshold {
		stress += (s.HumidityThreshold - *humidity) * s.HumiditySlope
	}
	return Clamp(stress, s.Base, s.Max), true
}

// DecideIrrigation applies the rainfall/stress rule and picks the first
// matching volume tier.
func DecideIrrigation(rain, stress float64, ih IrrigationHeuristics) IrrigationDecision {
	if rain >= ih.MaxRainfall || stress <= ih.MinStress || len(ih.Tiers) == 0 {
		return IrrigationDecision{Needed: IrrigationNo}
	}
	last := len(ih.Tiers) - 1
	for i, t := range ih.Tiers {
		if i == last || stress > t.MinStress {
			return IrrigationDecision{
				Needed:         IrrigationYes,
				VolumeLitersHa: t.VolumeLitersHa,
				ImpactPercent:  t.ImpactPercent,
			}
		}
	}
	return IrrigationDecision{Needed: IrrigationNo}
}

// HeatStress returns 1 for an hour above the threshold temperature, else 0.
// Monthly sums of this value count stressed hours, not distinct days.
func HeatStress(temp, threshold float64) float64 {
	if temp > threshold {
		return 1
	}
	return 0
}

// CoverageRatio is the fraction of expected hourly records present.
func CoverageRatio(records, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return float64(records) / float64(expected)
}
