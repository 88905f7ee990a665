package domain

import "time"

var climateZones = []string{"Hot", "Warm", "Moderate", "Cool", "Cold"}

// DashboardMetrics are presentation-oriented indicators derived from one
// monthly aggregate.
type DashboardMetrics struct {
	MonthName              string
	TemperatureVariability *float64
	ClimateZone            string
	WaterAvailability      float64
	CropLossRisk           float64
	IrrigationEfficiency   *float64
	WaterSavings           *float64
	HeatStressSeverity     *float64
}

// DeriveDashboard computes the dashboard indicators of a month. Water
// availability and crop-loss risk fall back to their base values when the
// stress index is missing.
func DeriveDashboard(m MonthlyAggregate, h DashboardHeuristics, s StressHeuristics) DashboardMetrics {
	d := DashboardMetrics{
		MonthName:         MonthName(m.Month),
		ClimateZone:       ClimateZone(m.Temperature, h.ClimateZoneBounds),
		WaterAvailability: h.WaterAvailabilityBase,
		CropLossRisk:      h.CropLossBase,
	}
	if m.MaxTemperature != nil && m.MinTemperature != nil {
		d.TemperatureVariability = Float(*m.MaxTemperature - *m.MinTemperature)
	}
	if m.WaterStressIndex != nil {
		wsi := *m.WaterStressIndex
		d.WaterAvailability = h.WaterAvailabilityBase - (wsi-s.Base)*h.WaterAvailabilitySlope
		d.CropLossRisk = Clamp(wsi*h.CropLossSlope+h.CropLossBase, 0, 100)
		d.IrrigationEfficiency = Float(Clamp(100-wsi*100, 0, 100))
	}
	if m.IrrigationVolume != nil {
		d.WaterSavings = Float(*m.IrrigationVolume * h.WaterSavingsRatio)
	}
	if m.HeatStressDays != nil {
		d.HeatStressSeverity = Float(Clamp(*m.HeatStressDays*h.HeatSeverityPerDay, 0, 100))
	}
	return d
}

// ClimateZone labels a mean monthly temperature using descending bounds
// (Hot, Warm, Moderate, Cool, Cold). Empty when the temperature is missing.
func ClimateZone(temp *float64, bounds []float64) string {
	if temp == nil {
		return ""
	}
	for i, b := range bounds {
		if i < len(climateZones)-1 && *temp > b {
			return climateZones[i]
		}
	}
	return climateZones[len(climateZones)-1]
}

// MonthName returns the English name of a 1-based month, or "Unknown".
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return "Unknown"
	}
	return time.Month(month).String()
}
