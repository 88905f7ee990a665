package domain

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Irrigation vote policies for collapsing hourly decisions into a monthly flag.
const (
	VoteAny      = "any"
	VoteMajority = "majority"
)

// StressHeuristics parameterizes the hourly water-stress index.
type StressHeuristics struct {
	Base float64 `yaml:"base"`
	Max  float64 `yaml:"max"`

	TempThreshold float64 `yaml:"temp_threshold"`
	TempSlope     float64 `yaml:"temp_slope"`
	TempCap       float64 `yaml:"temp_cap"`

	ETThreshold float64 `yaml:"et_threshold"`
	ETSlope     float64 `yaml:"et_slope"`
	ETCap       float64 `yaml:"et_cap"`

	RainThreshold float64 `yaml:"rain_threshold"`
	RainSlope     float64 `yaml:"rain_slope"`
	RainCap       float64 `yaml:"rain_cap"`

	HumidityThreshold float64 `yaml:"humidity_threshold"`
	HumiditySlope     float64 `yaml:"humidity_slope"`
}

// IrrigationTier maps a stress level to a water volume and yield impact.
// A tier applies when stress is strictly above MinStress.
type IrrigationTier struct {
	MinStress      float64 `yaml:"min_stress"`
	VolumeLitersHa float64 `yaml:"volume_liters_ha"`
	ImpactPercent  float64 `yaml:"impact_percent"`
}

// IrrigationHeuristics parameterizes the irrigation-need decision.
type IrrigationHeuristics struct {
	MaxRainfall float64 `yaml:"max_rainfall"`
	MinStress   float64 `yaml:"min_stress"`
	// Tiers are checked in order; the last tier is the fallback and its
	// MinStress is ignored.
	Tiers []IrrigationTier `yaml:"tiers"`
	Vote  string           `yaml:"vote"`
}

// DashboardHeuristics parameterizes the derived monthly dashboard metrics.
type DashboardHeuristics struct {
	WaterAvailabilityBase  float64   `yaml:"water_availability_base"`
	WaterAvailabilitySlope float64   `yaml:"water_availability_slope"`
	CropLossBase           float64   `yaml:"crop_loss_base"`
	CropLossSlope          float64   `yaml:"crop_loss_slope"`
	WaterSavingsRatio      float64   `yaml:"water_savings_ratio"`
	HeatSeverityPerDay     float64   `yaml:"heat_severity_per_day"`
	ClimateZoneBounds      []float64 `yaml:"climate_zone_bounds"`
}

// CompositeHeuristics holds the composite-score defaults used when an input
// is missing.
type CompositeHeuristics struct {
	WaterScarcityDefault    float64 `yaml:"water_scarcity_default"`
	AgriculturalRiskDefault float64 `yaml:"agricultural_risk_default"`
	PriorityYes             float64 `yaml:"priority_yes"`
	PriorityNo              float64 `yaml:"priority_no"`
	PriorityUnknown         float64 `yaml:"priority_unknown"`
}

// Heuristics gathers every tunable constant of the pipeline.
type Heuristics struct {
	Stress              StressHeuristics     `yaml:"stress"`
	Irrigation          IrrigationHeuristics `yaml:"irrigation"`
	HeatStressThreshold float64              `yaml:"heat_stress_threshold"`
	ExpectedHours       int                  `yaml:"expected_hours"`
	MinCoverage         float64              `yaml:"min_coverage"`
	Dashboard           DashboardHeuristics  `yaml:"dashboard"`
	Composite           CompositeHeuristics  `yaml:"composite"`
}

// DefaultHeuristics returns the calibrated defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Stress: StressHeuristics{
			Base:              0.73,
			Max:               0.86,
			TempThreshold:     25,
			TempSlope:         0.06,
			TempCap:           0.3,
			ETThreshold:       5,
			ETSlope:           0.06,
			ETCap:             0.3,
			RainThreshold:     50,
			RainSlope:         0.008,
			RainCap:           0.4,
			HumidityThreshold: 60,
			HumiditySlope:     0.002,
		},
		Irrigation: IrrigationHeuristics{
			MaxRainfall: 10,
			MinStress:   0.75,
			Tiers: []IrrigationTier{
				{MinStress: 0.80, VolumeLitersHa: 4450, ImpactPercent: 20},
				{MinStress: 0.78, VolumeLitersHa: 4300, ImpactPercent: 15},
				{VolumeLitersHa: 3800, ImpactPercent: 10},
			},
			Vote: VoteAny,
		},
		HeatStressThreshold: 30,
		ExpectedHours:       43824,
		MinCoverage:         0.8,
		Dashboard: DashboardHeuristics{
			WaterAvailabilityBase:  345,
			WaterAvailabilitySlope: 200,
			CropLossBase:           15,
			CropLossSlope:          30,
			WaterSavingsRatio:      0.2,
			HeatSeverityPerDay:     6.25,
			ClimateZoneBounds:      []float64{30, 25, 20, 15},
		},
		Composite: CompositeHeuristics{
			WaterScarcityDefault:    50,
			AgriculturalRiskDefault: 25,
			PriorityYes:             75,
			PriorityNo:              25,
			PriorityUnknown:         50,
		},
	}
}

// LoadHeuristics reads a YAML file over the defaults. Keys absent from the
// file keep their default values. An empty path returns the defaults.
func LoadHeuristics(path string) (Heuristics, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read heuristics: %w", err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("parse heuristics %s: %w", path, err)
	}
	if err := h.Validate(); err != nil {
		return h, fmt.Errorf("heuristics %s: %w", path, err)
	}
	return h, nil
}

// Validate checks internal consistency of the heuristics.
func (h Heuristics) Validate() error {
	if h.Stress.Base > h.Stress.Max {
		return fmt.Errorf("stress.base %.3f exceeds stress.max %.3f", h.Stress.Base, h.Stress.Max)
	}
	if len(h.Irrigation.Tiers) == 0 {
		return errors.New("irrigation.tiers must not be empty")
	}
	for i := 1; i < len(h.Irrigation.Tiers)-1; i++ {
		if h.Irrigation.Tiers[i].MinStress > h.Irrigation.Tiers[i-1].MinStress {
			return fmt.Errorf("irrigation.tiers must be ordered by descending min_stress (tier %d)", i)
		}
	}
	switch h.Irrigation.Vote {
	case VoteAny, VoteMajority:
	default:
		return fmt.Errorf("irrigation.vote must be %q or %q, got %q", VoteAny, VoteMajority, h.Irrigation.Vote)
	}
	if h.ExpectedHours <= 0 {
		return errors.New("expected_hours must be positive")
	}
	if h.MinCoverage < 0 || h.MinCoverage > 1 {
		return errors.New("min_coverage must be within [0, 1]")
	}
	if len(h.Dashboard.ClimateZoneBounds) != len(climateZones)-1 {
		return fmt.Errorf("dashboard.climate_zone_bounds needs %d values", len(climateZones)-1)
	}
	return nil
}
