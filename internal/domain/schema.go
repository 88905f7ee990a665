package domain

// Key columns shared by every monthly table.
const (
	ColCounty = "County"
	ColYear   = "Year"
	ColMonth  = "Month"
)

// Hourly weather file columns.
const (
	ColDate               = "Date"
	ColTime               = "Time"
	ColDay                = "Day"
	ColHour               = "Hour"
	ColLatitude           = "Latitude"
	ColLongitude          = "Longitude"
	ColTemperature        = "Temperature_C"
	ColHumidity           = "Humidity_Percent"
	ColPressure           = "Pressure_hPa"
	ColEvapotranspiration = "Evapotranspiration_mm"
	ColPrecipitation      = "Precipitation_mm"
	ColWaterStressIndex   = "Water_Stress_Index"
	ColIrrigationNeeded   = "Irrigation_Needed"
	ColIrrigationVolume   = "Irrigation_Volume_Liters_Ha"
	ColCropYieldImpact    = "Crop_Yield_Impact_Percent"
	ColHeatStressDays     = "Heat_Stress_Days"
)

// WeatherColumns is the exact header of an hourly weather file.
var WeatherColumns = []string{
	ColCounty, ColDate, ColTime, ColYear, ColMonth, ColDay, ColHour,
	ColLatitude, ColLongitude,
	ColTemperature, ColHumidity, ColPressure, ColEvapotranspiration, ColPrecipitation,
	ColWaterStressIndex, ColIrrigationNeeded, ColIrrigationVolume, ColCropYieldImpact, ColHeatStressDays,
}

// Monthly weather aggregate columns.
const (
	ColMonthlyTemperature        = "Monthly_Temperature_C"
	ColMonthlyHumidity           = "Monthly_Humidity_Percent"
	ColMonthlyPressure           = "Monthly_Pressure_hPa"
	ColMonthlyEvapotranspiration = "Monthly_Evapotranspiration_mm"
	ColMonthlyPrecipitation      = "Monthly_Precipitation_mm"
	ColMonthlyWaterStress        = "Monthly_Water_Stress_Index"
	ColMonthlyIrrigationNeeded   = "Monthly_Irrigation_Needed"
	ColMonthlyIrrigationVolume   = "Monthly_Irrigation_Volume_Liters_Ha"
	ColMonthlyCropImpact         = "Monthly_Crop_Yield_Impact_Percent"
	ColMonthlyHeatStressDays     = "Monthly_Heat_Stress_Days"
	ColMonthlyMaxTemperature     = "Monthly_Max_Temperature_C"
	ColMonthlyMinTemperature     = "Monthly_Min_Temperature_C"
	ColObservationHours          = "Observation_Hours"
)

// Dashboard metric columns.
const (
	ColMonthName              = "Month_Name"
	ColTemperatureVariability = "Temperature_Variability_C"
	ColClimateZone            = "Climate_Zone"
	ColWaterAvailability      = "Water_Availability_m3_Person"
	ColCropLossRisk           = "Crop_Loss_Risk_Percent"
	ColIrrigationEfficiency   = "Irrigation_Efficiency_Score"
	ColWaterSavings           = "Water_Savings_Potential_Liters_Ha"
	ColHeatStressSeverity     = "Heat_Stress_Severity_Score"
)

// Yield file and joined yield columns.
const (
	ColAreaHa          = "Area_Ha"
	ColProductionTons  = "Production_Tons"
	ColYieldTonnesHa   = "Yield_tonnes_ha"
	ColMaizeArea       = "Maize_Area_Ha"
	ColMaizeProduction = "Maize_Production_Tons"
	ColMaizeYield      = "Maize_Yield_tonnes_ha"
)

// YieldColumns is the required header of the annual yield file.
var YieldColumns = []string{ColCounty, ColYear, ColAreaHa, ColProductionTons, ColYieldTonnesHa}

// Soil survey columns. The joined form carries a "Soil_" prefix.
const (
	ColCountry       = "Country"
	SoilColumnPrefix = "Soil_"
)

// SoilProperties lists the numeric soil survey columns averaged per county,
// in output order.
var SoilProperties = []string{
	"Latitude", "Longitude", "pH_H2O", "Organic_Carbon", "Clay", "Sand", "Silt",
	"CEC", "CaCO3", "Total_Nitrogen", "Bulk_Density",
}

// Joined soil columns read back by the trainer.
const (
	ColSoilPH            = "Soil_pH_H2O"
	ColSoilOrganicCarbon = "Soil_Organic_Carbon"
	ColSoilClay          = "Soil_Clay"
)

// Raster rainfall column.
const ColMonthlyRainfall = "Monthly_Rainfall_mm"

// Composite score columns.
const (
	ColWaterScarcityScore      = "Water_Scarcity_Score"
	ColAgriculturalRiskIndex   = "Agricultural_Risk_Index"
	ColIrrigationPriorityScore = "Irrigation_Priority_Score"
)

// SoilColumns returns the joined soil column names in output order.
func SoilColumns() []string {
	cols := make([]string, len(SoilProperties))
	for i, p := range SoilProperties {
		cols[i] = SoilColumnPrefix + p
	}
	return cols
}

// MasterColumns returns the master dataset header in output order.
func MasterColumns() []string {
	cols := []string{
		ColCounty, ColYear, ColMonth,
		ColMonthlyTemperature, ColMonthlyHumidity, ColMonthlyPressure,
		ColMonthlyEvapotranspiration, ColMonthlyPrecipitation, ColMonthlyWaterStress,
		ColMonthlyIrrigationNeeded, ColMonthlyIrrigationVolume, ColMonthlyCropImpact,
		ColMonthlyHeatStressDays, ColMonthlyMaxTemperature, ColMonthlyMinTemperature,
		ColObservationHours,
		ColMonthName, ColTemperatureVariability, ColClimateZone, ColWaterAvailability,
		ColCropLossRisk, ColIrrigationEfficiency, ColWaterSavings, ColHeatStressSeverity,
		ColMaizeArea, ColMaizeProduction, ColMaizeYield,
	}
	cols = append(cols, SoilColumns()...)
	cols = append(cols, ColMonthlyRainfall,
		ColWaterScarcityScore, ColAgriculturalRiskIndex, ColIrrigationPriorityScore)
	return cols
}

// Annual training features, one row per (county, year).
const (
	FeatAnnualRainfall     = "Annual_Rainfall_mm"
	FeatAvgRainfall        = "Avg_Rainfall_mm"
	FeatRainfallStd        = "Rainfall_Std_mm"
	FeatAvgTemperature     = "Avg_Temperature_C"
	FeatTemperatureStd     = "Temperature_Std_C"
	FeatAvgHumidity        = "Avg_Humidity_Percent"
	FeatHumidityStd        = "Humidity_Std_Percent"
	FeatSoilPH             = "Soil_pH"
	FeatSoilOrganicCarbon  = "Soil_Organic_Carbon"
	FeatSoilClay           = "Soil_Clay_Content"
	FeatGrowingSeason      = "Growing_Season_Months"
	FeatWaterStressIndex   = "Water_Stress_Index"
	FeatSoilQualityScore   = "Soil_Quality_Score"
	FeatClimateVariability = "Climate_Variability"
	CountyFeaturePrefix    = "County_"
)

// NumericFeatures is the ordered numeric part of the model input. County
// one-hot columns follow it.
var NumericFeatures = []string{
	FeatAnnualRainfall, FeatAvgRainfall, FeatRainfallStd,
	FeatAvgTemperature, FeatTemperatureStd,
	FeatAvgHumidity, FeatHumidityStd,
	FeatSoilPH, FeatSoilOrganicCarbon, FeatSoilClay,
	FeatGrowingSeason, FeatWaterStressIndex, FeatSoilQualityScore, FeatClimateVariability,
}
