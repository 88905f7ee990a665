package training

import (
	"math"
	"sort"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// CountyProfile summarizes the monthly history of one county. It supplies
// the auxiliary climate and soil features a prediction request does not
// carry. Nil fields had no data; values are rounded to two decimals.
type CountyProfile struct {
	County             string   `json:"county"`
	AvgTemperature     *float64 `json:"avg_temperature_c"`
	TemperatureStd     *float64 `json:"temperature_std_c"`
	AvgHumidity        *float64 `json:"avg_humidity_percent"`
	HumidityStd        *float64 `json:"humidity_std_percent"`
	AvgPrecipitation   *float64 `json:"avg_precipitation_mm"`
	PrecipitationStd   *float64 `json:"precipitation_std_mm"`
	SoilClay           *float64 `json:"soil_clay"`
	SoilPH             *float64 `json:"soil_ph"`
	SoilOrganicCarbon  *float64 `json:"soil_organic_carbon"`
	MaizeYield         *float64 `json:"maize_yield_tonnes_ha"`
	ClimateVariability *float64 `json:"climate_variability"`
	SoilQualityScore   *float64 `json:"soil_quality_score"`
	Months             int      `json:"months"`
}

// CountyProfiles computes one profile per county present in rows, keyed by
// county name. Climate variability is the sum of the three rounded standard
// deviations and soil quality uses the rounded means, so either is nil
// when one of its inputs is.
func CountyProfiles(rows []domain.MasterRow) map[string]CountyProfile {
	groups := make(map[string]*annualAcc)
	months := make(map[string]int)
	for i := range rows {
		r := &rows[i]
		acc, ok := groups[r.County]
		if !ok {
			acc = &annualAcc{}
			groups[r.County] = acc
		}
		months[r.County]++
		acc.precip = appendValue(acc.precip, r.Precipitation)
		acc.temp = appendValue(acc.temp, r.Temperature)
		acc.humidity = appendValue(acc.humidity, r.Humidity)
		acc.ph = appendValue(acc.ph, r.SoilValue("pH_H2O"))
		acc.oc = appendValue(acc.oc, r.SoilValue("Organic_Carbon"))
		acc.clay = appendValue(acc.clay, r.SoilValue("Clay"))
		acc.yield = appendValue(acc.yield, r.MaizeYield())
	}

	out := make(map[string]CountyProfile, len(groups))
	for county, acc := range groups {
		p := CountyProfile{
			County:            county,
			Months:            months[county],
			AvgTemperature:    rounded(mean(acc.temp)),
			TemperatureStd:    rounded(sampleStd(acc.temp)),
			AvgHumidity:       rounded(mean(acc.humidity)),
			HumidityStd:       rounded(sampleStd(acc.humidity)),
			AvgPrecipitation:  rounded(mean(acc.precip)),
			PrecipitationStd:  rounded(sampleStd(acc.precip)),
			SoilClay:          rounded(mean(acc.clay)),
			SoilPH:            rounded(mean(acc.ph)),
			SoilOrganicCarbon: rounded(mean(acc.oc)),
			MaizeYield:        rounded(mean(acc.yield)),
		}
		p.ClimateVariability = domain.Float(
			domain.Value(p.TemperatureStd) + domain.Value(p.HumidityStd) + domain.Value(p.PrecipitationStd))
		p.SoilQualityScore = domain.Float(
			SoilQuality(domain.Value(p.SoilPH), domain.Value(p.SoilOrganicCarbon), domain.Value(p.SoilClay)))
		out[county] = p
	}
	return out
}

// SortedCounties returns the profile keys in alphabetical order.
func SortedCounties(profiles map[string]CountyProfile) []string {
	out := make([]string, 0, len(profiles))
	for c := range profiles {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func rounded(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return domain.Float(domain.Round(v, 2))
}
