package domain

import (
	"sort"
)

// CountyAssigner labels a coordinate with a county, or UnknownCounty.
type CountyAssigner interface {
	Assign(lat, lon float64) string
}

// SoilSample is one point from the soil survey.
type SoilSample struct {
	Country    string
	Latitude   float64
	Longitude  float64
	Properties map[string]*float64
}

// SoilProfile is the county mean of each soil property.
type SoilProfile struct {
	County  string
	Samples int
	Values  map[string]*float64
}

// Get returns the mean of a soil property (without the Soil_ prefix).
func (p SoilProfile) Get(property string) *float64 {
	if p.Values == nil {
		return nil
	}
	return p.Values[property]
}

// SoilReport counts what happened to the survey points.
type SoilReport struct {
	Total        int
	OtherCountry int
	Unassigned   int
	Assigned     int
}

// AggregateSoil keeps samples from country, labels each with assigner,
// drops the ones that match no county and averages the rest per county.
// Profiles are sorted by county.
func AggregateSoil(samples []SoilSample, country string, assigner CountyAssigner) ([]SoilProfile, SoilReport) {
	report := SoilReport{Total: len(samples)}
	accs := make(map[string]map[string]*accumulator)
	counts := make(map[string]int)

	for _, s := range samples {
		if country != "" && s.Country != country {
			report.OtherCountry++
			continue
		}
		county := assigner.Assign(s.Latitude, s.Longitude)
		if county == UnknownCounty || county == "" {
			report.Unassigned++
			continue
		}
		report.Assigned++
		counts[county]++
		byProp, ok := accs[county]
		if !ok {
			byProp = make(map[string]*accumulator, len(SoilProperties))
			for _, p := range SoilProperties {
				byProp[p] = &accumulator{}
			}
			accs[county] = byProp
		}
		for _, p := range SoilProperties {
			switch p {
			case "Latitude":
				byProp[p].add(Float(s.Latitude))
			case "Longitude":
				byProp[p].add(Float(s.Longitude))
			default:
				byProp[p].add(s.Properties[p])
			}
		}
	}

	profiles := make([]SoilProfile, 0, len(accs))
	for county, byProp := range accs {
		values := make(map[string]*float64, len(byProp))
		for p, acc := range byProp {
			values[p] = acc.mean()
		}
		profiles = append(profiles, SoilProfile{County: county, Samples: counts[county], Values: values})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].County < profiles[j].County })
	return profiles, report
}

// YieldRecord is the annual maize production of one county.
type YieldRecord struct {
	County         string
	Year           int
	AreaHa         *float64
	ProductionTons *float64
	YieldTonnesHa  *float64
}

// RainfallSample is the raster rainfall at a county centroid for one month.
type RainfallSample struct {
	MonthKey
	RainfallMM float64
}
