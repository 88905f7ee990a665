// Command genmock writes a small synthetic set of pipeline inputs: hourly
// weather files, a soil survey, a yield table and monthly rainfall grids.
// Output is deterministic for a given seed, so the ETL, trainer and API can
// be exercised end to end without network access.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock \
//	  -counties Nakuru,Bomet,Kisumu,Nyeri,Machakos \
//	  -from 2019 -to 2020
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// Kenya-wide grid extent for the rainfall rasters.
const (
	gridWest  = 33.75
	gridSouth = -4.75
	gridCell  = 0.25
	gridCols  = 34
	gridRows  = 41
	noData    = -9999
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	countyList := flag.String("counties", "Nakuru,Bomet,Kisumu,Nyeri,Machakos", "comma-separated counties")
	from := flag.Int("from", 2019, "first year")
	to := flag.Int("to", 2020, "last year")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *from > *to {
		return fmt.Errorf("-from %d is after -to %d", *from, *to)
	}
	var counties []string
	for _, name := range strings.Split(*countyList, ",") {
		c, ok := domain.CanonicalCounty(name)
		if !ok {
			return fmt.Errorf("unknown county %q", name)
		}
		counties = append(counties, c)
	}

	rng := rand.New(rand.NewPCG(*seed, 0))
	h := domain.DefaultHeuristics()

	weatherDir := filepath.Join(*out, "weather")
	if err := os.MkdirAll(weatherDir, 0o755); err != nil {
		return err
	}
	for ci, county := range counties {
		obs := hourly(rng, county, ci, *from, *to, h)
		path := filepath.Join(weatherDir, csvfile.WeatherFileName(county))
		if err := csvfile.WriteWeatherFile(path, obs); err != nil {
			return err
		}
		fmt.Printf("wrote %d hourly records to %s\n", len(obs), path)
	}

	if err := writeSoil(rng, filepath.Join(*out, "soil", "isric_soil_data.csv"), counties); err != nil {
		return err
	}
	if err := writeYield(rng, filepath.Join(*out, "yield", "maize_yield.csv"), counties, *from, *to); err != nil {
		return err
	}
	return writeRasters(rng, filepath.Join(*out, "chirps"), counties, *from, *to)
}

// rainy reports whether month falls in the long or short rains.
func rainy(month int) bool {
	return (month >= 3 && month <= 5) || (month >= 10 && month <= 12)
}

func hourly(rng *rand.Rand, county string, ci, from, to int, h domain.Heuristics) []domain.HourlyObservation {
	p := domain.Centroids[county]
	// Highland counties run cooler.
	base := 24 - 0.8*float64(ci%4)
	var obs []domain.HourlyObservation
	for t := time.Date(from, 1, 1, 0, 0, 0, 0, time.UTC); t.Year() <= to; t = t.Add(time.Hour) {
		diurnal := 6 * math.Sin(float64(t.Hour()-9)*math.Pi/12)
		temp := domain.Round(base+diurnal+rng.NormFloat64(), 1)
		hum := domain.Round(domain.Clamp(75-2*diurnal+rng.NormFloat64()*5, 20, 100), 1)
		pressure := domain.Round(850+rng.NormFloat64()*2, 1)
		et := domain.Round(math.Max(0, 0.05+0.03*diurnal+rng.NormFloat64()*0.01), 3)
		precip := 0.0
		chance := 0.03
		if rainy(int(t.Month())) {
			chance = 0.12
		}
		if rng.Float64() < chance {
			precip = domain.Round(rng.ExpFloat64()*2, 1)
		}
		o := domain.HourlyObservation{
			County:             county,
			Time:               t,
			Latitude:           p.Lat,
			Longitude:          p.Lon,
			Temperature:        &temp,
			Humidity:           &hum,
			Pressure:           &pressure,
			Evapotranspiration: &et,
			Precipitation:      &precip,
		}
		obs = append(obs, domain.DeriveHourly(o, h))
	}
	return obs
}

func writeSoil(rng *rand.Rand, path string, counties []string) error {
	var props []string
	for _, p := range domain.SoilProperties {
		if p != domain.ColLatitude && p != domain.ColLongitude {
			props = append(props, p)
		}
	}
	header := append([]string{domain.ColCountry, domain.ColLatitude, domain.ColLongitude}, props...)

	var rows [][]string
	for ci, county := range counties {
		c := domain.Centroids[county]
		for i := 0; i < 5; i++ {
			vals := map[string]float64{
				"pH_H2O":         5.2 + 0.3*float64(ci%5) + rng.NormFloat64()*0.2,
				"Organic_Carbon": 1.2 + 0.4*float64(ci%4) + rng.NormFloat64()*0.2,
				"Clay":           25 + 5*float64(ci%3) + rng.NormFloat64()*3,
				"Sand":           40 + rng.NormFloat64()*5,
				"Silt":           30 + rng.NormFloat64()*4,
				"CEC":            15 + rng.NormFloat64()*2,
				"CaCO3":          math.Abs(rng.NormFloat64()),
				"Total_Nitrogen": 0.15 + math.Abs(rng.NormFloat64()*0.03),
				"Bulk_Density":   1.3 + rng.NormFloat64()*0.05,
			}
			rec := []string{"KE",
				ftoa(c.Lat+rng.NormFloat64()*0.02, 5),
				ftoa(c.Lon+rng.NormFloat64()*0.02, 5)}
			for _, p := range props {
				rec = append(rec, ftoa(vals[p], 3))
			}
			rows = append(rows, rec)
		}
	}
	return writeCSV(path, header, rows)
}

func writeYield(rng *rand.Rand, path string, counties []string, from, to int) error {
	var rows [][]string
	for ci, county := range counties {
		for year := from; year <= to; year++ {
			yield := domain.Clamp(1.6+0.35*float64(ci%5)+0.05*float64(year-from)+rng.NormFloat64()*0.15, 0.9, 4.8)
			area := 20000 + rng.Float64()*60000
			rows = append(rows, []string{
				county,
				strconv.Itoa(year),
				ftoa(area, 0),
				ftoa(area*yield, 0),
				ftoa(yield, 2),
			})
		}
	}
	return writeCSV(path, domain.YieldColumns, rows)
}

// writeRasters writes one ESRI ASCII grid per month. Cells near a listed
// county centroid carry that county's rainfall; the rest are no-data.
func writeRasters(rng *rand.Rand, dir string, counties []string, from, to int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for year := from; year <= to; year++ {
		for month := 1; month <= 12; month++ {
			grid := make([][]float64, gridRows)
			for r := range grid {
				grid[r] = make([]float64, gridCols)
				for c := range grid[r] {
					grid[r][c] = noData
				}
			}
			for ci, county := range counties {
				p := domain.Centroids[county]
				rain := 40 + 10*float64(ci) + rng.Float64()*20
				if rainy(month) {
					rain += 80
				}
				col := int((p.Lon - gridWest) / gridCell)
				row := gridRows - 1 - int((p.Lat-gridSouth)/gridCell)
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						if r, c := row+dr, col+dc; r >= 0 && r < gridRows && c >= 0 && c < gridCols {
							grid[r][c] = domain.Round(rain, 1)
						}
					}
				}
			}
			name := fmt.Sprintf("chirps-v3.0.%d.%02d.asc", year, month)
			if err := writeASCII(filepath.Join(dir, name), grid); err != nil {
				return err
			}
		}
	}
	fmt.Printf("wrote %d rainfall grids to %s\n", (to-from+1)*12, dir)
	return nil
}

func writeASCII(path string, grid [][]float64) error {
	var b strings.Builder
	fmt.Fprintf(&b, "ncols %d\nnrows %d\nxllcorner %g\nyllcorner %g\ncellsize %g\nNODATA_value %d\n",
		gridCols, gridRows, gridWest, gridSouth, gridCell, noData)
	for _, row := range grid {
		for c, v := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	fmt.Printf("wrote %d rows to %s\n", len(rows), path)
	return f.Close()
}

func ftoa(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
