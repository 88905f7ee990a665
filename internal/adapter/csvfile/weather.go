package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

const (
	weatherPrefix = "weather_data_"
	weatherSuffix = ".csv"
)

// WeatherFile is one per-county hourly weather file.
type WeatherFile struct {
	County string
	Path   string
}

// WeatherFileName returns the file name used for a county's hourly data.
func WeatherFileName(county string) string {
	return weatherPrefix + domain.CountySlug(county) + weatherSuffix
}

// ListWeatherFiles finds weather_data_<slug>.csv files in dir. Files whose
// slug is not a recognized county are returned in skipped.
func ListWeatherFiles(dir string) (files []WeatherFile, skipped []string, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("weather dir: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("weather dir %s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, weatherPrefix+"*"+weatherSuffix))
	if err != nil {
		return nil, nil, fmt.Errorf("glob weather files: %w", err)
	}
	for _, m := range matches {
		slug := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), weatherPrefix), weatherSuffix)
		county, ok := domain.CountyFromSlug(slug)
		if !ok {
			skipped = append(skipped, m)
			continue
		}
		files = append(files, WeatherFile{County: county, Path: m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].County < files[j].County })
	return files, skipped, nil
}

// ReadWeatherFile reads a county's hourly weather file.
func ReadWeatherFile(path, county string) ([]domain.HourlyObservation, error) {
	r, c, err := openCSV(path)
	if err != nil {
		return nil, fmt.Errorf("open weather file: %w", err)
	}
	defer c.Close()
	obs, err := readWeather(r, county)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// ReadWeather reads hourly observations for county from r. The County column
// of the file is ignored in favor of the caller's canonical name.
func ReadWeather(r io.Reader, county string) ([]domain.HourlyObservation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return readWeather(cr, county)
}

func readWeather(cr *csv.Reader, county string) ([]domain.HourlyObservation, error) {
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(
		domain.ColTemperature, domain.ColHumidity, domain.ColPressure,
		domain.ColEvapotranspiration, domain.ColPrecipitation,
	); err != nil {
		return nil, err
	}
	useDate := h.has(domain.ColDate)
	if !useDate {
		if err := h.require(domain.ColYear, domain.ColMonth, domain.ColDay, domain.ColHour); err != nil {
			return nil, err
		}
	}

	var out []domain.HourlyObservation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := &row{h: h, rec: rec, line: line}

		var ts time.Time
		if useDate {
			ts, err = parseDateTime(row.str(domain.ColDate), row.str(domain.ColTime))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrSchemaMismatch, line, err)
			}
		} else {
			ts = time.Date(row.int(domain.ColYear), time.Month(row.int(domain.ColMonth)),
				row.int(domain.ColDay), row.int(domain.ColHour), 0, 0, 0, time.UTC)
		}

		o := domain.HourlyObservation{
			County:             county,
			Time:               ts,
			Temperature:        row.optFloat(domain.ColTemperature),
			Humidity:           row.optFloat(domain.ColHumidity),
			Pressure:           row.optFloat(domain.ColPressure),
			Evapotranspiration: row.optFloat(domain.ColEvapotranspiration),
			Precipitation:      row.optFloat(domain.ColPrecipitation),
		}
		if lat := row.optFloat(domain.ColLatitude); lat != nil {
			o.Latitude = *lat
		}
		if lon := row.optFloat(domain.ColLongitude); lon != nil {
			o.Longitude = *lon
		}
		if row.err != nil {
			return nil, row.err
		}
		out = append(out, o)
	}
	return out, nil
}

func parseDateTime(date, clock string) (time.Time, error) {
	if clock == "" {
		return time.Parse(time.DateOnly, date)
	}
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(time.DateOnly+" "+layout, date+" "+clock); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q time %q", date, clock)
}

// WriteWeatherFile writes observations to path with the standard header.
func WriteWeatherFile(path string, obs []domain.HourlyObservation) (err error) {
	w, f, err := createCSV(path)
	if err != nil {
		return fmt.Errorf("create weather file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close weather file: %w", cerr)
		}
	}()
	return writeWeather(w, obs)
}

// WriteWeather writes observations to w with the standard header.
func WriteWeather(w io.Writer, obs []domain.HourlyObservation) error {
	return writeWeather(csv.NewWriter(w), obs)
}

func writeWeather(w *csv.Writer, obs []domain.HourlyObservation) error {
	if err := w.Write(domain.WeatherColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range obs {
		t := o.Time.UTC()
		rec := []string{
			o.County,
			t.Format(time.DateOnly),
			t.Format(time.TimeOnly),
			strconv.Itoa(t.Year()),
			strconv.Itoa(int(t.Month())),
			strconv.Itoa(t.Day()),
			strconv.Itoa(t.Hour()),
			formatValue(o.Latitude),
			formatValue(o.Longitude),
			formatFloat(o.Temperature),
			formatFloat(o.Humidity),
			formatFloat(o.Pressure),
			formatFloat(o.Evapotranspiration),
			formatFloat(o.Precipitation),
			formatFloat(o.WaterStressIndex),
			o.IrrigationNeeded,
			formatFloat(o.IrrigationVolume),
			formatFloat(o.CropYieldImpact),
			formatFloat(o.HeatStressDays),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
