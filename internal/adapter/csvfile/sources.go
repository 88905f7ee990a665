package csvfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// YieldReport counts yield rows dropped while reading.
type YieldReport struct {
	Rows          int
	UnknownCounty int
}

// ReadYieldFile reads the annual county yield table. Rows whose county is
// not one of the canonical counties are dropped and counted.
func ReadYieldFile(path string) ([]domain.YieldRecord, YieldReport, error) {
	r, c, err := openCSV(path)
	if err != nil {
		return nil, YieldReport{}, fmt.Errorf("open yield file: %w", err)
	}
	defer c.Close()

	h, err := readHeader(r)
	if err != nil {
		return nil, YieldReport{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.require(domain.YieldColumns...); err != nil {
		return nil, YieldReport{}, fmt.Errorf("%s: %w", path, err)
	}

	var (
		out    []domain.YieldRecord
		report YieldReport
	)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("%s: read line %d: %w", path, line, err)
		}
		report.Rows++
		row := &row{h: h, rec: rec, line: line}
		county, ok := domain.CanonicalCounty(row.str(domain.ColCounty))
		if !ok {
			report.UnknownCounty++
			continue
		}
		y := domain.YieldRecord{
			County:         county,
			Year:           row.int(domain.ColYear),
			AreaHa:         row.optFloat(domain.ColAreaHa),
			ProductionTons: row.optFloat(domain.ColProductionTons),
			YieldTonnesHa:  row.optFloat(domain.ColYieldTonnesHa),
		}
		if row.err != nil {
			return nil, report, fmt.Errorf("%s: %w", path, row.err)
		}
		out = append(out, y)
	}
	return out, report, nil
}

// ReadSoilFile reads soil survey points. Country, Latitude and Longitude are
// required; property columns absent from the file stay empty.
func ReadSoilFile(path string) ([]domain.SoilSample, error) {
	r, c, err := openCSV(path)
	if err != nil {
		return nil, fmt.Errorf("open soil file: %w", err)
	}
	defer c.Close()

	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.require(domain.ColCountry, domain.ColLatitude, domain.ColLongitude); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var props []string
	for _, p := range domain.SoilProperties {
		if p == domain.ColLatitude || p == domain.ColLongitude {
			continue
		}
		if h.has(p) {
			props = append(props, p)
		}
	}

	var out []domain.SoilSample
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read line %d: %w", path, line, err)
		}
		row := &row{h: h, rec: rec, line: line}
		s := domain.SoilSample{
			Country:    row.str(domain.ColCountry),
			Latitude:   row.float(domain.ColLatitude),
			Longitude:  row.float(domain.ColLongitude),
			Properties: make(map[string]*float64, len(props)),
		}
		for _, p := range props {
			s.Properties[p] = row.optFloat(p)
		}
		if row.err != nil {
			return nil, fmt.Errorf("%s: %w", path, row.err)
		}
		out = append(out, s)
	}
	return out, nil
}
