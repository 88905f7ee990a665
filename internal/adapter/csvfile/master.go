package csvfile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// WriteMasterFile writes rows to path and returns the size of the file.
func WriteMasterFile(path string, rows []domain.MasterRow) (size int64, err error) {
	w, f, err := createCSV(path)
	if err != nil {
		return 0, fmt.Errorf("create master file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close master file: %w", cerr)
		}
	}()
	if err := writeMaster(w, rows); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat master file: %w", err)
	}
	return info.Size(), nil
}

// WriteMaster writes rows to w in master column order.
func WriteMaster(w io.Writer, rows []domain.MasterRow) error {
	return writeMaster(csv.NewWriter(w), rows)
}

func writeMaster(w *csv.Writer, rows []domain.MasterRow) error {
	if err := w.Write(domain.MasterColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(masterRecord(r)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func masterRecord(r domain.MasterRow) []string {
	rec := []string{
		r.County,
		strconv.Itoa(r.Year),
		strconv.Itoa(r.Month),
		formatFloat(r.Temperature),
		formatFloat(r.Humidity),
		formatFloat(r.Pressure),
		formatFloat(r.Evapotranspiration),
		formatFloat(r.Precipitation),
		formatFloat(r.WaterStressIndex),
		r.IrrigationNeeded,
		formatFloat(r.IrrigationVolume),
		formatFloat(r.CropYieldImpact),
		formatFloat(r.HeatStressDays),
		formatFloat(r.MaxTemperature),
		formatFloat(r.MinTemperature),
		strconv.Itoa(r.ObservationHours),
		r.Dashboard.MonthName,
		formatFloat(r.Dashboard.TemperatureVariability),
		r.Dashboard.ClimateZone,
		formatValue(r.Dashboard.WaterAvailability),
		formatValue(r.Dashboard.CropLossRisk),
		formatFloat(r.Dashboard.IrrigationEfficiency),
		formatFloat(r.Dashboard.WaterSavings),
		formatFloat(r.Dashboard.HeatStressSeverity),
	}
	if r.Yield != nil {
		rec = append(rec, formatFloat(r.Yield.AreaHa), formatFloat(r.Yield.ProductionTons), formatFloat(r.Yield.YieldTonnesHa))
	} else {
		rec = append(rec, "", "", "")
	}
	for _, p := range domain.SoilProperties {
		rec = append(rec, formatFloat(r.SoilValue(p)))
	}
	return append(rec,
		formatFloat(r.Rainfall),
		formatValue(r.WaterScarcityScore),
		formatValue(r.AgriculturalRiskIndex),
		formatValue(r.IrrigationPriorityScore),
	)
}

// ReadMasterFile reads a master dataset written by WriteMasterFile.
func ReadMasterFile(path string) ([]domain.MasterRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open master file: %w", err)
	}
	defer f.Close()
	rows, err := ReadMaster(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadMaster parses master rows. The key columns and the columns used for
// training are required; other columns are read when present.
func ReadMaster(r io.Reader) ([]domain.MasterRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require(
		domain.ColCounty, domain.ColYear, domain.ColMonth,
		domain.ColMonthlyTemperature, domain.ColMonthlyHumidity, domain.ColMonthlyPrecipitation,
		domain.ColMaizeYield, domain.ColSoilPH, domain.ColSoilOrganicCarbon, domain.ColSoilClay,
	); err != nil {
		return nil, err
	}

	var out []domain.MasterRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := &row{h: h, rec: rec, line: line}
		m := parseMasterRow(row)
		if row.err != nil {
			return nil, row.err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseMasterRow(row *row) domain.MasterRow {
	m := domain.MasterRow{
		MonthlyAggregate: domain.MonthlyAggregate{
			MonthKey: domain.MonthKey{
				County: row.str(domain.ColCounty),
				Year:   row.int(domain.ColYear),
				Month:  row.int(domain.ColMonth),
			},
			Temperature:        row.optFloat(domain.ColMonthlyTemperature),
			Humidity:           row.optFloat(domain.ColMonthlyHumidity),
			Pressure:           row.optFloat(domain.ColMonthlyPressure),
			Evapotranspiration: row.optFloat(domain.ColMonthlyEvapotranspiration),
			Precipitation:      row.optFloat(domain.ColMonthlyPrecipitation),
			WaterStressIndex:   row.optFloat(domain.ColMonthlyWaterStress),
			IrrigationNeeded:   row.str(domain.ColMonthlyIrrigationNeeded),
			IrrigationVolume:   row.optFloat(domain.ColMonthlyIrrigationVolume),
			CropYieldImpact:    row.optFloat(domain.ColMonthlyCropImpact),
			HeatStressDays:     row.optFloat(domain.ColMonthlyHeatStressDays),
			MaxTemperature:     row.optFloat(domain.ColMonthlyMaxTemperature),
			MinTemperature:     row.optFloat(domain.ColMonthlyMinTemperature),
		},
		Dashboard: domain.DashboardMetrics{
			MonthName:              row.str(domain.ColMonthName),
			TemperatureVariability: row.optFloat(domain.ColTemperatureVariability),
			ClimateZone:            row.str(domain.ColClimateZone),
			IrrigationEfficiency:   row.optFloat(domain.ColIrrigationEfficiency),
			WaterSavings:           row.optFloat(domain.ColWaterSavings),
			HeatStressSeverity:     row.optFloat(domain.ColHeatStressSeverity),
		},
		Rainfall: row.optFloat(domain.ColMonthlyRainfall),
	}
	if row.str(domain.ColObservationHours) != "" {
		m.ObservationHours = row.int(domain.ColObservationHours)
	}
	m.Dashboard.WaterAvailability = valueOrZero(row.optFloat(domain.ColWaterAvailability))
	m.Dashboard.CropLossRisk = valueOrZero(row.optFloat(domain.ColCropLossRisk))
	m.WaterScarcityScore = valueOrZero(row.optFloat(domain.ColWaterScarcityScore))
	m.AgriculturalRiskIndex = valueOrZero(row.optFloat(domain.ColAgriculturalRiskIndex))
	m.IrrigationPriorityScore = valueOrZero(row.optFloat(domain.ColIrrigationPriorityScore))

	area := row.optFloat(domain.ColMaizeArea)
	production := row.optFloat(domain.ColMaizeProduction)
	yield := row.optFloat(domain.ColMaizeYield)
	if area != nil || production != nil || yield != nil {
		m.Yield = &domain.YieldRecord{
			County:         m.County,
			Year:           m.Year,
			AreaHa:         area,
			ProductionTons: production,
			YieldTonnesHa:  yield,
		}
	}

	values := make(map[string]*float64, len(domain.SoilProperties))
	present := false
	for _, p := range domain.SoilProperties {
		v := row.optFloat(domain.SoilColumnPrefix + p)
		values[p] = v
		present = present || v != nil
	}
	if present {
		m.Soil = &domain.SoilProfile{County: m.County, Values: values}
	}
	return m
}

func valueOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// WriteSummaryFile writes the dataset summary as indented JSON.
func WriteSummaryFile(path string, s domain.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
