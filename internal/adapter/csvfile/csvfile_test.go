package csvfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

func f(v float64) *float64 { return &v }

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestWeatherRoundTrip(t *testing.T) {
	h := domain.DefaultHeuristics()
	in := []domain.HourlyObservation{
		domain.DeriveHourly(domain.HourlyObservation{
			County: "Tana River", Time: time.Date(2020, 1, 1, 13, 0, 0, 0, time.UTC),
			Latitude: -1.65, Longitude: 39.76,
			Temperature: f(31.5), Humidity: f(40), Pressure: f(1005.2),
			Evapotranspiration: f(0.5), Precipitation: f(0),
		}, h),
		domain.DeriveHourly(domain.HourlyObservation{
			County: "Tana River", Time: time.Date(2020, 1, 1, 14, 0, 0, 0, time.UTC),
			Latitude: -1.65, Longitude: 39.76,
			Temperature: f(30), Precipitation: f(1.2),
		}, h),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWeather(&buf, in))

	header, _, _ := strings.Cut(buf.String(), "\n")
	assert.Equal(t, strings.Join(domain.WeatherColumns, ","), header)

	out, err := ReadWeather(&buf, "Tana River")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range out {
		out[i] = domain.DeriveHourly(out[i], h)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadWeather_YearMonthDayHour(t *testing.T) {
	body := "Year,Month,Day,Hour,Temperature_C,Humidity_Percent,Pressure_hPa,Evapotranspiration_mm,Precipitation_mm\n" +
		"2021,3,4,5,22.5,,900,0.1,nan\n"
	out, err := ReadWeather(strings.NewReader(body), "Kitui")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, time.Date(2021, 3, 4, 5, 0, 0, 0, time.UTC), out[0].Time)
	assert.Equal(t, 22.5, *out[0].Temperature)
	assert.Nil(t, out[0].Humidity)
	assert.Nil(t, out[0].Precipitation)
}

func TestReadWeather_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing column", "Date,Time,Temperature_C\n2020-01-01,00:00:00,20\n"},
		{"bad number", "Date,Time,Temperature_C,Humidity_Percent,Pressure_hPa,Evapotranspiration_mm,Precipitation_mm\n2020-01-01,00:00:00,warm,1,1,1,1\n"},
		{"bad date", "Date,Time,Temperature_C,Humidity_Percent,Pressure_hPa,Evapotranspiration_mm,Precipitation_mm\n01/01/2020,00:00:00,1,1,1,1,1\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWeather(strings.NewReader(tt.body), "Kitui")
			require.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestListWeatherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, WeatherFileName("Murang'a"), "")
	writeFile(t, dir, WeatherFileName("Tana River"), "")
	writeFile(t, dir, "weather_data_atlantis.csv", "")
	writeFile(t, dir, "notes.txt", "")

	files, skipped, err := ListWeatherFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Murang'a", files[0].County)
	assert.Equal(t, filepath.Join(dir, "weather_data_muranga.csv"), files[0].Path)
	assert.Equal(t, "Tana River", files[1].County)
	assert.Len(t, skipped, 1)

	_, _, err = ListWeatherFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestReadYieldFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "yield.csv",
		"County,Year,Area_Ha,Production_Tons,Yield_tonnes_ha\n"+
			"nakuru,2020,1000,2500,2.5\n"+
			"Atlantis,2020,1,1,1\n"+
			"Tana_River,2021.0,,,\n")

	records, report, err := ReadYieldFile(path)
	require.NoError(t, err)
	assert.Equal(t, YieldReport{Rows: 3, UnknownCounty: 1}, report)
	require.Len(t, records, 2)
	assert.Equal(t, "Nakuru", records[0].County)
	assert.Equal(t, 2.5, *records[0].YieldTonnesHa)
	assert.Equal(t, "Tana River", records[1].County)
	assert.Equal(t, 2021, records[1].Year)
	assert.Nil(t, records[1].YieldTonnesHa)
}

func TestReadYieldFile_MissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "yield.csv", "County,Year\nNakuru,2020\n")
	_, _, err := ReadYieldFile(path)
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "Yield_tonnes_ha")
}

func TestReadSoilFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "soil.csv",
		"Country,Latitude,Longitude,pH_H2O,Clay,Unrelated\n"+
			"KE,-0.3,36.1,6.2,31,x\n"+
			"TZ,-3.1,37.0,,12,y\n")

	samples, err := ReadSoilFile(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "KE", samples[0].Country)
	assert.Equal(t, -0.3, samples[0].Latitude)
	assert.Equal(t, 6.2, *samples[0].Properties["pH_H2O"])
	assert.Nil(t, samples[1].Properties["pH_H2O"])
	_, ok := samples[0].Properties["Sand"]
	assert.False(t, ok)
}

func TestMasterRoundTrip(t *testing.T) {
	h := domain.DefaultHeuristics()
	base := []domain.MonthlyAggregate{
		{
			MonthKey:         domain.MonthKey{County: "Nakuru", Year: 2020, Month: 1},
			Temperature:      f(18.5),
			Humidity:         f(66),
			Precipitation:    f(40),
			WaterStressIndex: f(0.8),
			IrrigationNeeded: domain.IrrigationYes,
			MaxTemperature:   f(26),
			MinTemperature:   f(9),
			ObservationHours: 744,
		},
		{
			MonthKey:         domain.MonthKey{County: "Kitui", Year: 2020, Month: 1},
			IrrigationNeeded: domain.IrrigationUnknown,
		},
	}
	rows, _, err := domain.BuildMaster(base, domain.MasterSources{
		Yield: []domain.YieldRecord{{County: "Nakuru", Year: 2020, AreaHa: f(10), YieldTonnesHa: f(2.4)}},
		Soil: []domain.SoilProfile{{County: "Nakuru", Values: map[string]*float64{
			"pH_H2O": f(6.1), "Organic_Carbon": f(2.2), "Clay": f(30),
		}}},
		Rainfall: []domain.RainfallSample{{MonthKey: base[1].MonthKey, RainfallMM: 12.5}},
	}, h)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "master.csv")
	size, err := WriteMasterFile(path, rows)
	require.NoError(t, err)
	assert.Positive(t, size)

	got, err := ReadMasterFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	kitui, nakuru := got[0], got[1]
	assert.Equal(t, "Kitui", kitui.County)
	assert.Nil(t, kitui.Yield)
	assert.Nil(t, kitui.Soil)
	assert.Equal(t, 12.5, *kitui.Rainfall)
	assert.Equal(t, 50.0, kitui.WaterScarcityScore)

	assert.Equal(t, "Nakuru", nakuru.County)
	assert.Equal(t, 744, nakuru.ObservationHours)
	assert.Equal(t, 2.4, *nakuru.MaizeYield())
	assert.Equal(t, 6.1, *nakuru.SoilValue("pH_H2O"))
	assert.Nil(t, nakuru.SoilValue("Sand"))
	assert.Equal(t, "January", nakuru.Dashboard.MonthName)
	assert.InDelta(t, 17, *nakuru.Dashboard.TemperatureVariability, 1e-9)
	assert.Equal(t, 75.0, nakuru.IrrigationPriorityScore)
}

func TestReadMaster_SchemaMismatch(t *testing.T) {
	_, err := ReadMaster(strings.NewReader("County,Year,Month\nNakuru,2020,1\n"))
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestWriteSummaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteSummaryFile(path, domain.Summary{TotalRecords: 3}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_records": 3`)
}
