package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/adapter/raster"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/geo"
	"github.com/couchcryptid/maize-resilience-service/internal/pipeline"
)

const (
	soilCSV = "Country,Latitude,Longitude,pH_H2O,Organic_Carbon,Clay\n" +
		"Kenya,0.5,34.5,6.0,1.5,30\n" +
		"Kenya,0.5,34.5,6.4,1.7,34\n" +
		"Uganda,1.0,33.0,5.0,1.0,10\n" +
		"Kenya,-30.0,10.0,5.0,1.0,10\n"
	yieldCSV = "County,Year,Area_Ha,Production_Tons,Yield_tonnes_ha\n" +
		"Nandi,2020,1000,2500,2.5\n" +
		"Atlantis,2020,1,1,1\n"
	// One 10-degree cell centred on (0, 36).
	rainfallASC = "ncols 1\nnrows 1\nxllcorner 31\nyllcorner -5\ncellsize 10\nNODATA_value -9999\n120\n"
)

func writeInputs(t *testing.T) (weatherDir, soil, yield, rasterDir string) {
	t.Helper()
	root := t.TempDir()
	weatherDir = filepath.Join(root, "weather")
	rasterDir = filepath.Join(root, "chirps")
	require.NoError(t, os.MkdirAll(weatherDir, 0o755))
	require.NoError(t, os.MkdirAll(rasterDir, 0o755))

	for _, county := range []string{"Nandi", "Kiambu"} {
		path := filepath.Join(weatherDir, csvfile.WeatherFileName(county))
		require.NoError(t, csvfile.WriteWeatherFile(path, hours(county, 2020, 1, 48)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(weatherDir, "weather_data_atlantis.csv"), []byte("County\n"), 0o600))

	soil = filepath.Join(root, "soil.csv")
	yield = filepath.Join(root, "yield.csv")
	require.NoError(t, os.WriteFile(soil, []byte(soilCSV), 0o600))
	require.NoError(t, os.WriteFile(yield, []byte(yieldCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rasterDir, "chirps-v3.0.2020.01.asc"), []byte(rainfallASC), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rasterDir, "chirps-v3.0.2018.01.asc"), []byte(rainfallASC), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rasterDir, "chirps-v3.0.broken.asc"), []byte(rainfallASC), 0o600))
	return weatherDir, soil, yield, rasterDir
}

func TestPipeline_FilesEndToEnd(t *testing.T) {
	weatherDir, soil, yield, rasterDir := writeInputs(t)
	out := t.TempDir()
	loader := pipeline.FileLoader{
		MasterPath:  filepath.Join(out, "master_dataset.csv"),
		SummaryPath: filepath.Join(out, "master_dataset_summary.json"),
	}
	sources := pipeline.Sources{
		Weather: &pipeline.WeatherDir{Dir: weatherDir, Logger: discardLogger()},
		Soil:    pipeline.SoilFile{Path: soil},
		Yield:   pipeline.YieldFile{Path: yield},
		Rainfall: pipeline.RasterDir{
			Dir:    rasterDir,
			Window: raster.Window{FromYear: 2019, ToYear: 2023},
			Logger: discardLogger(),
		},
	}
	opts := pipeline.Options{
		Heuristics:  domain.DefaultHeuristics(),
		SoilCountry: "Kenya",
		Assigner:    geo.DefaultBBoxAssigner(),
		MasterPath:  loader.MasterPath,
	}
	p := pipeline.New(sources, loader, nil, opts, discardLogger(), newTestMetrics())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)

	rows, err := csvfile.ReadMasterFile(loader.MasterPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	kiambu, nandi := rows[0], rows[1]
	assert.Equal(t, "Kiambu", kiambu.County)
	assert.Equal(t, "Nandi", nandi.County)
	assert.Equal(t, 48, nandi.ObservationHours)

	require.NotNil(t, nandi.MaizeYield())
	assert.InDelta(t, 2.5, *nandi.MaizeYield(), 1e-9)
	assert.Nil(t, kiambu.MaizeYield())

	require.NotNil(t, nandi.SoilValue("pH_H2O"))
	assert.InDelta(t, 6.2, *nandi.SoilValue("pH_H2O"), 1e-9)
	assert.Nil(t, kiambu.SoilValue("pH_H2O"))

	for _, r := range rows {
		require.NotNil(t, r.Rainfall, r.County)
		assert.InDelta(t, 120, *r.Rainfall, 1e-9)
	}

	data, err := os.ReadFile(loader.SummaryPath)
	require.NoError(t, err)
	var summary domain.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 2, summary.Counties)
	assert.Equal(t, []int{2020}, summary.Years)
	assert.Equal(t, 1, summary.Coverage.Yield)
	assert.Equal(t, 2, summary.Coverage.Rainfall)
}

func TestFileSources_Missing(t *testing.T) {
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := (&pipeline.WeatherDir{Dir: missing, Logger: discardLogger()}).Counties(ctx)
	require.ErrorIs(t, err, pipeline.ErrSourceMissing)

	_, err = pipeline.SoilFile{}.Samples(ctx)
	require.ErrorIs(t, err, pipeline.ErrSourceMissing)

	_, _, err = pipeline.YieldFile{Path: missing}.Yields(ctx)
	require.ErrorIs(t, err, pipeline.ErrSourceMissing)

	_, err = pipeline.RasterDir{Dir: missing, Logger: discardLogger()}.Rainfall(ctx)
	require.ErrorIs(t, err, pipeline.ErrSourceMissing)

	_, err = pipeline.RasterDir{Dir: t.TempDir(), Window: raster.Window{FromYear: 2019, ToYear: 2023}, Logger: discardLogger()}.Rainfall(ctx)
	require.ErrorIs(t, err, pipeline.ErrSourceMissing, "no rasters in window")
}

func TestRasterDir_NothingReadable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chirps-v3.0.2020.03.tif"), nil, 0o600))

	_, err := pipeline.RasterDir{
		Dir:    dir,
		Window: raster.Window{FromYear: 2019, ToYear: 2023},
		Logger: discardLogger(),
	}.Rainfall(context.Background())
	require.ErrorIs(t, err, pipeline.ErrSourceMissing)
	assert.Contains(t, err.Error(), "none of 1 rasters")
}

func TestFileSources_YieldSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yield.csv")
	require.NoError(t, os.WriteFile(path, []byte("County,Year\nNandi,2020\n"), 0o600))

	_, _, err := pipeline.YieldFile{Path: path}.Yields(context.Background())
	require.ErrorIs(t, err, csvfile.ErrSchemaMismatch)
}
