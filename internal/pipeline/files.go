package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/adapter/raster"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// WeatherDir reads weather_data_<county>.csv files from a directory.
type WeatherDir struct {
	Dir    string
	Logger *slog.Logger

	paths map[string]string
}

// Counties lists the recognized counties with a weather file. Files named
// after unknown counties are logged and ignored.
func (w *WeatherDir) Counties(_ context.Context) ([]string, error) {
	files, skipped, err := csvfile.ListWeatherFiles(w.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrSourceMissing, err)
	}
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		w.Logger.Warn("skipping weather file for unknown county", "file", s)
	}
	w.paths = make(map[string]string, len(files))
	counties := make([]string, 0, len(files))
	for _, f := range files {
		w.paths[f.County] = f.Path
		counties = append(counties, f.County)
	}
	return counties, nil
}

// Hourly reads one county's observations. Counties must be called first.
func (w *WeatherDir) Hourly(_ context.Context, county string) ([]domain.HourlyObservation, error) {
	path, ok := w.paths[county]
	if !ok {
		return nil, fmt.Errorf("no weather file for %s", county)
	}
	return csvfile.ReadWeatherFile(path, county)
}

// SoilFile reads soil survey points from a CSV file.
type SoilFile struct {
	Path string
}

// Samples reads every survey point.
func (s SoilFile) Samples(_ context.Context) ([]domain.SoilSample, error) {
	if err := checkFile(s.Path); err != nil {
		return nil, err
	}
	return csvfile.ReadSoilFile(s.Path)
}

// YieldFile reads annual county yields from a CSV file.
type YieldFile struct {
	Path string
}

// Yields reads the yield table.
func (y YieldFile) Yields(_ context.Context) ([]domain.YieldRecord, int, error) {
	if err := checkFile(y.Path); err != nil {
		return nil, 0, err
	}
	records, report, err := csvfile.ReadYieldFile(y.Path)
	if err != nil {
		return nil, 0, err
	}
	return records, report.UnknownCounty, nil
}

// RasterDir samples monthly rainfall rasters at the county centroids.
type RasterDir struct {
	Dir    string
	Var    string
	Window raster.Window
	Logger *slog.Logger
}

// Rainfall opens every raster in the window and samples it. Files that
// cannot be named or read are logged and skipped.
func (r RasterDir) Rainfall(ctx context.Context) ([]domain.RainfallSample, error) {
	if r.Dir == "" {
		return nil, fmt.Errorf("raster dir not set: %w", ErrSourceMissing)
	}
	files, skipped, err := raster.ListFiles(r.Dir, r.Window)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrSourceMissing, err)
	}
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		r.Logger.Warn("skipping raster with unrecognized period", "file", s)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rasters for %d-%d in %s: %w", r.Window.FromYear, r.Window.ToYear, r.Dir, ErrSourceMissing)
	}

	var (
		out     []domain.RainfallSample
		read    int
		lastErr error
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := raster.Open(f.Path, r.Var)
		if err != nil {
			r.Logger.Warn("skipping unreadable raster", "file", f.Path, "error", err)
			lastErr = err
			continue
		}
		read++
		out = append(out, raster.SampleCentroids(g, domain.Centroids, f.Year, f.Month)...)
	}
	if read == 0 {
		return nil, fmt.Errorf("none of %d rasters in %s could be read: %w: %w", len(files), r.Dir, ErrSourceMissing, lastErr)
	}
	return out, nil
}

func checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("path not set: %w", ErrSourceMissing)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrSourceMissing)
		}
		return err
	}
	return nil
}

// FileLoader writes the master CSV and its summary JSON.
type FileLoader struct {
	MasterPath  string
	SummaryPath string
}

// Load writes rows and the summary, creating the output directory.
func (l FileLoader) Load(_ context.Context, rows []domain.MasterRow) (domain.Summary, error) {
	if err := os.MkdirAll(filepath.Dir(l.MasterPath), 0o755); err != nil {
		return domain.Summary{}, fmt.Errorf("create output dir: %w", err)
	}
	size, err := csvfile.WriteMasterFile(l.MasterPath, rows)
	if err != nil {
		return domain.Summary{}, err
	}
	summary := domain.Summarize(rows, size)
	if err := csvfile.WriteSummaryFile(l.SummaryPath, summary); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}
