// Package collector downloads hourly weather for every county, derives the
// per-hour stress and irrigation fields and writes one CSV per county.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// Fetcher retrieves hourly observations for a coordinate.
type Fetcher interface {
	FetchHourly(ctx context.Context, p domain.Point, start, end time.Time) ([]domain.HourlyObservation, error)
}

// Options configure a collection run.
type Options struct {
	OutputDir  string
	Start      time.Time
	End        time.Time
	Delay      time.Duration
	Heuristics domain.Heuristics
}

// Result describes one county's download.
type Result struct {
	County   string
	Path     string
	Records  int
	Coverage float64
	Err      error
}

// Collector fetches and writes per-county weather files.
type Collector struct {
	fetcher Fetcher
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a Collector.
func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Collector {
	return &Collector{fetcher: fetcher, opts: opts, clock: clockwork.NewRealClock(), logger: logger}
}

// Run collects each county in turn, pausing Delay between requests. A
// failure for one county is logged and recorded in its Result; Run returns
// an error only when the context ends or every county failed.
func (c *Collector) Run(ctx context.Context, counties []string) ([]Result, error) {
	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	expected := expectedHours(c.opts.Start, c.opts.End, c.opts.Heuristics.ExpectedHours)
	results := make([]Result, 0, len(counties))
	failed := 0
	for i, county := range counties {
		if i > 0 && c.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-c.clock.After(c.opts.Delay):
			}
		}
		r := c.collect(ctx, county, expected)
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				return results, r.Err
			}
			failed++
			c.logger.Error("county collection failed", "county", county, "error", r.Err)
		}
		results = append(results, r)
	}
	if len(counties) > 0 && failed == len(counties) {
		return results, fmt.Errorf("all %d counties failed", failed)
	}
	return results, nil
}

func (c *Collector) collect(ctx context.Context, county string, expected int) Result {
	r := Result{County: county}
	p, ok := domain.Centroids[county]
	if !ok {
		r.Err = fmt.Errorf("no centroid for county %q", county)
		return r
	}

	obs, err := c.fetcher.FetchHourly(ctx, p, c.opts.Start, c.opts.End)
	if err != nil {
		r.Err = err
		return r
	}
	for i := range obs {
		obs[i].County = county
		obs[i] = domain.DeriveHourly(obs[i], c.opts.Heuristics)
	}

	r.Records = len(obs)
	r.Coverage = domain.CoverageRatio(len(obs), expected)
	if r.Coverage < c.opts.Heuristics.MinCoverage {
		c.logger.Warn("weather coverage below threshold",
			"county", county,
			"records", len(obs),
			"expected", expected,
			"coverage", domain.Round(r.Coverage, 3),
		)
	}

	r.Path = filepath.Join(c.opts.OutputDir, csvfile.WeatherFileName(county))
	if err := csvfile.WriteWeatherFile(r.Path, obs); err != nil {
		r.Err = err
		return r
	}
	c.logger.Info("county weather written", "county", county, "records", len(obs), "path", r.Path)
	return r
}

// expectedHours is the hour count of the inclusive date range, or fallback
// when the range is empty.
func expectedHours(start, end time.Time, fallback int) int {
	if end.Before(start) {
		return fallback
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return days * 24
}
