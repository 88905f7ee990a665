// Package pipeline builds the master dataset: it extracts the weather base
// and the optional soil, yield and rainfall sources, joins them and loads the
// result to disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
)

// ErrSourceMissing marks an input that does not exist. Optional sources
// returning it are skipped with a warning; a missing weather base aborts.
var ErrSourceMissing = errors.New("source missing")

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// WeatherSource provides the hourly observations of each county.
type WeatherSource interface {
	Counties(ctx context.Context) ([]string, error)
	Hourly(ctx context.Context, county string) ([]domain.HourlyObservation, error)
}

// SoilSource provides soil survey points.
type SoilSource interface {
	Samples(ctx context.Context) ([]domain.SoilSample, error)
}

// YieldSource provides annual county yields. dropped counts rows discarded
// for an unrecognized county.
type YieldSource interface {
	Yields(ctx context.Context) (records []domain.YieldRecord, dropped int, err error)
}

// RainfallSource provides raster rainfall sampled at county centroids.
type RainfallSource interface {
	Rainfall(ctx context.Context) ([]domain.RainfallSample, error)
}

// Loader persists the master dataset and returns its summary.
type Loader interface {
	Load(ctx context.Context, rows []domain.MasterRow) (domain.Summary, error)
}

// Publisher announces completed runs.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Sources groups the pipeline inputs. Soil, Yield and Rainfall may be nil.
type Sources struct {
	Weather  WeatherSource
	Soil     SoilSource
	Yield    YieldSource
	Rainfall RainfallSource
}

// Options tune a pipeline.
type Options struct {
	Heuristics  domain.Heuristics
	SoilCountry string
	Assigner    domain.CountyAssigner
	// MasterPath is reported in the published event.
	MasterPath string
}

// Result describes one completed run.
type Result struct {
	RunID   string
	Rows    int
	Report  domain.BuildReport
	Summary domain.Summary
}

// Pipeline runs extract, join and load in sequence.
type Pipeline struct {
	sources   Sources
	loader    Loader
	publisher Publisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex
	ready atomic.Bool
	last  atomic.Pointer[Result]
}

// New creates a Pipeline. publisher may be nil.
func New(sources Sources, loader Loader, publisher Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		sources:   sources,
		loader:    loader,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	return errors.New("no master dataset built yet")
}

// Last returns the most recent successful result, or nil.
func (p *Pipeline) Last() *Result {
	return p.last.Load()
}

// Run builds and writes the master dataset once. Only one run executes at a
// time; overlapping calls return ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if !p.mu.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer p.mu.Unlock()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := time.Now()
	res, err := p.run(ctx)
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("failure").Inc()
		p.logger.Error("pipeline run failed", "error", err, "duration", time.Since(start))
		return Result{}, err
	}
	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.metrics.MasterRows.Set(float64(res.Rows))
	p.last.Store(&res)
	p.ready.Store(true)
	p.logger.Info("pipeline run complete",
		"run_id", res.RunID,
		"rows", res.Rows,
		"with_yield", res.Report.WithYield,
		"with_soil", res.Report.WithSoil,
		"with_rainfall", res.Report.WithRainfall,
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	var base []domain.MonthlyAggregate
	err := p.stage(ctx, "weather", func(ctx context.Context) error {
		var err error
		base, err = p.extractWeather(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	var src domain.MasterSources
	if err := p.stage(ctx, "soil", func(ctx context.Context) error {
		var err error
		src.Soil, err = p.extractSoil(ctx)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := p.stage(ctx, "yield", func(ctx context.Context) error {
		var err error
		src.Yield, err = p.extractYield(ctx)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := p.stage(ctx, "rainfall", func(ctx context.Context) error {
		var err error
		src.Rainfall, err = p.extractRainfall(ctx)
		return err
	}); err != nil {
		return Result{}, err
	}

	var (
		rows   []domain.MasterRow
		report domain.BuildReport
	)
	if err := p.stage(ctx, "join", func(_ context.Context) error {
		var err error
		rows, report, err = domain.BuildMaster(base, src, p.opts.Heuristics)
		return err
	}); err != nil {
		return Result{}, err
	}
	p.dropped("weather", "unknown_county", report.UnknownCounty)
	p.dropped("yield", "duplicate", report.DuplicateYield)
	p.dropped("soil", "duplicate", report.DuplicateSoil)
	p.dropped("rainfall", "duplicate", report.DuplicateRainfall)
	if len(rows) == 0 {
		return Result{}, errors.New("master dataset is empty")
	}

	var summary domain.Summary
	if err := p.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		summary, err = p.loader.Load(ctx, rows)
		return err
	}); err != nil {
		return Result{}, err
	}

	event := domain.NewEvent(domain.EventMasterBuilt, domain.MasterBuiltData{
		Path:    p.opts.MasterPath,
		Summary: summary,
	})
	p.publish(ctx, event)

	return Result{RunID: event.ID, Rows: len(rows), Report: report, Summary: summary}, nil
}

// stage runs fn, timing it under the stage label. The context is checked
// before each stage so cancellation takes effect between stages.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn(ctx)
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

func (p *Pipeline) extractWeather(ctx context.Context) ([]domain.MonthlyAggregate, error) {
	if p.sources.Weather == nil {
		return nil, fmt.Errorf("weather: %w", ErrSourceMissing)
	}
	counties, err := p.sources.Weather.Counties(ctx)
	if err != nil {
		return nil, err
	}
	if len(counties) == 0 {
		return nil, fmt.Errorf("weather: no county files: %w", ErrSourceMissing)
	}

	h := p.opts.Heuristics
	var base []domain.MonthlyAggregate
	for _, county := range counties {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obs, err := p.sources.Weather.Hourly(ctx, county)
		if err != nil {
			return nil, fmt.Errorf("weather %s: %w", county, err)
		}
		p.metrics.RowsRead.WithLabelValues("weather").Add(float64(len(obs)))
		if cov := domain.CoverageRatio(len(obs), h.ExpectedHours); cov < h.MinCoverage {
			p.logger.Warn("low weather coverage", "county", county, "records", len(obs), "coverage", cov)
		}
		for i := range obs {
			obs[i] = domain.DeriveHourly(obs[i], h)
		}
		base = append(base, domain.AggregateMonthly(county, obs, h)...)
	}
	p.logger.Info("weather aggregated", "counties", len(counties), "months", len(base))
	return base, nil
}

func (p *Pipeline) extractSoil(ctx context.Context) ([]domain.SoilProfile, error) {
	if p.sources.Soil == nil {
		p.logger.Warn("soil source not configured, soil columns will be empty")
		return nil, nil
	}
	samples, err := p.sources.Soil.Samples(ctx)
	if errors.Is(err, ErrSourceMissing) {
		p.logger.Warn("soil source missing, soil columns will be empty", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.metrics.RowsRead.WithLabelValues("soil").Add(float64(len(samples)))

	profiles, report := domain.AggregateSoil(samples, p.opts.SoilCountry, p.opts.Assigner)
	p.dropped("soil", "other_country", report.OtherCountry)
	p.dropped("soil", "unassigned", report.Unassigned)
	p.logger.Info("soil aggregated",
		"samples", report.Total,
		"assigned", report.Assigned,
		"unassigned", report.Unassigned,
		"counties", len(profiles),
	)
	return profiles, nil
}

func (p *Pipeline) extractYield(ctx context.Context) ([]domain.YieldRecord, error) {
	if p.sources.Yield == nil {
		p.logger.Warn("yield source not configured, yield columns will be empty")
		return nil, nil
	}
	records, dropped, err := p.sources.Yield.Yields(ctx)
	if errors.Is(err, ErrSourceMissing) {
		p.logger.Warn("yield source missing, yield columns will be empty", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.metrics.RowsRead.WithLabelValues("yield").Add(float64(len(records) + dropped))
	p.dropped("yield", "unknown_county", dropped)
	p.logger.Info("yield loaded", "records", len(records), "unknown_county", dropped)
	return records, nil
}

func (p *Pipeline) extractRainfall(ctx context.Context) ([]domain.RainfallSample, error) {
	if p.sources.Rainfall == nil {
		p.logger.Warn("rainfall source not configured, raster rainfall will be empty")
		return nil, nil
	}
	samples, err := p.sources.Rainfall.Rainfall(ctx)
	if errors.Is(err, ErrSourceMissing) {
		p.logger.Warn("rainfall source missing, raster rainfall will be empty", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.metrics.RowsRead.WithLabelValues("rainfall").Add(float64(len(samples)))
	p.logger.Info("rainfall sampled", "samples", len(samples))
	return samples, nil
}

func (p *Pipeline) dropped(source, reason string, n int) {
	if n > 0 {
		p.metrics.RowsDropped.WithLabelValues(source, reason).Add(float64(n))
	}
}

const publishAttempts = 3

// publish sends the run event, retrying with backoff. The master dataset is
// already on disk, so a failed publish is logged and does not fail the run.
func (p *Pipeline) publish(ctx context.Context, event domain.Event) {
	if p.publisher == nil {
		return
	}
	backoff := 200 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := p.publisher.Publish(ctx, event)
		if err == nil {
			p.metrics.EventsPublished.WithLabelValues(event.Type).Inc()
			return
		}
		if attempt == publishAttempts || ctx.Err() != nil {
			p.logger.Error("publish run event failed", "run_id", event.ID, "attempts", attempt, "error", err)
			return
		}
		p.logger.Warn("publish run event, retrying", "run_id", event.ID, "error", err, "backoff", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return
		}
		backoff = sharedretry.NextBackoff(backoff, 5*time.Second)
	}
}
