// Package prediction serves yield predictions from a trained model bundle.
// The service starts unfit and becomes ready once a bundle is loaded;
// reloads swap the model atomically and clear the result cache.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/model"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/training"
)

var (
	// ErrModelNotReady is returned while no model is loaded.
	ErrModelNotReady = errors.New("model not ready")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid prediction request")
)

// MaxBatch is the largest accepted batch.
const MaxBatch = 1000

// Risk levels derived from the resilience score.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Request is one prediction input. County is optional.
type Request struct {
	Rainfall      float64 `json:"rainfall" validate:"gte=0,lte=3000"`
	SoilPH        float64 `json:"soil_ph" validate:"gte=4,lte=10"`
	OrganicCarbon float64 `json:"organic_carbon" validate:"gte=0.1,lte=10"`
	County        string  `json:"county,omitempty" validate:"max=100"`
}

// Result is the prediction for one request.
type Result struct {
	ResilienceScore   float64            `json:"resilience_score"`
	PredictedYield    float64            `json:"predicted_yield"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	BenchmarkYield    float64            `json:"benchmark_yield"`
	County            string             `json:"county"`
	KnownCounty       bool               `json:"known_county"`
	RiskLevel         string             `json:"risk_level"`
	Recommendations   []string           `json:"recommendations"`
	ModelVersion      string             `json:"model_version"`
	DefaultsUsed      []string           `json:"defaults_used,omitempty"`
}

// Fallbacks are the auxiliary feature values used when a county profile is
// missing or incomplete.
type Fallbacks struct {
	Temperature        float64 `yaml:"temperature"`
	TemperatureStd     float64 `yaml:"temperature_std"`
	Humidity           float64 `yaml:"humidity"`
	HumidityStd        float64 `yaml:"humidity_std"`
	SoilClay           float64 `yaml:"soil_clay"`
	PrecipitationStd   float64 `yaml:"precipitation_std"`
	ClimateVariability float64 `yaml:"climate_variability"`
	GrowingSeason      float64 `yaml:"growing_season"`
}

// DefaultFallbacks returns the standard substitutes.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Temperature:        25,
		TemperatureStd:     5,
		Humidity:           70,
		HumidityStd:        10,
		SoilClay:           20,
		PrecipitationStd:   50,
		ClimateVariability: 65,
		GrowingSeason:      3,
	}
}

// Options configure a Service.
type Options struct {
	BenchmarkYield float64
	CacheSize      int
	Fallbacks      Fallbacks
	// LowRisk and MediumRisk are the resilience scores above which a
	// prediction is rated Low and Medium risk.
	LowRisk    float64
	MediumRisk float64
}

// DefaultOptions returns a 2.5 t/ha benchmark and a 1000-entry cache.
func DefaultOptions() Options {
	return Options{
		BenchmarkYield: 2.5,
		CacheSize:      1000,
		Fallbacks:      DefaultFallbacks(),
		LowRisk:        70,
		MediumRisk:     50,
	}
}

// state is an immutable snapshot of a loaded model.
type state struct {
	bundle     *model.Bundle
	meta       *model.Metadata
	profiles   map[string]training.CountyProfile
	importance map[string]float64
	path       string
	modTime    time.Time
	loadedAt   time.Time
	generation uint64
}

// Service predicts yields. It is safe for concurrent use.
type Service struct {
	opts     Options
	state    atomic.Pointer[state]
	loads    atomic.Uint64
	cache    *lruCache
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates an unfit service.
func NewService(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	metrics.ModelLoaded.Set(0)
	return &Service{
		opts:     opts,
		cache:    newLRUCache(opts.CacheSize),
		validate: v,
		logger:   logger,
		metrics:  metrics,
	}
}

// Load installs a bundle with its county profiles and optional metadata.
// profiles may be nil, in which case every county uses the fallbacks.
func (s *Service) Load(b *model.Bundle, profiles map[string]training.CountyProfile, meta *model.Metadata) error {
	return s.install(b, profiles, meta, "", time.Time{})
}

// LoadFile reads a bundle and, when present, its metadata file.
func (s *Service) LoadFile(path string, profiles map[string]training.CountyProfile) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	b, err := model.LoadBundle(path)
	if err != nil {
		return err
	}
	var meta *model.Metadata
	m, err := model.LoadMetadata(model.MetadataPath(path))
	switch {
	case err == nil:
		meta = &m
	case errors.Is(err, os.ErrNotExist):
		s.logger.Warn("model metadata not found", "path", model.MetadataPath(path))
	default:
		return err
	}
	return s.install(b, profiles, meta, path, info.ModTime())
}

// ReloadIfModified loads path unless it is the loaded bundle and its
// modification time is unchanged. It reports whether a load happened.
func (s *Service) ReloadIfModified(path string, profiles map[string]training.CountyProfile) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat bundle: %w", err)
	}
	if st := s.state.Load(); st != nil && st.path == path && st.modTime.Equal(info.ModTime()) {
		return false, nil
	}
	if err := s.LoadFile(path, profiles); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) install(b *model.Bundle, profiles map[string]training.CountyProfile, meta *model.Metadata, path string, modTime time.Time) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", model.ErrInvalidBundle)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if profiles == nil {
		profiles = map[string]training.CountyProfile{}
	}
	s.state.Store(&state{
		bundle:     b,
		meta:       meta,
		profiles:   profiles,
		importance: b.FeatureImportance(),
		path:       path,
		modTime:    modTime,
		loadedAt:   domain.Now(),
		generation: s.loads.Add(1),
	})
	s.cache.purge()
	s.metrics.ModelLoaded.Set(1)
	s.logger.Info("model loaded",
		"path", path,
		"features", len(b.FeatureNames),
		"counties", len(b.Encoder.Categories),
		"profiles", len(profiles),
	)
	return nil
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool {
	return s.state.Load() != nil
}

// CheckReadiness returns ErrModelNotReady until a model is loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.Ready() {
		return ErrModelNotReady
	}
	return nil
}

// Validate checks request ranges. Failures wrap ErrInvalidRequest and a
// validator.ValidationErrors.
func (s *Service) Validate(req Request) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Predict validates req and returns the predicted yield and resilience
// score. An unknown or empty county is not an error: the county falls back
// to the first trained category and the default profile.
func (s *Service) Predict(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := s.predict(ctx, req)
	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	s.metrics.PredictionRequests.WithLabelValues(outcome(err)).Inc()
	return res, err
}

func (s *Service) predict(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	st := s.state.Load()
	if st == nil {
		return Result{}, ErrModelNotReady
	}
	if err := s.Validate(req); err != nil {
		return Result{}, err
	}

	county := normalizeCounty(req.County)
	key := cacheKey(st.generation, req, county)
	if res, ok := s.cache.get(key); ok {
		s.metrics.PredictionCache.WithLabelValues("hit").Inc()
		if len(res.DefaultsUsed) > 0 {
			s.logger.Warn("cached prediction used profile defaults",
				"county", county, "known_county", res.KnownCounty, "defaults", res.DefaultsUsed)
		}
		return res, nil
	}
	s.metrics.PredictionCache.WithLabelValues("miss").Inc()

	numeric, defaults := s.features(st, req, county)
	yield, known, err := st.bundle.Predict(numeric, county)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if !known {
		s.logger.Warn("county not in training data, using fallback encoding",
			"county", county, "fallback", st.bundle.Encoder.Categories[0])
	}

	score := domain.Round(domain.Clamp(yield/s.opts.BenchmarkYield*100, 0, 100), 1)
	res := Result{
		ResilienceScore:   score,
		PredictedYield:    domain.Round(yield, 2),
		FeatureImportance: maps.Clone(st.importance),
		BenchmarkYield:    s.opts.BenchmarkYield,
		County:            county,
		KnownCounty:       known,
		RiskLevel:         s.riskLevel(score),
		Recommendations:   s.recommendations(score),
		ModelVersion:      st.version(),
		DefaultsUsed:      defaults,
	}
	s.cache.put(key, res)
	s.logger.Debug("prediction",
		"county", county,
		"rainfall", req.Rainfall,
		"soil_ph", req.SoilPH,
		"organic_carbon", req.OrganicCarbon,
		"predicted_yield", res.PredictedYield,
		"resilience_score", res.ResilienceScore,
	)
	return res, nil
}

// features assembles the numeric inputs. Request values fill rainfall, pH
// and organic carbon; the county profile fills the rest, with each missing
// group replaced by its fallback and reported by name.
func (s *Service) features(st *state, req Request, county string) (map[string]float64, []string) {
	fb := s.opts.Fallbacks
	avgTemp, tempStd := fb.Temperature, fb.TemperatureStd
	avgHum, humStd := fb.Humidity, fb.HumidityStd
	clay := fb.SoilClay
	avgPrecip, precipStd := req.Rainfall, fb.PrecipitationStd
	climateVar := fb.ClimateVariability
	soilQuality := training.SoilQuality(req.SoilPH, req.OrganicCarbon, fb.SoilClay)

	var defaults []string
	use := func(name string) {
		defaults = append(defaults, name)
		s.logger.Warn("county profile value missing, using default", "county", county, "feature", name)
	}

	p, ok := st.profiles[county]
	if !ok {
		s.logger.Warn("county profile not found, using defaults", "county", county)
		defaults = []string{"temperature", "humidity", "soil_clay", "precipitation", "climate_variability", "soil_quality"}
	} else {
		if p.AvgTemperature != nil && p.TemperatureStd != nil {
			avgTemp, tempStd = *p.AvgTemperature, *p.TemperatureStd
		} else {
			use("temperature")
		}
		if p.AvgHumidity != nil && p.HumidityStd != nil {
			avgHum, humStd = *p.AvgHumidity, *p.HumidityStd
		} else {
			use("humidity")
		}
		if p.SoilClay != nil {
			clay = *p.SoilClay
		} else {
			use("soil_clay")
		}
		if p.AvgPrecipitation != nil && p.PrecipitationStd != nil {
			avgPrecip, precipStd = *p.AvgPrecipitation, *p.PrecipitationStd
		} else {
			use("precipitation")
		}
		if p.ClimateVariability != nil {
			climateVar = *p.ClimateVariability
		} else {
			use("climate_variability")
		}
		if p.SoilQualityScore != nil {
			soilQuality = *p.SoilQualityScore
		} else {
			use("soil_quality")
		}
	}

	return map[string]float64{
		domain.FeatAnnualRainfall:     req.Rainfall,
		domain.FeatAvgRainfall:        avgPrecip,
		domain.FeatRainfallStd:        precipStd,
		domain.FeatAvgTemperature:     avgTemp,
		domain.FeatTemperatureStd:     tempStd,
		domain.FeatAvgHumidity:        avgHum,
		domain.FeatHumidityStd:        humStd,
		domain.FeatSoilPH:             req.SoilPH,
		domain.FeatSoilOrganicCarbon:  req.OrganicCarbon,
		domain.FeatSoilClay:           clay,
		domain.FeatGrowingSeason:      fb.GrowingSeason,
		domain.FeatWaterStressIndex:   training.WaterStress(req.Rainfall, avgTemp),
		domain.FeatSoilQualityScore:   soilQuality,
		domain.FeatClimateVariability: climateVar,
	}, defaults
}

func (s *Service) riskLevel(score float64) string {
	switch {
	case score > s.opts.LowRisk:
		return RiskLow
	case score > s.opts.MediumRisk:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func (s *Service) recommendations(score float64) []string {
	first := "Consider soil improvement strategies"
	if score > s.opts.LowRisk {
		first = "Maintain current soil management practices"
	}
	return []string{
		first,
		"Monitor rainfall patterns",
		"Consider crop rotation",
		"Optimize irrigation if available",
	}
}

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Index  int     `json:"index"`
	Input  Request `json:"input"`
	Result *Result `json:"prediction,omitempty"`
	Error  string  `json:"error,omitempty"`
	Status string  `json:"status"`

	err error
}

// Err returns the item's error, if any.
func (b BatchItem) Err() error { return b.err }

// PredictBatch predicts each request independently. The batch must hold
// 1..MaxBatch requests; a request that fails validation is reported in its
// item and does not fail the others.
func (s *Service) PredictBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 || len(reqs) > MaxBatch {
		return nil, fmt.Errorf("%w: batch size %d outside 1..%d", ErrInvalidRequest, len(reqs), MaxBatch)
	}
	if !s.Ready() {
		return nil, ErrModelNotReady
	}
	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		items[i] = BatchItem{Index: i, Input: req}
		res, err := s.Predict(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			items[i].Status, items[i].Error, items[i].err = "error", err.Error(), err
			continue
		}
		items[i].Status, items[i].Result = "success", &res
	}
	return items, nil
}

// Status describes the loaded model.
type Status struct {
	Loaded       bool               `json:"is_trained"`
	ModelType    string             `json:"algorithm,omitempty"`
	Version      string             `json:"version,omitempty"`
	Path         string             `json:"path,omitempty"`
	LoadedAt     *time.Time         `json:"loaded_at,omitempty"`
	TrainedAt    *time.Time         `json:"last_training,omitempty"`
	FeatureNames []string           `json:"feature_names"`
	Params       *model.Params      `json:"model_params,omitempty"`
	Performance  map[string]float64 `json:"performance_metrics,omitempty"`
	Counties     int                `json:"counties"`
	CacheEntries int                `json:"cache_entries"`
}

// Status reports the current model; Loaded is false while unfit.
func (s *Service) Status() Status {
	st := s.state.Load()
	if st == nil {
		return Status{FeatureNames: []string{}}
	}
	out := Status{
		Loaded:       true,
		Version:      st.version(),
		Path:         st.path,
		LoadedAt:     &st.loadedAt,
		FeatureNames: st.bundle.FeatureNames,
		Params:       &st.bundle.Model.Params,
		Counties:     len(st.bundle.Encoder.Categories),
		CacheEntries: s.cache.len(),
	}
	if st.meta != nil {
		out.ModelType = st.meta.ModelType
		out.TrainedAt = &st.meta.TrainedAt
		out.Performance = map[string]float64{
			"r2_score": st.meta.Test.R2,
			"rmse":     st.meta.Test.RMSE,
			"mae":      st.meta.Test.MAE,
			"cv_score": st.meta.CV.Mean,
		}
	}
	return out
}

// FeatureImportance returns the loaded model's importances by feature name.
func (s *Service) FeatureImportance() (map[string]float64, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrModelNotReady
	}
	return maps.Clone(st.importance), nil
}

// Counties lists the counties with a profile, or the trained categories
// when no profiles were loaded.
func (s *Service) Counties() ([]string, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrModelNotReady
	}
	if len(st.profiles) > 0 {
		return training.SortedCounties(st.profiles), nil
	}
	return append([]string(nil), st.bundle.Encoder.Categories...), nil
}

// Profile returns the profile of a county, matched case-insensitively.
func (s *Service) Profile(county string) (training.CountyProfile, bool) {
	st := s.state.Load()
	if st == nil {
		return training.CountyProfile{}, false
	}
	p, ok := st.profiles[normalizeCounty(county)]
	return p, ok
}

func (st *state) version() string {
	if st.meta != nil && st.meta.Version != "" {
		return st.meta.Version
	}
	return "unknown"
}

// normalizeCounty maps a county to its canonical spelling when recognized
// and trims it otherwise. An empty county becomes domain.UnknownCounty.
func normalizeCounty(county string) string {
	county = strings.TrimSpace(county)
	if county == "" {
		return domain.UnknownCounty
	}
	if c, ok := domain.CanonicalCounty(county); ok {
		return c
	}
	return county
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrModelNotReady):
		return "not_ready"
	default:
		return "error"
	}
}
