package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	HeuristicsFile  string

	// Pipeline inputs and outputs.
	WeatherDir     string
	SoilFile       string
	SoilCountry    string
	SoilShapefile  string
	SoilShapeField string
	YieldFile      string
	RasterDir      string
	RasterVar      string
	RasterFromYear int
	RasterToYear   int
	OutputDir      string

	// Open-Meteo collector.
	OpenMeteoURL        string
	OpenMeteoTimeout    time.Duration
	OpenMeteoMaxRetries int
	CollectStart        time.Time
	CollectEnd          time.Time
	CollectDelay        time.Duration

	// Training.
	ModelPath    string
	GridSearch   bool
	CVFolds      int
	RandomSeed   int64
	YieldMin     float64
	YieldMax     float64
	TestFraction float64
	NumTrees     int
	MaxDepth     int

	// Prediction API.
	APIAddr             string
	BenchmarkYield      float64
	PredictionCacheSize int
	DatabaseDriver      string
	DatabaseURL         string
	ModelReloadInterval time.Duration
	PipelineInterval    time.Duration

	// Pipeline events.
	EventsEnabled      bool
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// MasterPath is the master dataset written by the pipeline.
func (c *Config) MasterPath() string {
	return filepath.Join(c.OutputDir, "master_dataset.csv")
}

// SummaryPath is the summary JSON written next to the master dataset.
func (c *Config) SummaryPath() string {
	return filepath.Join(c.OutputDir, "master_dataset_summary.json")
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		HeuristicsFile:  os.Getenv("HEURISTICS_FILE"),

		WeatherDir:     sharedcfg.EnvOrDefault("WEATHER_DIR", "data/raw/weather"),
		SoilFile:       sharedcfg.EnvOrDefault("SOIL_FILE", "data/raw/soil/isric_soil_data.csv"),
		SoilCountry:    sharedcfg.EnvOrDefault("SOIL_COUNTRY", "KE"),
		SoilShapefile:  os.Getenv("SOIL_COUNTY_SHAPEFILE"),
		SoilShapeField: sharedcfg.EnvOrDefault("SOIL_COUNTY_FIELD", "COUNTY"),
		YieldFile:      sharedcfg.EnvOrDefault("YIELD_FILE", "data/raw/yield/maize_yield.csv"),
		RasterDir:      sharedcfg.EnvOrDefault("RASTER_DIR", "data/raw/chirps"),
		RasterVar:      sharedcfg.EnvOrDefault("RASTER_VAR", "precip"),
		RasterFromYear: p.int("RASTER_FROM_YEAR", 2019),
		RasterToYear:   p.int("RASTER_TO_YEAR", 2023),
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/processed"),

		OpenMeteoURL:        sharedcfg.EnvOrDefault("OPENMETEO_URL", "https://archive-api.open-meteo.com/v1/archive"),
		OpenMeteoTimeout:    p.duration("OPENMETEO_TIMEOUT", 60*time.Second),
		OpenMeteoMaxRetries: p.int("OPENMETEO_MAX_RETRIES", 3),
		CollectStart:        p.date("COLLECT_START", "2019-01-01"),
		CollectEnd:          p.date("COLLECT_END", "2023-12-31"),
		CollectDelay:        p.duration("COLLECT_DELAY", time.Second),

		ModelPath:    sharedcfg.EnvOrDefault("MODEL_PATH", "models/maize_model.json"),
		GridSearch:   p.bool("TRAIN_GRID_SEARCH", false),
		CVFolds:      p.int("TRAIN_CV_FOLDS", 5),
		RandomSeed:   int64(p.int("TRAIN_SEED", 42)),
		YieldMin:     p.float("YIELD_MIN", 0.8),
		YieldMax:     p.float("YIELD_MAX", 5.0),
		TestFraction: p.float("TRAIN_TEST_FRACTION", 0.2),
		NumTrees:     p.int("TRAIN_TREES", 100),
		MaxDepth:     p.int("TRAIN_MAX_DEPTH", 10),

		APIAddr:             sharedcfg.EnvOrDefault("API_ADDR", ":8000"),
		BenchmarkYield:      p.float("BENCHMARK_YIELD", 2.5),
		PredictionCacheSize: p.int("PREDICTION_CACHE_SIZE", 1000),
		DatabaseDriver:      sharedcfg.EnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:         sharedcfg.EnvOrDefault("DATABASE_URL", "data/predictions.db"),
		ModelReloadInterval: p.duration("MODEL_RELOAD_INTERVAL", 0),
		PipelineInterval:    p.duration("PIPELINE_INTERVAL", 0),

		EventsEnabled:      p.bool("EVENTS_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "maize-pipeline-events"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}
	if p.err != nil {
		return nil, p.err
	}

	switch {
	case cfg.RasterFromYear > cfg.RasterToYear:
		return nil, errors.New("RASTER_FROM_YEAR must not exceed RASTER_TO_YEAR")
	case !cfg.CollectEnd.After(cfg.CollectStart):
		return nil, errors.New("COLLECT_END must be after COLLECT_START")
	case cfg.OpenMeteoTimeout <= 0:
		return nil, errors.New("OPENMETEO_TIMEOUT must be positive")
	case cfg.OpenMeteoMaxRetries < 0:
		return nil, errors.New("OPENMETEO_MAX_RETRIES must not be negative")
	case cfg.CollectDelay < 0:
		return nil, errors.New("COLLECT_DELAY must not be negative")
	case cfg.CVFolds < 2:
		return nil, errors.New("TRAIN_CV_FOLDS must be at least 2")
	case cfg.YieldMin >= cfg.YieldMax:
		return nil, errors.New("YIELD_MIN must be below YIELD_MAX")
	case cfg.TestFraction <= 0 || cfg.TestFraction >= 1:
		return nil, errors.New("TRAIN_TEST_FRACTION must be within (0, 1)")
	case cfg.NumTrees < 1:
		return nil, errors.New("TRAIN_TREES must be positive")
	case cfg.MaxDepth < 0:
		return nil, errors.New("TRAIN_MAX_DEPTH must not be negative")
	case cfg.BenchmarkYield <= 0:
		return nil, errors.New("BENCHMARK_YIELD must be positive")
	case cfg.PredictionCacheSize < 0:
		return nil, errors.New("PREDICTION_CACHE_SIZE must not be negative")
	case cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres":
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", cfg.DatabaseDriver)
	case cfg.ModelReloadInterval < 0 || cfg.PipelineInterval < 0:
		return nil, errors.New("MODEL_RELOAD_INTERVAL and PIPELINE_INTERVAL must not be negative")
	case cfg.EventsEnabled && len(cfg.KafkaBrokers) == 0:
		return nil, errors.New("KAFKA_BROKERS is required when EVENTS_ENABLED is true")
	case cfg.EventsEnabled && cfg.KafkaTopic == "":
		return nil, errors.New("KAFKA_TOPIC is required when EVENTS_ENABLED is true")
	}

	return cfg, nil
}

// parser reads typed env vars and keeps the first error, which names the
// offending variable.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) int(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return d
}

func (p *parser) date(key, def string) time.Time {
	s := sharedcfg.EnvOrDefault(key, def)
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		p.fail(key, s)
		return time.Time{}
	}
	return t
}
