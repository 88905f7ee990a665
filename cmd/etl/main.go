// Command etl builds the master dataset from the weather, soil, yield and
// rainfall sources. With PIPELINE_INTERVAL set it stays up and rebuilds on
// that schedule; otherwise it runs once and exits.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/maize-resilience-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/maize-resilience-service/internal/adapter/kafka"
	"github.com/couchcryptid/maize-resilience-service/internal/adapter/raster"
	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/geo"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/pipeline"
	"github.com/couchcryptid/maize-resilience-service/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	heuristics, err := domain.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		logger.Error("failed to load heuristics", "error", err)
		os.Exit(1)
	}

	var assigner domain.CountyAssigner = geo.DefaultBBoxAssigner()
	if cfg.SoilShapefile != "" {
		shapes, err := geo.LoadShapeAssigner(cfg.SoilShapefile, cfg.SoilShapeField)
		if err != nil {
			logger.Error("failed to load county shapefile", "path", cfg.SoilShapefile, "error", err)
			os.Exit(1)
		}
		for _, name := range shapes.Skipped() {
			logger.Warn("shapefile polygon does not name a county", "name", name)
		}
		assigner = shapes
	}

	// Left as a nil interface when events are disabled.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("pipeline events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	sources := pipeline.Sources{
		Weather: &pipeline.WeatherDir{Dir: cfg.WeatherDir, Logger: logger},
		Soil:    pipeline.SoilFile{Path: cfg.SoilFile},
		Yield:   pipeline.YieldFile{Path: cfg.YieldFile},
		Rainfall: pipeline.RasterDir{
			Dir:    cfg.RasterDir,
			Var:    cfg.RasterVar,
			Window: raster.Window{FromYear: cfg.RasterFromYear, ToYear: cfg.RasterToYear},
			Logger: logger,
		},
	}
	loader := pipeline.FileLoader{MasterPath: cfg.MasterPath(), SummaryPath: cfg.SummaryPath()}
	p := pipeline.New(sources, loader, publisher, pipeline.Options{
		Heuristics:  heuristics,
		SoilCountry: cfg.SoilCountry,
		Assigner:    assigner,
		MasterPath:  cfg.MasterPath(),
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	srv.HandleJSON("/runs/last", func() any {
		if last := p.Last(); last != nil {
			return last
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	exitCode := 0
	_, runErr := p.Run(ctx)
	if cfg.PipelineInterval > 0 {
		sched := scheduler.New(logger)
		err := sched.Add(scheduler.Job{
			Name:     "pipeline",
			Interval: cfg.PipelineInterval,
			Run: func(ctx context.Context) error {
				_, err := p.Run(ctx)
				return err
			},
		})
		if err != nil {
			logger.Error("failed to schedule pipeline", "error", err)
			os.Exit(1)
		}
		sched.Start()
		<-ctx.Done()
		logger.Info("shutting down")
		sched.Stop()
	} else if runErr != nil {
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}
