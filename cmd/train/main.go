// Command train fits the yield model from the master dataset and writes the
// model bundle and its metadata to MODEL_PATH.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/maize-resilience-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/maize-resilience-service/internal/adapter/kafka"
	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/model"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/training"
)

// trainingRun reports readiness once a model has been written.
type trainingRun struct {
	done atomic.Bool
}

func (r *trainingRun) CheckReadiness(_ context.Context) error {
	if !r.done.Load() {
		return errors.New("training in progress")
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var publisher training.Publisher
	var writer *kafkaadapter.Writer
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
	}

	opts := training.DefaultOptions(cfg.ModelPath)
	opts.GridSearch = cfg.GridSearch
	opts.CVFolds = cfg.CVFolds
	opts.TestFraction = cfg.TestFraction
	opts.Band = training.YieldBand{Min: cfg.YieldMin, Max: cfg.YieldMax}
	opts.Params = model.Params{
		NumTrees:        cfg.NumTrees,
		MaxDepth:        cfg.MaxDepth,
		MinSamplesSplit: opts.Params.MinSamplesSplit,
		MinSamplesLeaf:  opts.Params.MinSamplesLeaf,
		Seed:            cfg.RandomSeed,
	}

	run := &trainingRun{}
	srv := httpadapter.NewServer(cfg.HTTPAddr, run, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if err := trainModel(ctx, cfg, opts, publisher, logger, metrics); err != nil {
		logger.Error("training failed", "error", err)
		exitCode = 1
	} else {
		run.done.Store(true)
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
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}

func trainModel(ctx context.Context, cfg *config.Config, opts training.Options, publisher training.Publisher, logger *slog.Logger, metrics *observability.Metrics) error {
	rows, err := csvfile.ReadMasterFile(cfg.MasterPath())
	if err != nil {
		return err
	}
	logger.Info("master dataset loaded", "path", cfg.MasterPath(), "rows", len(rows))

	res, err := training.NewTrainer(opts, publisher, logger, metrics).Train(ctx, rows)
	if err != nil {
		return err
	}
	logger.Info("training complete",
		"path", res.Path,
		"rows", res.Metadata.Rows,
		"test_r2", res.Metadata.Test.R2,
		"test_rmse", res.Metadata.Test.RMSE,
		"cv_r2_mean", res.Metadata.CV.Mean,
	)
	return nil
}
