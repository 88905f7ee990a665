// Command api serves yield predictions over HTTP. It starts unready when no
// model bundle exists yet and picks one up on the reload schedule.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/api"
	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/prediction"
	"github.com/couchcryptid/maize-resilience-service/internal/scheduler"
	"github.com/couchcryptid/maize-resilience-service/internal/store"
	"github.com/couchcryptid/maize-resilience-service/internal/training"
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

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL, nil)
	if err != nil {
		logger.Error("failed to open prediction log", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}

	opts := prediction.DefaultOptions()
	opts.BenchmarkYield = cfg.BenchmarkYield
	opts.CacheSize = cfg.PredictionCacheSize
	svc := prediction.NewService(opts, logger, metrics)

	reload := func(context.Context) error {
		loaded, err := svc.ReloadIfModified(cfg.ModelPath, loadProfiles(cfg, logger))
		if loaded {
			logger.Info("model reloaded", "path", cfg.ModelPath)
		}
		return err
	}
	if err := reload(context.Background()); err != nil {
		logger.Warn("no model loaded, serving unready until one is trained", "path", cfg.ModelPath, "error", err)
	}

	var sched *scheduler.Scheduler
	if cfg.ModelReloadInterval > 0 {
		sched = scheduler.New(logger)
		if err := sched.Add(scheduler.Job{Name: "model-reload", Interval: cfg.ModelReloadInterval, Run: reload}); err != nil {
			logger.Error("failed to schedule model reload", "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	srv := api.NewServer(svc, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Listen(cfg.APIAddr); err != nil {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("prediction log close error", "error", err)
	}
	logger.Info("shutdown complete")
}

// loadProfiles computes county profiles from the master dataset. Without it
// every prediction uses the fallback profile.
func loadProfiles(cfg *config.Config, logger *slog.Logger) map[string]training.CountyProfile {
	rows, err := csvfile.ReadMasterFile(cfg.MasterPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("master dataset not found, county profiles unavailable", "path", cfg.MasterPath())
		} else {
			logger.Error("failed to read master dataset for county profiles", "path", cfg.MasterPath(), "error", err)
		}
		return nil
	}
	return training.CountyProfiles(rows)
}
