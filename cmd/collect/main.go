// Command collect downloads hourly Open-Meteo archive weather for each county
// and writes one weather_data_<county>.csv per county into WEATHER_DIR.
//
// Usage:
//
//	go run ./cmd/collect [-counties Nakuru,Bomet]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/maize-resilience-service/internal/collector"
	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
)

func main() {
	only := flag.String("counties", "", "comma-separated counties to collect (default all 47)")
	flag.Parse()

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

	counties := domain.Counties
	if *only != "" {
		counties = nil
		for _, name := range strings.Split(*only, ",") {
			county, ok := domain.CanonicalCounty(name)
			if !ok {
				logger.Error("unknown county", "county", name)
				os.Exit(1)
			}
			counties = append(counties, county)
		}
	}

	client := openmeteo.NewClient(cfg.OpenMeteoURL, cfg.OpenMeteoTimeout, cfg.OpenMeteoMaxRetries, metrics, logger)
	c := collector.New(client, collector.Options{
		OutputDir:  cfg.WeatherDir,
		Start:      cfg.CollectStart,
		End:        cfg.CollectEnd,
		Delay:      cfg.CollectDelay,
		Heuristics: heuristics,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("collection started",
		"counties", len(counties),
		"start", cfg.CollectStart.Format("2006-01-02"),
		"end", cfg.CollectEnd.Format("2006-01-02"),
		"output_dir", cfg.WeatherDir,
	)
	results, err := c.Run(ctx, counties)
	var ok, records int
	for _, r := range results {
		if r.Err == nil {
			ok++
			records += r.Records
		}
	}
	logger.Info("collection finished", "succeeded", ok, "failed", len(results)-ok, "records", records)
	if err != nil {
		logger.Error("collection failed", "error", err)
		stop()
		os.Exit(1)
	}
}
