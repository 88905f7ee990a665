// Package trainingtest provides synthetic master rows and small trained
// bundles for tests.
package trainingtest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/model"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/training"
)

// Counties are the counties present in MasterRows, sorted.
var Counties = []string{"Bomet", "Kisumu", "Nakuru", "Nyeri"}

func f(v float64) *float64 { return &v }

// MasterRows returns five years (2019-2023) of monthly rows for Counties.
// Yield rises with county index and year so a forest has something to fit.
func MasterRows() []domain.MasterRow {
	var rows []domain.MasterRow
	for ci, county := range Counties {
		soil := &domain.SoilProfile{County: county, Values: map[string]*float64{
			"pH_H2O":         f(5.5 + 0.3*float64(ci)),
			"Organic_Carbon": f(1 + 0.5*float64(ci)),
			"Clay":           f(20 + 5*float64(ci)),
		}}
		for year := 2019; year <= 2023; year++ {
			yield := &domain.YieldRecord{County: county, Year: year,
				YieldTonnesHa: f(1.5 + 0.4*float64(ci) + 0.1*float64(year-2019))}
			for month := 1; month <= 12; month++ {
				rows = append(rows, domain.MasterRow{
					MonthlyAggregate: domain.MonthlyAggregate{
						MonthKey:      domain.MonthKey{County: county, Year: year, Month: month},
						Temperature:   f(20 + float64(ci) + float64(month%3)),
						Humidity:      f(60 + 2*float64(month)),
						Precipitation: f(30 + 10*float64(month) + 20*float64(ci) + 5*float64(year-2019)),
					},
					Soil:  soil,
					Yield: yield,
				})
			}
		}
	}
	return rows
}

// Options returns fast training options writing under t.TempDir().
func Options(t testing.TB) training.Options {
	t.Helper()
	opts := training.DefaultOptions(filepath.Join(t.TempDir(), "models", "maize.json"))
	opts.Params = model.Params{NumTrees: 10, MaxDepth: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42}
	opts.CVFolds = 3
	return opts
}

// Train fits a small model on MasterRows and fails the test on error.
func Train(t testing.TB) *training.Result {
	t.Helper()
	tr := training.NewTrainer(Options(t), nil, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())
	res, err := tr.Train(context.Background(), MasterRows())
	if err != nil {
		t.Fatalf("train fixture model: %v", err)
	}
	return res
}
