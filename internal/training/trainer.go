package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/model"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
)

// ModelType labels bundles produced by this trainer.
const ModelType = "county_specific_random_forest"

// ErrInsufficientData is returned when too few rows survive filtering to
// split, cross-validate and fit.
var ErrInsufficientData = errors.New("insufficient training data")

// Publisher announces a trained model.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Options configure a training run.
type Options struct {
	ModelPath     string
	Version       string
	Params        model.Params
	GridSearch    bool
	Grid          model.Grid
	CVFolds       int
	TestFraction  float64
	Band          YieldBand
	GrowingRainMM float64
}

// DefaultOptions returns the fixed-parameter configuration writing to path.
func DefaultOptions(path string) Options {
	return Options{
		ModelPath:     path,
		Version:       "2.0.0",
		Params:        model.DefaultParams(),
		Grid:          model.DefaultGrid(),
		CVFolds:       5,
		TestFraction:  0.2,
		Band:          DefaultYieldBand(),
		GrowingRainMM: DefaultGrowingRainMM,
	}
}

// Result is the outcome of a successful Train.
type Result struct {
	Path     string
	Bundle   *model.Bundle
	Metadata model.Metadata
	Rows     []AnnualRow
}

// Trainer fits the yield model from master rows and writes the bundle.
type Trainer struct {
	opts      Options
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewTrainer creates a Trainer. publisher may be nil.
func NewTrainer(opts Options, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Trainer {
	return &Trainer{opts: opts, publisher: publisher, logger: logger, metrics: metrics}
}

// Train aggregates rows to annual examples, filters implausible yields,
// imputes gaps and fits the model. It evaluates on a held-out split and by
// k-fold cross-validation on the training part, then refits scaler and
// forest on every row and saves the bundle and its metadata. Nothing is
// written when any step fails.
func (t *Trainer) Train(ctx context.Context, rows []domain.MasterRow) (*Result, error) {
	start := time.Now()
	res, err := t.train(ctx, rows)
	t.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		t.metrics.TrainingRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	t.metrics.TrainingRuns.WithLabelValues("success").Inc()
	t.publish(ctx, res)
	return res, nil
}

func (t *Trainer) train(ctx context.Context, rows []domain.MasterRow) (*Result, error) {
	annual := AggregateAnnual(rows, t.opts.GrowingRainMM)
	kept, removal := FilterYield(annual, t.opts.Band)
	t.logger.Info("annual dataset prepared",
		"annual_rows", len(annual),
		"kept", len(kept),
		"missing_target", removal.MissingTarget,
		"out_of_band", removal.OutOfBand,
		"iqr_outlier", removal.Outlier,
	)
	if len(kept) < 2*t.opts.CVFolds {
		return nil, fmt.Errorf("%w: %d rows after filtering, need %d", ErrInsufficientData, len(kept), 2*t.opts.CVFolds)
	}
	for _, name := range ImputeMean(kept) {
		t.logger.Warn("feature has no values, filled with 0", "feature", name)
	}

	enc := model.NewOneHotEncoder(domain.CountyFeaturePrefix)
	counties := make([]string, len(kept))
	for i, r := range kept {
		counties[i] = r.County
	}
	if err := enc.Fit(counties); err != nil {
		return nil, err
	}
	X := make([][]float64, len(kept))
	y := make([]float64, len(kept))
	for i, r := range kept {
		onehot, _ := enc.Transform(r.County)
		X[i] = append(append(make([]float64, 0, len(r.Features)+len(onehot)), r.Features...), onehot...)
		y[i] = r.Yield
	}

	trainIdx, testIdx, err := model.TrainTestSplit(len(X), t.opts.TestFraction, t.opts.Params.Seed)
	if err != nil {
		return nil, err
	}
	trX, trY := subset(X, y, trainIdx)
	teX, teY := subset(X, y, testIdx)
	var splitScaler model.StandardScaler
	if err := splitScaler.Fit(trX); err != nil {
		return nil, err
	}
	trS, err := splitScaler.TransformAll(trX)
	if err != nil {
		return nil, err
	}
	teS, err := splitScaler.TransformAll(teX)
	if err != nil {
		return nil, err
	}

	params := t.opts.Params
	var searchScore float64
	if t.opts.GridSearch {
		t.logger.Info("grid search started", "candidates", len(t.opts.Grid.Candidates(params.Seed)), "folds", t.opts.CVFolds)
		search, err := model.GridSearch(ctx, trS, trY, t.opts.Grid, t.opts.CVFolds, params.Seed)
		if err != nil {
			return nil, fmt.Errorf("grid search: %w", err)
		}
		params, searchScore = search.Best, search.BestScore
		t.logger.Info("grid search finished", "best_cv_r2", searchScore,
			"n_estimators", params.NumTrees, "max_depth", params.MaxDepth,
			"min_samples_split", params.MinSamplesSplit, "min_samples_leaf", params.MinSamplesLeaf)
	}

	evalModel := model.NewRandomForest(params)
	if err := evalModel.Fit(ctx, trS, trY); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	pred, err := evalModel.PredictAll(teS)
	if err != nil {
		return nil, err
	}
	test := model.Score(teY, pred)
	cv, err := model.CrossValidate(ctx, trS, trY, params, t.opts.CVFolds)
	if err != nil {
		return nil, fmt.Errorf("cross-validate: %w", err)
	}
	t.logger.Info("model evaluated", "test_r2", test.R2, "test_rmse", test.RMSE, "test_mae", test.MAE,
		"cv_r2_mean", cv.Mean, "cv_r2_std", cv.Std)

	var scaler model.StandardScaler
	if err := scaler.Fit(X); err != nil {
		return nil, err
	}
	allS, err := scaler.TransformAll(X)
	if err != nil {
		return nil, err
	}
	final := model.NewRandomForest(params)
	if err := final.Fit(ctx, allS, y); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	bundle := &model.Bundle{
		Model:        final,
		Scaler:       &scaler,
		Encoder:      enc,
		FeatureNames: append(append([]string{}, domain.NumericFeatures...), enc.FeatureNames()...),
	}
	meta := model.Metadata{
		Version:      t.opts.Version,
		ModelType:    ModelType,
		TrainedAt:    domain.Now(),
		Params:       params,
		GridSearched: t.opts.GridSearch,
		Test:         test,
		CV:           cv,
		Rows:         len(kept),
		Removed:      removal.AsMap(),
		Counties:     len(enc.Categories),
		Extra: map[string]float64{
			"train_rows": float64(len(trainIdx)),
			"test_rows":  float64(len(testIdx)),
		},
	}
	if t.opts.GridSearch {
		meta.Extra["grid_best_cv_r2"] = searchScore
	}

	if err := model.SaveArtifacts(t.opts.ModelPath, bundle, meta); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	t.logger.Info("model saved", "path", t.opts.ModelPath, "features", len(bundle.FeatureNames), "counties", meta.Counties)
	return &Result{Path: t.opts.ModelPath, Bundle: bundle, Metadata: meta, Rows: kept}, nil
}

func (t *Trainer) publish(ctx context.Context, res *Result) {
	if t.publisher == nil {
		return
	}
	event := domain.NewEvent(domain.EventModelTrained, domain.ModelTrainedData{
		Path:    t.opts.ModelPath,
		Version: res.Metadata.Version,
		Rows:    res.Metadata.Rows,
		Metrics: map[string]float64{
			"test_r2":    res.Metadata.Test.R2,
			"test_rmse":  res.Metadata.Test.RMSE,
			"test_mae":   res.Metadata.Test.MAE,
			"cv_r2_mean": res.Metadata.CV.Mean,
		},
		Features: res.Bundle.FeatureNames,
	})
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Error("publish training event failed", "run_id", event.ID, "error", err)
		return
	}
	t.metrics.EventsPublished.WithLabelValues(event.Type).Inc()
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	sx := make([][]float64, len(idx))
	sy := make([]float64, len(idx))
	for i, j := range idx {
		sx[i], sy[i] = X[j], y[j]
	}
	return sx, sy
}
