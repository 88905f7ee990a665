// Package store persists prediction requests and reports statistics over
// them. It runs on PostgreSQL in production and SQLite locally and in tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Prediction outcomes stored in PredictionRecord.Status.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PredictionRecord is one logged prediction.
type PredictionRecord struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Rainfall        float64   `gorm:"not null" json:"rainfall"`
	SoilPH          float64   `gorm:"column:soil_ph;not null" json:"soil_ph"`
	OrganicCarbon   float64   `gorm:"not null" json:"organic_carbon"`
	County          string    `gorm:"size:100;default:Unknown" json:"county"`
	Status          string    `gorm:"size:16;index;not null" json:"status"`
	ErrorMessage    string    `gorm:"size:500" json:"error_message,omitempty"`
	ResilienceScore *float64  `json:"resilience_score,omitempty"`
	PredictedYield  *float64  `gorm:"column:yield_prediction" json:"yield_prediction,omitempty"`
	RiskLevel       string    `gorm:"size:16" json:"risk_level,omitempty"`
	ModelVersion    string    `gorm:"size:50" json:"model_version,omitempty"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	ProcessingTime  float64   `json:"processing_time"`
	IPAddress       string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent       string    `gorm:"size:500" json:"user_agent,omitempty"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (PredictionRecord) TableName() string { return "prediction_records" }

// Stats summarizes the prediction log.
type Stats struct {
	Total                  int64   `json:"total_predictions"`
	Successful             int64   `json:"successful_predictions"`
	Failed                 int64   `json:"failed_predictions"`
	SuccessRate            float64 `json:"success_rate"`
	AvgProcessingTime      float64 `json:"average_processing_time"`
	AvgResilienceScore     float64 `json:"average_resilience_score"`
	PredictionsLastHour    int64   `json:"predictions_last_hour"`
	PredictionsLast24Hours int64   `json:"predictions_last_24_hours"`
}

// Store writes and queries prediction records.
type Store struct {
	db    *gorm.DB
	clock clockwork.Clock
}

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the schema.
func Open(driver, dsn string, clock clockwork.Clock) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// Every connection to ":memory:" is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, clock)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB, clock clockwork.Clock) (*Store, error) {
	if err := db.AutoMigrate(&PredictionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}, nil
}

// Save inserts rec, assigning an ID and timestamp when they are unset.
func (s *Store) Save(ctx context.Context, rec *PredictionRecord) error {
	s.prepare(rec)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

// SaveBatch inserts recs in one transaction.
func (s *Store) SaveBatch(ctx context.Context, recs []PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for i := range recs {
		s.prepare(&recs[i])
	}
	if err := s.db.WithContext(ctx).CreateInBatches(recs, 200).Error; err != nil {
		return fmt.Errorf("save predictions: %w", err)
	}
	return nil
}

func (s *Store) prepare(rec *PredictionRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock.Now().UTC()
	}
	if rec.County == "" {
		rec.County = "Unknown"
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
}

// Get returns the record with id, or gorm.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, id string) (PredictionRecord, error) {
	var rec PredictionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	return rec, err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]PredictionRecord, error) {
	var recs []PredictionRecord
	err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query recent predictions: %w", err)
	}
	return recs, nil
}

// Stats aggregates the whole log.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx).Model(&PredictionRecord{})
	var out Stats
	if err := db.Count(&out.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("count predictions: %w", err)
	}
	if out.Total == 0 {
		return out, nil
	}

	var agg struct {
		Successful    int64
		AvgProcessing float64
		AvgResilience *float64
	}
	err := s.db.WithContext(ctx).Model(&PredictionRecord{}).
		Select("SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS successful, "+
			"COALESCE(AVG(processing_time), 0) AS avg_processing, "+
			"AVG(resilience_score) AS avg_resilience", StatusSuccess).
		Scan(&agg).Error
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate predictions: %w", err)
	}
	out.Successful = agg.Successful
	out.Failed = out.Total - agg.Successful
	out.SuccessRate = float64(agg.Successful) / float64(out.Total) * 100
	out.AvgProcessingTime = agg.AvgProcessing
	if agg.AvgResilience != nil {
		out.AvgResilienceScore = *agg.AvgResilience
	}

	now := s.clock.Now().UTC()
	if out.PredictionsLastHour, err = s.countSince(ctx, now.Add(-time.Hour)); err != nil {
		return Stats{}, err
	}
	if out.PredictionsLast24Hours, err = s.countSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return Stats{}, err
	}
	return out, nil
}

func (s *Store) countSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&PredictionRecord{}).Where("timestamp >= ?", since).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count predictions since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsNotFound reports whether err means no record matched.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
