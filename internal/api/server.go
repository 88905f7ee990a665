// Package api serves the prediction HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/maize-resilience-service/internal/prediction"
	"github.com/couchcryptid/maize-resilience-service/internal/store"
)

// PredictionLog records predictions and reports statistics over them.
type PredictionLog interface {
	Save(ctx context.Context, rec *store.PredictionRecord) error
	SaveBatch(ctx context.Context, recs []store.PredictionRecord) error
	Stats(ctx context.Context) (store.Stats, error)
}

// Server is the prediction API.
type Server struct {
	app     *fiber.App
	svc     *prediction.Service
	log     PredictionLog
	logger  *slog.Logger
	timeout time.Duration
}

// NewServer builds the fiber app and registers all routes. log may be nil,
// in which case predictions are not recorded and /api/metrics reports 503.
func NewServer(svc *prediction.Service, log PredictionLog, logger *slog.Logger) *Server {
	s := &Server{svc: svc, log: log, logger: logger, timeout: 5 * time.Second}
	s.app = fiber.New(fiber.Config{
		AppName:               "maize-resilience-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		BodyLimit:             4 * 1024 * 1024,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.accessLog)

	s.app.Get("/healthz", adaptor.HTTPHandlerFunc(sharedobs.LivenessHandler()))
	s.app.Get("/readyz", adaptor.HTTPHandlerFunc(sharedobs.ReadinessHandler(svc)))
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api")
	v1.Post("/predict", s.predict)
	v1.Post("/predict/batch", s.predictBatch)
	v1.Get("/counties", s.counties)
	v1.Get("/counties/:county/profile", s.countyProfile)
	v1.Get("/model/status", s.modelStatus)
	v1.Get("/model/feature-importance", s.featureImportance)
	v1.Get("/metrics", s.stats)
	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("api server starting", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if err != nil && errors.As(err, &fe) {
		status = fe.Code
	}
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}
