package api

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/prediction"
	"github.com/couchcryptid/maize-resilience-service/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// predictBody uses pointers so an absent field is told apart from zero.
// Ranges are checked by the prediction service.
type predictBody struct {
	Rainfall      *float64 `json:"rainfall" validate:"required"`
	SoilPH        *float64 `json:"soil_ph" validate:"required"`
	OrganicCarbon *float64 `json:"organic_carbon" validate:"required"`
	County        string   `json:"county"`
}

func (b predictBody) request() prediction.Request {
	return prediction.Request{
		Rainfall:      *b.Rainfall,
		SoilPH:        *b.SoilPH,
		OrganicCarbon: *b.OrganicCarbon,
		County:        b.County,
	}
}

type batchBody struct {
	Predictions []predictBody `json:"predictions" validate:"required,min=1,max=1000,dive"`
}

type predictResponse struct {
	PredictionID string `json:"prediction_id"`
	prediction.Result
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime float64   `json:"processing_time"`
}

type batchResponse struct {
	BatchID        string                 `json:"batch_id"`
	Total          int                    `json:"total"`
	Successful     int                    `json:"successful"`
	Failed         int                    `json:"failed"`
	Results        []prediction.BatchItem `json:"results"`
	Timestamp      time.Time              `json:"timestamp"`
	ProcessingTime float64                `json:"processing_time"`
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	return validate.Struct(v)
}

func (s *Server) predict(c *fiber.Ctx) error {
	start := time.Now()
	var body predictBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	req := body.request()
	res, err := s.svc.Predict(c.UserContext(), req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, prediction.ErrInvalidRequest) {
			s.record(c, failedRecord(req, err, elapsed))
		}
		return err
	}

	id := uuid.NewString()
	rec := successRecord(req, res, elapsed)
	rec.ID = id
	s.record(c, rec)
	return c.JSON(predictResponse{
		PredictionID:   id,
		Result:         res,
		Timestamp:      domain.Now(),
		ProcessingTime: elapsed,
	})
}

func (s *Server) predictBatch(c *fiber.Ctx) error {
	start := time.Now()
	var body batchBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	reqs := make([]prediction.Request, len(body.Predictions))
	for i, b := range body.Predictions {
		reqs[i] = b.request()
	}
	items, err := s.svc.PredictBatch(c.UserContext(), reqs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start).Seconds()

	out := batchResponse{
		BatchID:        uuid.NewString(),
		Total:          len(items),
		Results:        items,
		Timestamp:      domain.Now(),
		ProcessingTime: elapsed,
	}
	recs := make([]store.PredictionRecord, 0, len(items))
	per := elapsed / float64(len(items))
	for _, it := range items {
		if it.Result != nil {
			out.Successful++
			recs = append(recs, successRecord(it.Input, *it.Result, per))
		} else {
			out.Failed++
			recs = append(recs, failedRecord(it.Input, it.Err(), per))
		}
	}
	s.recordBatch(c, recs)
	return c.JSON(out)
}

func (s *Server) counties(c *fiber.Ctx) error {
	counties, err := s.svc.Counties()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"counties": counties, "total": len(counties)})
}

func (s *Server) countyProfile(c *fiber.Ctx) error {
	if !s.svc.Ready() {
		return prediction.ErrModelNotReady
	}
	p, ok := s.svc.Profile(c.Params("county"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "county not found")
	}
	return c.JSON(p)
}

func (s *Server) modelStatus(c *fiber.Ctx) error {
	return c.JSON(s.svc.Status())
}

type rankedFeature struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

const topFeatures = 10

func (s *Server) featureImportance(c *fiber.Ctx) error {
	imp, err := s.svc.FeatureImportance()
	if err != nil {
		return err
	}
	ranked := make([]rankedFeature, 0, len(imp))
	for name, v := range imp {
		ranked = append(ranked, rankedFeature{Feature: name, Importance: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].Feature < ranked[j].Feature
	})
	if len(ranked) > topFeatures {
		ranked = ranked[:topFeatures]
	}
	return c.JSON(fiber.Map{"feature_importance": imp, "top_features": ranked})
}

func (s *Server) stats(c *fiber.Ctx) error {
	if s.log == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "prediction log not configured")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()
	st, err := s.log.Stats(ctx)
	if err != nil {
		return err
	}
	status := s.svc.Status()
	return c.JSON(fiber.Map{
		"predictions":   st,
		"model_loaded":  status.Loaded,
		"model_version": status.Version,
		"cache_entries": status.CacheEntries,
	})
}

func successRecord(req prediction.Request, res prediction.Result, elapsed float64) store.PredictionRecord {
	score, yield := res.ResilienceScore, res.PredictedYield
	return store.PredictionRecord{
		Rainfall:        req.Rainfall,
		SoilPH:          req.SoilPH,
		OrganicCarbon:   req.OrganicCarbon,
		County:          res.County,
		Status:          store.StatusSuccess,
		ResilienceScore: &score,
		PredictedYield:  &yield,
		RiskLevel:       res.RiskLevel,
		ModelVersion:    res.ModelVersion,
		ProcessingTime:  elapsed,
	}
}

func failedRecord(req prediction.Request, err error, elapsed float64) store.PredictionRecord {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return store.PredictionRecord{
		Rainfall:       req.Rainfall,
		SoilPH:         req.SoilPH,
		OrganicCarbon:  req.OrganicCarbon,
		County:         req.County,
		Status:         store.StatusFailed,
		ErrorMessage:   msg,
		ProcessingTime: elapsed,
	}
}

// record logs one prediction. A logging failure never fails the request.
func (s *Server) record(c *fiber.Ctx, rec store.PredictionRecord) {
	if s.log == nil {
		return
	}
	rec.IPAddress, rec.UserAgent = c.IP(), truncate(c.Get(fiber.HeaderUserAgent), 500)
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()
	if err := s.log.Save(ctx, &rec); err != nil {
		s.logger.Error("record prediction failed", "error", err)
	}
}

func (s *Server) recordBatch(c *fiber.Ctx, recs []store.PredictionRecord) {
	if s.log == nil || len(recs) == 0 {
		return
	}
	ip, ua := c.IP(), truncate(c.Get(fiber.HeaderUserAgent), 500)
	for i := range recs {
		recs[i].IPAddress, recs[i].UserAgent = ip, ua
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()
	if err := s.log.SaveBatch(ctx, recs); err != nil {
		s.logger.Error("record prediction batch failed", "count", len(recs), "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
