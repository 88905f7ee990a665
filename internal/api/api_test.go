package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/api"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/prediction"
	"github.com/couchcryptid/maize-resilience-service/internal/store"
	"github.com/couchcryptid/maize-resilience-service/internal/training"
	"github.com/couchcryptid/maize-resilience-service/internal/training/trainingtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockLog struct {
	mu      sync.Mutex
	records []store.PredictionRecord
	err     error
}

func (m *mockLog) Save(_ context.Context, rec *store.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockLog) SaveBatch(_ context.Context, recs []store.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, recs...)
	return nil
}

func (m *mockLog) Stats(_ context.Context) (store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.Stats{}, m.err
	}
	return store.Stats{Total: int64(len(m.records))}, nil
}

func unfitService() *prediction.Service {
	return prediction.NewService(prediction.DefaultOptions(), discardLogger(), observability.NewMetricsForTesting())
}

func loadedServer(t *testing.T, log api.PredictionLog) *api.Server {
	t.Helper()
	res := trainingtest.Train(t)
	svc := unfitService()
	require.NoError(t, svc.Load(res.Bundle, training.CountyProfiles(trainingtest.MasterRows()), &res.Metadata))
	return api.NewServer(svc, log, discardLogger())
}

func do(t *testing.T, srv *api.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthAndReadiness(t *testing.T) {
	srv := api.NewServer(unfitService(), nil, discardLogger())

	code, _ := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, loadedServer(t, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestPredict_NotReady(t *testing.T) {
	srv := api.NewServer(unfitService(), nil, discardLogger())

	code, body := do(t, srv, http.MethodPost, "/api/predict", `{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "model not loaded", body["message"])

	for _, path := range []string{"/api/counties", "/api/counties/Nakuru/profile", "/api/model/feature-importance"} {
		code, _ := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
	}

	code, body = do(t, srv, http.MethodGet, "/api/model/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_trained"])
}

func TestPredict(t *testing.T) {
	log := &mockLog{}
	srv := loadedServer(t, log)

	code, body := do(t, srv, http.MethodPost, "/api/predict",
		`{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1,"county":"nakuru"}`)
	require.Equal(t, http.StatusOK, code, body)

	assert.NotEmpty(t, body["prediction_id"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, "Nakuru", body["county"])
	assert.Equal(t, 2.5, body["benchmark_yield"])
	assert.Equal(t, "2.0.0", body["model_version"])
	assert.Contains(t, []any{prediction.RiskLow, prediction.RiskMedium, prediction.RiskHigh}, body["risk_level"])
	assert.Len(t, body["recommendations"], 4)
	assert.NotEmpty(t, body["feature_importance"])

	require.Len(t, log.records, 1)
	rec := log.records[0]
	assert.Equal(t, body["prediction_id"], rec.ID)
	assert.Equal(t, store.StatusSuccess, rec.Status)
	assert.Equal(t, "Nakuru", rec.County)
	require.NotNil(t, rec.ResilienceScore)
	assert.Equal(t, body["resilience_score"], *rec.ResilienceScore)
}

func TestPredict_Validation(t *testing.T) {
	log := &mockLog{}
	srv := loadedServer(t, log)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"rainfall above range", `{"rainfall":3500,"soil_ph":6,"organic_carbon":2}`, "rainfall: must be <= 3000"},
		{"ph below range", `{"rainfall":800,"soil_ph":3,"organic_carbon":2}`, "soil_ph: must be >= 4"},
		{"missing carbon", `{"rainfall":800,"soil_ph":6}`, "organic_carbon: is required"},
		{"malformed", `{"rainfall":`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}

	require.Len(t, log.records, 2, "range failures are logged, malformed bodies are not")
	assert.Equal(t, store.StatusFailed, log.records[0].Status)
	assert.Contains(t, log.records[0].ErrorMessage, "rainfall")
}

func TestPredict_LogFailureDoesNotFailRequest(t *testing.T) {
	srv := loadedServer(t, &mockLog{err: errors.New("database is locked")})
	code, _ := do(t, srv, http.MethodPost, "/api/predict", `{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestPredictBatch(t *testing.T) {
	log := &mockLog{}
	srv := loadedServer(t, log)

	code, body := do(t, srv, http.MethodPost, "/api/predict/batch", `{"predictions":[
		{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1,"county":"Nakuru"},
		{"rainfall":-1,"soil_ph":6.2,"organic_carbon":2.1},
		{"rainfall":600,"soil_ph":5.5,"organic_carbon":1.0,"county":"Atlantis"}
	]}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["batch_id"])
	assert.Equal(t, 3.0, body["total"])
	assert.Equal(t, 2.0, body["successful"])
	assert.Equal(t, 1.0, body["failed"])

	results, ok := body["results"].([]any)
	require.True(t, ok)
	second := results[1].(map[string]any)
	assert.Equal(t, "error", second["status"])
	assert.Contains(t, second["error"], "rainfall")
	third := results[2].(map[string]any)
	assert.Equal(t, "success", third["status"])
	assert.Equal(t, false, third["prediction"].(map[string]any)["known_county"])

	assert.Len(t, log.records, 3)
}

func TestPredictBatch_Size(t *testing.T) {
	srv := loadedServer(t, nil)

	code, body := do(t, srv, http.MethodPost, "/api/predict/batch", `{"predictions":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "predictions: must have at least 1 items", body["message"])

	item := `{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1}`
	big := `{"predictions":[` + strings.Repeat(item+",", prediction.MaxBatch) + item + `]}`
	code, _ = do(t, srv, http.MethodPost, "/api/predict/batch", big)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodPost, "/api/predict/batch", `{"predictions":[{"rainfall":800,"soil_ph":6.2}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "predictions[0].organic_carbon: is required", body["message"])
}

func TestCountiesAndProfile(t *testing.T) {
	srv := loadedServer(t, nil)

	code, body := do(t, srv, http.MethodGet, "/api/counties", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4.0, body["total"])
	assert.Equal(t, []any{"Bomet", "Kisumu", "Nakuru", "Nyeri"}, body["counties"])

	code, body = do(t, srv, http.MethodGet, "/api/counties/nyeri/profile", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Nyeri", body["county"])

	code, body = do(t, srv, http.MethodGet, "/api/counties/Atlantis/profile", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "county not found", body["message"])
}

func TestModelEndpoints(t *testing.T) {
	srv := loadedServer(t, nil)

	code, body := do(t, srv, http.MethodGet, "/api/model/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_trained"])
	assert.Equal(t, training.ModelType, body["algorithm"])
	assert.Contains(t, body["performance_metrics"], "r2_score")

	code, body = do(t, srv, http.MethodGet, "/api/model/feature-importance", "")
	require.Equal(t, http.StatusOK, code)
	top, ok := body["top_features"].([]any)
	require.True(t, ok)
	assert.Len(t, top, 10)
	first := top[0].(map[string]any)["importance"].(float64)
	last := top[9].(map[string]any)["importance"].(float64)
	assert.GreaterOrEqual(t, first, last)
}

func TestStats(t *testing.T) {
	code, _ := do(t, loadedServer(t, nil), http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	log := &mockLog{}
	srv := loadedServer(t, log)
	do(t, srv, http.MethodPost, "/api/predict", `{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1}`)

	code, body := do(t, srv, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, 1.0, body["predictions"].(map[string]any)["total_predictions"])

	log.err = errors.New("connection refused")
	code, body = do(t, srv, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body["message"])
}

func TestStore_EndToEnd(t *testing.T) {
	st, err := store.Open("sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	srv := loadedServer(t, st)

	do(t, srv, http.MethodPost, "/api/predict", `{"rainfall":800,"soil_ph":6.2,"organic_carbon":2.1}`)
	do(t, srv, http.MethodPost, "/api/predict", `{"rainfall":800,"soil_ph":12,"organic_carbon":2.1}`)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.PredictionsLastHour)
}
