package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
)

const archiveBody = `{
  "latitude": -0.3,
  "longitude": 36.08,
  "hourly": {
    "time": ["2020-01-01T00:00", "2020-01-01T01:00"],
    "temperature_2m": [14.2, null],
    "relative_humidity_2m": [88, 90],
    "surface_pressure": [812.5, 812.1],
    "et0_fao_evapotranspiration": [0.01, 0.0],
    "precipitation": [0.0, 0.3]
  }
}`

func testClient(baseURL string) *Client {
	c := NewClient(baseURL, 5*time.Second, 2, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.backoff.InitialInterval = time.Millisecond
	c.backoff.MaxInterval = 5 * time.Millisecond
	return c
}

var (
	nakuru = domain.Point{Lat: -0.3031, Lon: 36.08}
	start  = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end    = time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
)

func TestClient_FetchHourly_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "-0.3031", q.Get("latitude"))
		assert.Equal(t, "36.0800", q.Get("longitude"))
		assert.Equal(t, "2020-01-01", q.Get("start_date"))
		assert.Equal(t, "2020-01-31", q.Get("end_date"))
		assert.Equal(t, "Africa/Nairobi", q.Get("timezone"))
		assert.Equal(t, hourlyVariables, q["hourly"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, archiveBody)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).FetchHourly(context.Background(), nakuru, start, end)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, time.Date(2020, 1, 1, 1, 0, 0, 0, time.UTC), obs[1].Time)
	assert.Equal(t, nakuru.Lat, obs[0].Latitude)
	assert.Equal(t, 14.2, *obs[0].Temperature)
	assert.Nil(t, obs[1].Temperature)
	assert.Equal(t, 0.3, *obs[1].Precipitation)
	assert.Empty(t, obs[0].County)
}

func TestClient_FetchHourly_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, archiveBody)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).FetchHourly(context.Background(), nakuru, start, end)
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_FetchHourly_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchHourly(context.Background(), nakuru, start, end)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_FetchHourly_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":true,"reason":"bad date"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchHourly(context.Background(), nakuru, start, end)
	require.ErrorIs(t, err, ErrUnexpected)
	assert.Contains(t, err.Error(), "bad date")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FetchHourly_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchHourly(context.Background(), nakuru, start, end)
	require.Error(t, err)
}

func TestClient_FetchHourly_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient("http://127.0.0.1:1").FetchHourly(ctx, nakuru, start, end)
	require.ErrorIs(t, err, context.Canceled)
}
