// Package openmeteo fetches hourly historical weather from the Open-Meteo
// archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
)

// hourlyVariables are requested from the archive, in response order.
var hourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"surface_pressure",
	"et0_fao_evapotranspiration",
	"precipitation",
}

const timeLayout = "2006-01-02T15:04"

// Client fetches hourly observations for a coordinate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	backoff    BackoffConfig
	circuit    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. Requests are retried up to
// maxRetries times.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		timezone:   "Africa/Nairobi",
		backoff: BackoffConfig{
			MaxRetries:      maxRetries,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openmeteo",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		metrics: metrics,
		logger:  logger,
	}
}

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hourly    struct {
		Time               []string   `json:"time"`
		Temperature        []*float64 `json:"temperature_2m"`
		Humidity           []*float64 `json:"relative_humidity_2m"`
		Pressure           []*float64 `json:"surface_pressure"`
		Evapotranspiration []*float64 `json:"et0_fao_evapotranspiration"`
		Precipitation      []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// FetchHourly returns hourly observations between start and end dates
// inclusive. Times are local wall-clock times of the configured time zone.
// The County field is left for the caller to set.
func (c *Client) FetchHourly(ctx context.Context, p domain.Point, start, end time.Time) ([]domain.HourlyObservation, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(p.Lat, 'f', 4, 64)},
		"longitude":  {strconv.FormatFloat(p.Lon, 'f', 4, 64)},
		"start_date": {start.Format(time.DateOnly)},
		"end_date":   {end.Format(time.DateOnly)},
		"timezone":   {c.timezone},
	}
	for _, v := range hourlyVariables {
		params.Add("hourly", v)
	}
	fullURL := c.baseURL + "?" + params.Encode()

	began := time.Now()
	resp, err := doWithResilience(ctx, c.httpClient, c.backoff, c.circuit, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	})
	c.metrics.CollectorDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.CollectorRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open-meteo archive request: %w", err)
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.CollectorRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode open-meteo response: %w", err)
	}
	c.metrics.CollectorRequests.WithLabelValues("success").Inc()

	h := body.Hourly
	out := make([]domain.HourlyObservation, 0, len(h.Time))
	for i, ts := range h.Time {
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", ts, err)
		}
		out = append(out, domain.HourlyObservation{
			Time:               t,
			Latitude:           p.Lat,
			Longitude:          p.Lon,
			Temperature:        at(h.Temperature, i),
			Humidity:           at(h.Humidity, i),
			Pressure:           at(h.Pressure, i),
			Evapotranspiration: at(h.Evapotranspiration, i),
			Precipitation:      at(h.Precipitation, i),
		})
	}
	c.logger.Debug("open-meteo fetch complete", "lat", p.Lat, "lon", p.Lon, "hours", len(out))
	return out, nil
}

// at returns s[i], or nil when the series is shorter than the time axis.
func at(s []*float64, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i]
}
