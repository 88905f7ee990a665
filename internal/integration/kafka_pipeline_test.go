//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/adapter/kafka"
	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/geo"
	"github.com/couchcryptid/maize-resilience-service/internal/observability"
	"github.com/couchcryptid/maize-resilience-service/internal/pipeline"
)

const testTopic = "test-maize-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("maize-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type receivedEvent struct {
	Key     string
	Headers map[string]string
	Event   struct {
		ID   string          `json:"id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
}

func readEvent(ctx context.Context, t *testing.T, broker string) receivedEvent {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read events topic")

	var out receivedEvent
	out.Key = string(msg.Key)
	out.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out.Headers[h.Key] = string(h.Value)
	}
	require.NoError(t, json.Unmarshal(msg.Value, &out.Event))
	return out
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		BatchSize:          1,
		BatchFlushInterval: 100 * time.Millisecond,
	}
}

// TestKafkaWriter verifies that a run event round-trips through Kafka with
// its key and headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	event := domain.NewEvent(domain.EventModelTrained, domain.ModelTrainedData{
		Path:    "models/maize_model.json",
		Version: "1.0",
		Rows:    188,
		Metrics: map[string]float64{"r2": 0.61},
	})
	require.NoError(t, writer.Publish(ctx, event))

	got := readEvent(ctx, t, broker)
	assert.Equal(t, event.ID, got.Key)
	assert.Equal(t, domain.EventModelTrained, got.Headers["event_type"])
	_, err := time.Parse(time.RFC3339, got.Headers["occurred_at"])
	assert.NoError(t, err, "occurred_at should be valid RFC3339")
	assert.Equal(t, event.ID, got.Event.ID)

	var data domain.ModelTrainedData
	require.NoError(t, json.Unmarshal(got.Event.Data, &data))
	assert.Equal(t, 188, data.Rows)
	assert.InDelta(t, 0.61, data.Metrics["r2"], 1e-9)
}

// TestPipelineEndToEnd builds a master dataset from files on disk and checks
// that the completion event reaches Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	weatherDir := t.TempDir()
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, county := range []string{"Nakuru", "Kisumu"} {
		obs := make([]domain.HourlyObservation, 72)
		for i := range obs {
			temp, hum, rain := 22.0, 65.0, 2.0
			obs[i] = domain.HourlyObservation{
				County:        county,
				Time:          start.Add(time.Duration(i) * time.Hour),
				Temperature:   &temp,
				Humidity:      &hum,
				Precipitation: &rain,
			}
		}
		path := filepath.Join(weatherDir, csvfile.WeatherFileName(county))
		require.NoError(t, csvfile.WriteWeatherFile(path, obs))
	}
	out := t.TempDir()
	loader := pipeline.FileLoader{
		MasterPath:  filepath.Join(out, "master_dataset.csv"),
		SummaryPath: filepath.Join(out, "master_dataset_summary.json"),
	}

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		pipeline.Sources{Weather: &pipeline.WeatherDir{Dir: weatherDir, Logger: discardLogger()}},
		loader,
		writer,
		pipeline.Options{
			Heuristics:  domain.DefaultHeuristics(),
			SoilCountry: "Kenya",
			Assigner:    geo.DefaultBBoxAssigner(),
			MasterPath:  loader.MasterPath,
		},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	_, err = os.Stat(loader.MasterPath)
	require.NoError(t, err)

	got := readEvent(ctx, t, broker)
	assert.Equal(t, res.RunID, got.Key)
	assert.Equal(t, domain.EventMasterBuilt, got.Event.Type)

	var data domain.MasterBuiltData
	require.NoError(t, json.Unmarshal(got.Event.Data, &data))
	assert.Equal(t, loader.MasterPath, data.Path)
	assert.Equal(t, 2, data.Summary.TotalRecords)
	assert.Equal(t, 2, data.Summary.Counties)
}
