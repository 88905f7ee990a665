package kafka

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/config"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.Event{
		ID:         "run-1",
		Type:       domain.EventMasterBuilt,
		OccurredAt: now,
		Data: domain.MasterBuiltData{
			Path:    "data/processed/master_dataset.csv",
			Summary: domain.Summary{TotalRecords: 2820, Counties: 47},
		},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(domain.EventMasterBuilt), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Path    string `json:"path"`
			Summary struct {
				TotalRecords int `json:"total_records"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "run-1", decoded.ID)
	assert.Equal(t, domain.EventMasterBuilt, decoded.Type)
	assert.Equal(t, "data/processed/master_dataset.csv", decoded.Data.Path)
	assert.Equal(t, 2820, decoded.Data.Summary.TotalRecords)
}

func TestSerializeToMessage_UnsupportedPayload(t *testing.T) {
	_, err := serializeToMessage(domain.Event{ID: "x", Type: "bad", Data: make(chan int)})
	require.Error(t, err)
}

func TestNewWriter_UsesConfig(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"broker-1:9092", "broker-2:9092"},
		KafkaTopic:         "maize-pipeline-events",
		BatchSize:          10,
		BatchFlushInterval: 250 * time.Millisecond,
	}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "maize-pipeline-events", w.writer.Topic)
	assert.Equal(t, kafkago.TCP("broker-1:9092", "broker-2:9092"), w.writer.Addr)
	assert.Equal(t, 10, w.writer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, w.writer.BatchTimeout)
	assert.Equal(t, kafkago.RequireAll, w.writer.RequiredAcks)
}
