package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published when a batch run completes.
const (
	EventMasterBuilt  = "master_dataset_built"
	EventModelTrained = "model_trained"
)

// Event announces the outcome of a pipeline or training run. ID is the run
// id and doubles as the message key.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEvent stamps a new run event with a random id and the domain clock.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: Now(),
		Data:       data,
	}
}

// MasterBuiltData is the payload of EventMasterBuilt.
type MasterBuiltData struct {
	Path    string  `json:"path"`
	Summary Summary `json:"summary"`
}

// ModelTrainedData is the payload of EventModelTrained.
type ModelTrainedData struct {
	Path     string             `json:"path"`
	Version  string             `json:"version"`
	Rows     int                `json:"rows"`
	Metrics  map[string]float64 `json:"metrics"`
	Features []string           `json:"features"`
}
