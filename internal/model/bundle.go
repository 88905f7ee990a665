package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrInvalidBundle is returned when a bundle's parts do not agree.
var ErrInvalidBundle = errors.New("invalid model bundle")

// Bundle is the persisted model artifact. FeatureNames lists the numeric
// inputs followed by the encoder's indicator columns; the scaler applies to
// the full vector.
type Bundle struct {
	Model        *RandomForest   `json:"model"`
	Scaler       *StandardScaler `json:"scaler"`
	Encoder      *OneHotEncoder  `json:"encoder"`
	FeatureNames []string        `json:"feature_names"`
}

// Validate checks that the parts of b fit together.
func (b *Bundle) Validate() error {
	if b.Model == nil || b.Scaler == nil || b.Encoder == nil {
		return fmt.Errorf("%w: missing model, scaler or encoder", ErrInvalidBundle)
	}
	if !b.Model.Fitted() {
		return fmt.Errorf("%w: %w", ErrInvalidBundle, ErrNotFitted)
	}
	n := len(b.FeatureNames)
	if b.Model.NumFeatures != n || len(b.Scaler.Mean) != n || len(b.Scaler.Scale) != n {
		return fmt.Errorf("%w: %d feature names, model expects %d, scaler has %d",
			ErrInvalidBundle, n, b.Model.NumFeatures, len(b.Scaler.Mean))
	}
	enc := b.Encoder.FeatureNames()
	if len(enc) == 0 || len(enc) > n || !slices.Equal(b.FeatureNames[n-len(enc):], enc) {
		return fmt.Errorf("%w: feature names do not end with the encoder columns", ErrInvalidBundle)
	}
	return nil
}

// NumericFeatures returns the feature names before the encoder columns.
func (b *Bundle) NumericFeatures() []string {
	return b.FeatureNames[:len(b.FeatureNames)-len(b.Encoder.Categories)]
}

// Predict builds the input vector from numeric values keyed by feature name
// and the category, scales it and runs the forest. known is false when the
// category was encoded with the fallback.
func (b *Bundle) Predict(numeric map[string]float64, category string) (yield float64, known bool, err error) {
	names := b.NumericFeatures()
	x := make([]float64, 0, len(b.FeatureNames))
	for _, name := range names {
		v, ok := numeric[name]
		if !ok {
			return 0, false, fmt.Errorf("missing feature %s", name)
		}
		x = append(x, v)
	}
	enc, known := b.Encoder.Transform(category)
	x = append(x, enc...)

	scaled, err := b.Scaler.Transform(x)
	if err != nil {
		return 0, known, err
	}
	yield, err = b.Model.Predict(scaled)
	return yield, known, err
}

// FeatureImportance maps each feature name to its importance.
func (b *Bundle) FeatureImportance() map[string]float64 {
	out := make(map[string]float64, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		if i < len(b.Model.Importances) {
			out[name] = b.Model.Importances[i]
		}
	}
	return out
}

// SaveBundle writes b as JSON, replacing path atomically.
func SaveBundle(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadBundle reads and validates a bundle. Unknown top-level keys are
// rejected.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Metadata describes a training run. It is stored beside the bundle and is
// not needed to predict.
type Metadata struct {
	Version      string             `json:"version"`
	ModelType    string             `json:"model_type"`
	TrainedAt    time.Time          `json:"trained_at"`
	Params       Params             `json:"params"`
	GridSearched bool               `json:"grid_searched"`
	Test         Scores             `json:"test"`
	CV           CVScores           `json:"cross_validation"`
	Rows         int                `json:"rows"`
	Removed      map[string]int     `json:"removed"`
	Counties     int                `json:"counties"`
	Extra        map[string]float64 `json:"extra,omitempty"`
}

// MetadataPath returns the metadata file that accompanies a bundle path:
// models/maize.json becomes models/maize_metadata.json.
func MetadataPath(bundlePath string) string {
	ext := filepath.Ext(bundlePath)
	return strings.TrimSuffix(bundlePath, ext) + "_metadata.json"
}

// LoadMetadata reads a metadata file.
func LoadMetadata(path string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// SaveArtifacts writes a training run's metadata and bundle. Both files are
// staged before either is replaced, and the bundle is renamed last, so a
// failure leaves the previous bundle in place and a reader watching the
// bundle never finds it beside older metadata.
func SaveArtifacts(path string, b *Bundle, m Metadata) error {
	if err := b.Validate(); err != nil {
		return err
	}
	bundleData, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	metaData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	metaPath := MetadataPath(path)
	metaTmp, err := stage(metaPath, metaData)
	if err != nil {
		return err
	}
	defer os.Remove(metaTmp) //nolint:errcheck // gone after a successful rename
	bundleTmp, err := stage(path, bundleData)
	if err != nil {
		return err
	}
	defer os.Remove(bundleTmp) //nolint:errcheck // gone after a successful rename

	if err := os.Rename(metaTmp, metaPath); err != nil {
		return fmt.Errorf("rename %s: %w", metaPath, err)
	}
	if err := os.Rename(bundleTmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := stage(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) //nolint:errcheck // gone after a successful rename
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// stage writes data to a temporary file beside path and returns its name.
func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return tmp.Name(), nil
}
