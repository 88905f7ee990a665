// Package csvfile reads and writes the pipeline's CSV and JSON artifacts.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrSchemaMismatch is returned when a file lacks required columns or has a
// value that cannot be parsed as its column's type.
var ErrSchemaMismatch = errors.New("schema mismatch")

// header maps column names to their positions.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrSchemaMismatch)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))] = i
	}
	return h, nil
}

func (h header) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

func (h header) has(col string) bool {
	_, ok := h[col]
	return ok
}

// row wraps one record with typed accessors. The first parse error is
// kept so callers check once per record.
type row struct {
	h    header
	rec  []string
	line int
	err  error
}

func (r *row) str(col string) string {
	i, ok := r.h[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *row) optFloat(col string) *float64 {
	s := r.str(col)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, s)
		return nil
	}
	return &v
}

func (r *row) float(col string) float64 {
	p := r.optFloat(col)
	if p == nil {
		if r.err == nil && r.str(col) == "" {
			r.err = fmt.Errorf("%w: line %d: column %s is empty", ErrSchemaMismatch, r.line, col)
		}
		return 0
	}
	return *p
}

func (r *row) int(col string) int {
	s := r.str(col)
	v, err := strconv.Atoi(s)
	if err != nil {
		// Integers sometimes arrive as "2020.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			r.fail(col, s)
			return 0
		}
		return int(f)
	}
	return v
}

func (r *row) fail(col, value string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: line %d: column %s: cannot parse %q", ErrSchemaMismatch, r.line, col, value)
	}
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// openCSV opens path and returns a reader plus a closer.
func openCSV(path string) (*csv.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	return r, f, nil
}

// createCSV creates path, truncating any existing file.
func createCSV(path string) (*csv.Writer, *os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return csv.NewWriter(f), f, nil
}
