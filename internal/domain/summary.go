package domain

import (
	"sort"
	"time"
)

// Summary describes a built master dataset.
type Summary struct {
	Timestamp       time.Time      `json:"timestamp"`
	TotalRecords    int            `json:"total_records"`
	Counties        int            `json:"counties"`
	Years           []int          `json:"years"`
	Months          []int          `json:"months"`
	Columns         []string       `json:"columns"`
	FileSizeMB      float64        `json:"file_size_mb"`
	Coverage        Coverage       `json:"coverage"`
	IrrigationFlags map[string]int `json:"irrigation_flags"`
	MissingCounties []string       `json:"missing_counties,omitempty"`
}

// Coverage counts master rows that received each joined source.
type Coverage struct {
	Yield     int `json:"yield"`
	Soil      int `json:"soil"`
	Rainfall  int `json:"rainfall"`
	Dashboard int `json:"dashboard"`
}

// Summarize reports the shape and join coverage of master rows written to
// a file of fileSize bytes.
func Summarize(rows []MasterRow, fileSize int64) Summary {
	s := Summary{
		Timestamp:       Now(),
		TotalRecords:    len(rows),
		Columns:         MasterColumns(),
		FileSizeMB:      Round(float64(fileSize)/(1024*1024), 2),
		IrrigationFlags: make(map[string]int, 3),
	}
	counties := make(map[string]bool)
	years := make(map[int]bool)
	months := make(map[int]bool)
	for _, r := range rows {
		counties[r.County] = true
		years[r.Year] = true
		months[r.Month] = true
		if r.Yield != nil {
			s.Coverage.Yield++
		}
		if r.Soil != nil {
			s.Coverage.Soil++
		}
		if r.Rainfall != nil {
			s.Coverage.Rainfall++
		}
		if r.Dashboard.MonthName != "" {
			s.Coverage.Dashboard++
		}
		s.IrrigationFlags[r.IrrigationNeeded]++
	}
	s.Counties = len(counties)
	s.Years = sortedKeys(years)
	s.Months = sortedKeys(months)
	for _, c := range Counties {
		if !counties[c] {
			s.MissingCounties = append(s.MissingCounties, c)
		}
	}
	sort.Strings(s.MissingCounties)
	return s
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
