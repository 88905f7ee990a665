package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountyTables(t *testing.T) {
	require.Len(t, Counties, 47)
	require.Len(t, Centroids, 47)
	require.Len(t, CountyBoxes, 47)
	for _, c := range Counties {
		_, ok := Centroids[c]
		assert.True(t, ok, "centroid for %s", c)
	}
	for _, b := range CountyBoxes {
		assert.True(t, IsCounty(b.County), "box county %s", b.County)
		assert.Less(t, b.MinLat, b.MaxLat)
		assert.Less(t, b.MinLon, b.MaxLon)
	}
}

func TestCanonicalCounty(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Nairobi", "Nairobi", true},
		{"  nairobi ", "Nairobi", true},
		{"TANA RIVER", "Tana River", true},
		{"tana_river", "Tana River", true},
		{"Elgeyo-Marakwet", "Elgeyo Marakwet", true},
		{"murang'a", "Murang'a", true},
		{"Atlantis", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalCounty(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountySlug(t *testing.T) {
	assert.Equal(t, "muranga", CountySlug("Murang'a"))
	assert.Equal(t, "tana_river", CountySlug("Tana River"))
	assert.Equal(t, "nairobi", CountySlug("Nairobi"))

	for _, c := range Counties {
		got, ok := CountyFromSlug(CountySlug(c))
		assert.True(t, ok, c)
		assert.Equal(t, c, got)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	b := BoundingBox{County: "X", MinLat: -1, MaxLat: 1, MinLon: 36, MaxLon: 37}
	assert.True(t, b.Contains(0, 36.5))
	assert.True(t, b.Contains(-1, 36), "edges are inclusive")
	assert.True(t, b.Contains(1, 37))
	assert.False(t, b.Contains(1.01, 36.5))
	assert.False(t, b.Contains(0, 35.99))
}
