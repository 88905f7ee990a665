package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

type assignerFunc func(lat, lon float64) string

func (f assignerFunc) Assign(lat, lon float64) string { return f(lat, lon) }

func TestValidateSoilAssignment(t *testing.T) {
	nakuru := domain.Centroids["Nakuru"]
	kericho := domain.Centroids["Kericho"]
	samples := []domain.SoilSample{
		{Country: "KE", Latitude: nakuru.Lat, Longitude: nakuru.Lon},
		{Country: "KE", Latitude: kericho.Lat, Longitude: kericho.Lon},
		{Country: "KE", Latitude: 8.0, Longitude: 30.0},
		{Country: "KE", Latitude: -20, Longitude: 20},
		{Country: "UG", Latitude: 8.0, Longitude: 30.0},
	}
	// Everything inside a coarse box is called Nakuru; the far south is
	// left unassigned.
	assigner := assignerFunc(func(lat, _ float64) string {
		if lat < -10 {
			return domain.UnknownCounty
		}
		return "Nakuru"
	})

	p, st := validateSoilAssignment(samples, "KE", assigner)

	assert.Equal(t, soilStats{checked: 4, unassigned: 1, nearerOther: 1}, st)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "sample 3")
	assert.Contains(t, p.errors[0], "assigned to Nakuru")
	assert.False(t, p.passed())
}

func TestValidateSoilAssignment_DefaultBoxes(t *testing.T) {
	assigner, err := countyAssigner("", "")
	require.NoError(t, err)

	var samples []domain.SoilSample
	for _, c := range domain.Counties {
		p := domain.Centroids[c]
		samples = append(samples, domain.SoilSample{Country: "KE", Latitude: p.Lat, Longitude: p.Lon})
	}

	p, st := validateSoilAssignment(samples, "KE", assigner)
	assert.True(t, p.passed(), "county centroids are near a centroid: %v", p.errors)
	assert.Equal(t, len(domain.Counties), st.checked)
}
