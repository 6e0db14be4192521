package main

import (
	"testing"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refRow(latDMS, lonDMS string, svf float64) domain.ReferenceRow {
	lat, okLat := domain.ParseDMS(latDMS)
	lon, okLon := domain.ParseDMS(lonDMS)
	return domain.ReferenceRow{
		LatDMS: latDMS, LonDMS: lonDMS,
		LatDecimal: lat, LonDecimal: lon, HasCoords: okLat && okLon,
		Indices:    domain.Indices{SVF: svf, GVI: 0.2, BVI: 0.1},
		Conditions: domain.Conditions{AirTemperature: 25, Humidity: 60, WindSpeed: 2},
	}
}

func TestValidateCoordinates(t *testing.T) {
	p := validateCoordinates([]domain.ReferenceRow{
		refRow("35;13;55.56", "129;4;44.4", 0.5),
		refRow("35;13", "129;4;44.4", 0.5),
	})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "row 2")

	p = validateCoordinates([]domain.ReferenceRow{refRow("x", "y", 0.5)})
	assert.Len(t, p.errors, 2)
}

func TestValidateIndices(t *testing.T) {
	p := validateIndices([]domain.ReferenceRow{refRow("35;0;0", "129;0;0", 0.5), refRow("35;0;1", "129;0;0", 1.2)})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "row 2")
}

func TestValidateDuplicates(t *testing.T) {
	p := validateDuplicates([]domain.ReferenceRow{
		refRow("35;0;0", "129;0;0", 0.5),
		refRow("35;0;1", "129;0;0", 0.5),
		refRow("35;0;0", "129;0;0", 0.7),
	})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "row 3 duplicates row 1")
}

func TestValidateModel(t *testing.T) {
	forest, err := model.ParseForest([]byte(`{
	  "feature_names": ["SVF", "GVI", "BVI", "AirTemperature", "Humidity", "WindSpeed"],
	  "trees": [{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [30]}]
	}`))
	require.NoError(t, err)

	p := validateModel(forest, []domain.ReferenceRow{refRow("35;0;0", "129;0;0", 0.5)})
	assert.True(t, p.passed())
}

func TestValidateLog(t *testing.T) {
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.Local)
	good := domain.PredictionEvent{
		Timestamp: base, Lat: 35.2, Lon: 129.1,
		SVF: 0.5, GVI: 0.3, BVI: 0.2,
		PETSelected: "2024-07-01 15:00:00",
	}
	late := good
	late.Timestamp = base.Add(time.Minute)
	bad := good
	bad.SVF = 2
	bad.PETSelected = "later"

	assert.True(t, validateLog([]domain.PredictionEvent{good, late}).passed())

	p := validateLog([]domain.PredictionEvent{late, bad})
	// bad: index out of range, unparseable selection, timestamp out of order.
	assert.Len(t, p.errors, 3)
}
