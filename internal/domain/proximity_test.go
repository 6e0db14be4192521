package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTolerance(t *testing.T) {
	e := PredictionEvent{Lat: 35.2321, Lon: 129.0790}

	assert.True(t, WithinTolerance(e, 35.2321+0.00005, 129.0790, DefaultTrendTolerance))
	assert.False(t, WithinTolerance(e, 35.2321+0.0002, 129.0790, DefaultTrendTolerance))
	assert.False(t, WithinTolerance(e, 35.2321, 129.0790+0.0002, DefaultTrendTolerance))
}

func TestEventsNear_FiltersAndSorts(t *testing.T) {
	base := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	events := []PredictionEvent{
		{Timestamp: base.Add(2 * time.Hour), Lat: 35.2321, Lon: 129.0790, PET: 3},
		{Timestamp: base, Lat: 35.2400, Lon: 129.0790, PET: 99},
		{Timestamp: base, Lat: 35.2321, Lon: 129.0790, PET: 1},
		{Timestamp: base.Add(time.Hour), Lat: 35.23211, Lon: 129.07901, PET: 2},
	}

	got := EventsNear(events, 35.2321, 129.0790, DefaultTrendTolerance)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].PET, got[1].PET, got[2].PET})
}

func TestEventsNear_NoMatch(t *testing.T) {
	events := []PredictionEvent{{Lat: 1, Lon: 1}}
	assert.Empty(t, EventsNear(events, 2, 2, DefaultTrendTolerance))
}

func TestPredictionEvent_SelectedTime(t *testing.T) {
	e := PredictionEvent{PETSelected: "2025-06-18 15:00:00"}
	ts, ok := e.SelectedTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 18, 15, 0, 0, 0, time.Local), ts)

	_, ok = PredictionEvent{PETSelected: "soon"}.SelectedTime()
	assert.False(t, ok)
}
