package domain

import (
	"math"
	"sort"
)

// DefaultTrendTolerance is the half-width in degrees of the trend proximity box.
const DefaultTrendTolerance = 0.0001

// WithinTolerance reports whether the event was logged within tol degrees of
// (lat, lon) on both axes.
func WithinTolerance(e PredictionEvent, lat, lon, tol float64) bool {
	return math.Abs(e.Lat-lat) < tol && math.Abs(e.Lon-lon) < tol
}

// EventsNear returns the events within tol of (lat, lon), oldest first.
// Events with equal timestamps keep their log order.
func EventsNear(events []PredictionEvent, lat, lon, tol float64) []PredictionEvent {
	var out []PredictionEvent
	for _, e := range events {
		if WithinTolerance(e, lat, lon, tol) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
