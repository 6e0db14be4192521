// Package trend builds and renders the PET history near a map location.
package trend

import (
	"fmt"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
)

// Point is one logged prediction on the trend.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	PET       float64   `json:"pet"`
	// SelectedTime is nil when the logged label does not parse.
	SelectedTime *time.Time `json:"selected_time,omitempty"`
	PETFuture    float64    `json:"pet_future"`
	Temp         float64    `json:"temp"`
	Humidity     float64    `json:"humidity"`
	Wind         float64    `json:"wind"`
	SVF          float64    `json:"svf"`
	GVI          float64    `json:"gvi"`
	BVI          float64    `json:"bvi"`
	Annotation   string     `json:"annotation"`
}

// Trend is the chronological PET history at one location.
type Trend struct {
	Points []Point `json:"points"`
}

// Empty reports whether there is nothing to render.
func (t Trend) Empty() bool { return len(t.Points) == 0 }

// Build selects the events within tol degrees of (lat, lon), oldest first.
func Build(events []domain.PredictionEvent, lat, lon, tol float64) Trend {
	near := domain.EventsNear(events, lat, lon, tol)
	points := make([]Point, 0, len(near))
	for _, e := range near {
		p := Point{
			Timestamp:  e.Timestamp,
			PET:        e.PET,
			PETFuture:  e.PETFuture,
			Temp:       e.Temp,
			Humidity:   e.Humidity,
			Wind:       e.Wind,
			SVF:        e.SVF,
			GVI:        e.GVI,
			BVI:        e.BVI,
			Annotation: Annotation(e.Temp, e.Humidity, e.Wind),
		}
		if st, ok := e.SelectedTime(); ok {
			p.SelectedTime = &st
		}
		points = append(points, p)
	}
	return Trend{Points: points}
}

// Annotation is the per-point weather label drawn on the chart.
func Annotation(temp, humidity, wind float64) string {
	return fmt.Sprintf("T=%.1f\nRH=%.0f%%\nWS=%.1fm/s", temp, humidity, wind)
}
