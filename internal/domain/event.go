package domain

import (
	"context"
	"time"
)

// SlotTimeLayout is the layout of forecast slot labels and of PET_selected.
const SlotTimeLayout = "2006-01-02 15:04:05"

// LogHeader is the fixed column header of the prediction log.
var LogHeader = []string{
	"timestamp", "lat", "lon",
	"SVF", "GVI", "BVI",
	"Temp", "Humidity", "Wind",
	"PET", "PET_future", "PET_selected",
}

// PredictionEvent is one logged interaction. Append-only.
type PredictionEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	SVF         float64   `json:"SVF"`
	GVI         float64   `json:"GVI"`
	BVI         float64   `json:"BVI"`
	Temp        float64   `json:"Temp"`
	Humidity    float64   `json:"Humidity"`
	Wind        float64   `json:"Wind"`
	PET         float64   `json:"PET"`
	PETFuture   float64   `json:"PET_future"`
	PETSelected string    `json:"PET_selected"`
}

// SelectedTime parses PETSelected as local wall-clock time, like the
// timestamp column. ok is false when it is not a slot label.
func (e PredictionEvent) SelectedTime() (time.Time, bool) {
	t, err := time.ParseInLocation(SlotTimeLayout, e.PETSelected, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PredictionLog persists prediction events.
type PredictionLog interface {
	Append(ctx context.Context, event PredictionEvent) error
	List(ctx context.Context) ([]PredictionEvent, error)
}

// EventPublisher fans prediction events out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event PredictionEvent) error
}
