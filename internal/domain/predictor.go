package domain

import "context"

// FeatureNames is the column order of the PET model input.
var FeatureNames = []string{"SVF", "GVI", "BVI", "AirTemperature", "Humidity", "WindSpeed"}

// Features is one model input row.
type Features struct {
	SVF            float64 `json:"SVF"`
	GVI            float64 `json:"GVI"`
	BVI            float64 `json:"BVI"`
	AirTemperature float64 `json:"AirTemperature"`
	Humidity       float64 `json:"Humidity"`
	WindSpeed      float64 `json:"WindSpeed"`
}

// NewFeatures combines visual indices with weather conditions.
func NewFeatures(idx Indices, c Conditions) Features {
	return Features{
		SVF:            idx.SVF,
		GVI:            idx.GVI,
		BVI:            idx.BVI,
		AirTemperature: c.AirTemperature,
		Humidity:       c.Humidity,
		WindSpeed:      c.WindSpeed,
	}
}

// Vector returns the features in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{f.SVF, f.GVI, f.BVI, f.AirTemperature, f.Humidity, f.WindSpeed}
}

// Predictor is a pre-trained PET regression model: one prediction per row.
type Predictor interface {
	Predict(ctx context.Context, rows []Features) ([]float64, error)
}
