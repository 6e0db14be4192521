package domain

import "errors"

var (
	// ErrNoReferencePoints is returned when no reference row has a usable coordinate.
	ErrNoReferencePoints = errors.New("no reference points with valid coordinates")

	// ErrInvalidClick is returned for clicks outside the WGS-84 coordinate range.
	ErrInvalidClick = errors.New("invalid click coordinate")

	// ErrInvalidIndex is returned when a visual index lies outside [0, 1].
	ErrInvalidIndex = errors.New("visual index out of range")
)

// Click is the map position selected by the user.
type Click struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports whether the click is a finite WGS-84 coordinate.
func (c Click) Validate() error {
	if !isFinite(c.Lat) || !isFinite(c.Lng) || c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidClick
	}
	return nil
}

// Indices holds the three visual indices of a location.
type Indices struct {
	SVF float64 `json:"svf"`
	GVI float64 `json:"gvi"`
	BVI float64 `json:"bvi"`
}

// Validate reports whether every index lies in [0, 1].
func (i Indices) Validate() error {
	for _, v := range []float64{i.SVF, i.GVI, i.BVI} {
		if !isFinite(v) || v < 0 || v > 1 {
			return ErrInvalidIndex
		}
	}
	return nil
}

// ReferenceRow is one survey point of the reference dataset. Immutable after load.
type ReferenceRow struct {
	LatDMS     string     `json:"lat_dms"`
	LonDMS     string     `json:"lon_dms"`
	LatDecimal float64    `json:"lat_decimal"`
	LonDecimal float64    `json:"lon_decimal"`
	HasCoords  bool       `json:"has_coords"` // false when either DMS string failed to parse
	Indices    Indices    `json:"indices"`
	Conditions Conditions `json:"conditions"`
}
