// Package domain models the urban-microclimate reference data, weather inputs,
// and Physiological Equivalent Temperature (PET) predictions served by the map.
//
// # Reference Dataset
//
// Each reference point is a street-level survey location with precomputed
// visual indices extracted from panoramic imagery:
//
//	SVF  Sky View Factor, fraction of visible sky (0–1)
//	GVI  Green View Index, fraction of visible vegetation (0–1)
//	BVI  Building View Index, fraction of visible built structure (0–1)
//
// Rows also carry the air temperature (°C), relative humidity (%) and wind
// speed (m/s) recorded during the survey. Those values seed the sliders and
// stand in for live weather when the weather service is unavailable.
//
// # Coordinate Format
//
// Survey coordinates are stored as degrees;minutes;seconds strings:
//
//	"35;13;55.56"  →  35 + 13/60 + 55.56/3600  =  35.232100
//
// Exactly three numeric tokens are required. Anything else yields a missing
// coordinate (see [ParseDMS]); such rows are skipped by [Nearest].
//
// # Distance
//
// Nearest-point lookup uses Euclidean distance in raw degree space, not
// geodesic distance. The dataset covers a few city blocks, where the error
// from treating degrees as planar is far below the survey spacing.
//
// # Prediction Log
//
// Every interaction appends one [PredictionEvent]. The CSV form has a fixed
// 12-column header (see [LogHeader]):
//
//	timestamp,lat,lon,SVF,GVI,BVI,Temp,Humidity,Wind,PET,PET_future,PET_selected
//
// PET_selected holds the label of the forecast slot the user selected, in the
// weather service's "YYYY-MM-DD HH:MM:SS" layout. When live weather is not
// available it holds the wall-clock time of the interaction in the same layout.
//
// # Trend Proximity
//
// Historical rows are matched to a click with a fixed-radius box filter
// (|Δlat| < tol and |Δlon| < tol, default tol = 0.0001°) rather than exact
// equality, so floating-point jitter in map clicks does not split a location's
// history. See [WithinTolerance].
package domain
