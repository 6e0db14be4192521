package domain

import "math"

// Nearest returns the index of the reference row closest to (lat, lon) by
// Euclidean distance in degree space. Rows without coordinates are skipped and
// the first row wins on ties.
func Nearest(rows []ReferenceRow, lat, lon float64) (int, error) {
	best := -1
	bestDist := math.Inf(1)

	for i, r := range rows {
		if !r.HasCoords {
			continue
		}
		d := math.Hypot(r.LatDecimal-lat, r.LonDecimal-lon)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	if best < 0 {
		return -1, ErrNoReferencePoints
	}
	return best, nil
}
