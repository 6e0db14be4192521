package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParseDMS converts a "D;M;S" string into decimal degrees (D + M/60 + S/3600).
// It returns ok=false for the wrong number of tokens or a non-numeric token.
func ParseDMS(s string) (decimal float64, ok bool) {
	parts := strings.Split(s, ";")
	if len(parts) != 3 {
		return 0, false
	}

	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, false
		}
		v[i] = f
	}
	return v[0] + v[1]/60 + v[2]/3600, true
}

// FormatDMS is the inverse of ParseDMS, with seconds to four decimals.
// Negative values carry the sign on every token so they parse back unchanged.
func FormatDMS(decimal float64) string {
	sign := ""
	if decimal < 0 {
		sign = "-"
		decimal = -decimal
	}
	d := math.Floor(decimal)
	minutes := (decimal - d) * 60
	m := math.Floor(minutes)
	sec := (minutes - m) * 60
	return sign + strconv.FormatFloat(d, 'f', 0, 64) + ";" +
		sign + strconv.FormatFloat(m, 'f', 0, 64) + ";" +
		sign + strconv.FormatFloat(sec, 'f', 4, 64)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
