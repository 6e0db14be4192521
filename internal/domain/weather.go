package domain

import (
	"context"
	"errors"
)

// ErrWeatherDisabled is reported when no weather provider is configured.
var ErrWeatherDisabled = errors.New("weather provider disabled")

// Conditions are the three weather inputs of the PET model.
type Conditions struct {
	AirTemperature float64 `json:"air_temperature"` // °C
	Humidity       float64 `json:"humidity"`        // %
	WindSpeed      float64 `json:"wind_speed"`      // m/s
}

// ForecastSlot is one 3-hour forecast entry. Time is the provider's label
// ("YYYY-MM-DD HH:MM:SS") and doubles as the option shown to the user.
type ForecastSlot struct {
	Time       string     `json:"time"`
	Conditions Conditions `json:"conditions"`
}

// WeatherKind tags the outcome of a weather fetch.
type WeatherKind int

const (
	WeatherOK WeatherKind = iota
	WeatherNetworkError
	WeatherParseError
)

func (k WeatherKind) String() string {
	switch k {
	case WeatherOK:
		return "ok"
	case WeatherNetworkError:
		return "network_error"
	case WeatherParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// WeatherResult is the tagged result of a weather fetch. Current and Forecast
// are only meaningful when Kind is WeatherOK; Err is set otherwise.
type WeatherResult struct {
	Kind     WeatherKind
	Current  Conditions
	Forecast []ForecastSlot
	Err      error
}

// WeatherOKResult builds a successful result.
func WeatherOKResult(current Conditions, forecast []ForecastSlot) WeatherResult {
	return WeatherResult{Kind: WeatherOK, Current: current, Forecast: forecast}
}

// NetworkErrorResult builds a result for transport or upstream status failures.
func NetworkErrorResult(err error) WeatherResult {
	return WeatherResult{Kind: WeatherNetworkError, Err: err}
}

// ParseErrorResult builds a result for responses that could not be interpreted.
func ParseErrorResult(err error) WeatherResult {
	return WeatherResult{Kind: WeatherParseError, Err: err}
}

// TimeOptions lists the forecast slot labels in provider order.
func (r WeatherResult) TimeOptions() []string {
	opts := make([]string, 0, len(r.Forecast))
	for _, s := range r.Forecast {
		opts = append(opts, s.Time)
	}
	return opts
}

// Slot returns the forecast slot labelled t.
func (r WeatherResult) Slot(t string) (ForecastSlot, bool) {
	for _, s := range r.Forecast {
		if s.Time == t {
			return s, true
		}
	}
	return ForecastSlot{}, false
}

// WeatherProvider fetches current conditions and the short-range forecast for
// a coordinate. Failures are reported through the result tag, never substituted.
type WeatherProvider interface {
	Fetch(ctx context.Context, lat, lon float64) WeatherResult
}
