package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL   = "https://api.openweathermap.org/data/2.5"
	weatherEndpoint  = "/weather"
	forecastEndpoint = "/forecast"
	userAgent        = "pet-microclimate/1.0"
)

// errParse marks failures to interpret a response body.
var errParse = errors.New("unexpected response")

// Client implements domain.WeatherProvider using the OpenWeather 2.5 API.
type Client struct {
	apiKey  string
	http    *resty.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates an OpenWeather client. retryCount is the number of extra
// attempts on transport errors and 5xx responses.
func NewClient(apiKey string, timeout time.Duration, retryCount int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return newClient(defaultBaseURL, apiKey, timeout, retryCount, metrics, logger)
}

func newClient(baseURL, apiKey string, timeout time.Duration, retryCount int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryable)

	return &Client{
		apiKey:  apiKey,
		http:    rc,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch retrieves current conditions and the 5-day/3-hour forecast for a
// coordinate. Any failure in either call produces a non-OK result.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) domain.WeatherResult {
	var cur currentResponse
	if err := c.get(ctx, weatherEndpoint, lat, lon, &cur); err != nil {
		return classify(err)
	}
	current, err := cur.conditions()
	if err != nil {
		return domain.ParseErrorResult(fmt.Errorf("current weather: %w", err))
	}

	var fc forecastResponse
	if err := c.get(ctx, forecastEndpoint, lat, lon, &fc); err != nil {
		return classify(err)
	}
	slots, err := fc.slots()
	if err != nil {
		return domain.ParseErrorResult(fmt.Errorf("forecast: %w", err))
	}

	return domain.WeatherOKResult(current, slots)
}

// retryable retries transport errors and 5xx responses; 4xx answers are final.
func retryable(r *resty.Response, err error) bool {
	return err != nil || r == nil || r.StatusCode() >= http.StatusInternalServerError
}

// get performs one GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	name := endpoint[1:]
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":   strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":   strconv.FormatFloat(lon, 'f', -1, 64),
			"appid": c.apiKey,
			"units": "metric",
		}).
		Get(endpoint)
	c.metrics.WeatherAPIDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues(name, domain.WeatherNetworkError.String()).Inc()
		return fmt.Errorf("%s request: %w", name, err)
	}
	if !resp.IsSuccess() {
		c.metrics.WeatherRequests.WithLabelValues(name, domain.WeatherNetworkError.String()).Inc()
		return parseAPIError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		c.metrics.WeatherRequests.WithLabelValues(name, domain.WeatherParseError.String()).Inc()
		return fmt.Errorf("decode %s response: %w: %w", name, errParse, err)
	}

	c.metrics.WeatherRequests.WithLabelValues(name, "success").Inc()
	c.logger.Debug("openweather request", "endpoint", name, "status", resp.StatusCode(), "duration", resp.Time())
	return nil
}

// classify maps a request error onto the tagged result.
func classify(err error) domain.WeatherResult {
	if errors.Is(err, errParse) {
		return domain.ParseErrorResult(err)
	}
	return domain.NetworkErrorResult(err)
}

// APIError is a non-2xx response from OpenWeather.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openweather API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("openweather API error: status %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &APIError{StatusCode: status, Message: payload.Message}
}

// OpenWeather API response types. Pointers distinguish missing fields from zero values.

type mainData struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type windData struct {
	Speed *float64 `json:"speed"`
}

type currentResponse struct {
	Main *mainData `json:"main"`
	Wind *windData `json:"wind"`
}

type forecastItem struct {
	DtTxt string    `json:"dt_txt"`
	Main  *mainData `json:"main"`
	Wind  *windData `json:"wind"`
}

type forecastResponse struct {
	List []forecastItem `json:"list"`
}

func (r currentResponse) conditions() (domain.Conditions, error) {
	return toConditions(r.Main, r.Wind)
}

func (r forecastResponse) slots() ([]domain.ForecastSlot, error) {
	if len(r.List) == 0 {
		return nil, errors.New("empty forecast list")
	}
	slots := make([]domain.ForecastSlot, 0, len(r.List))
	for i, item := range r.List {
		if item.DtTxt == "" {
			return nil, fmt.Errorf("entry %d: missing dt_txt", i)
		}
		c, err := toConditions(item.Main, item.Wind)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		slots = append(slots, domain.ForecastSlot{Time: item.DtTxt, Conditions: c})
	}
	return slots, nil
}

func toConditions(m *mainData, w *windData) (domain.Conditions, error) {
	switch {
	case m == nil || m.Temp == nil:
		return domain.Conditions{}, errors.New("missing main.temp")
	case m.Humidity == nil:
		return domain.Conditions{}, errors.New("missing main.humidity")
	case w == nil || w.Speed == nil:
		return domain.Conditions{}, errors.New("missing wind.speed")
	}
	return domain.Conditions{
		AirTemperature: *m.Temp,
		Humidity:       *m.Humidity,
		WindSpeed:      *w.Speed,
	}, nil
}
