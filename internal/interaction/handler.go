// Package interaction turns a map click into a PET view: nearest reference
// point, weather, model predictions, the log entry and the local trend.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	"github.com/couchcryptid/pet-microclimate/internal/trend"
	"github.com/jonboulle/clockwork"
)

// ReferenceSource supplies the loaded reference dataset.
type ReferenceSource interface {
	Rows(ctx context.Context) ([]domain.ReferenceRow, error)
}

// TrendRenderer draws a trend chart.
type TrendRenderer interface {
	RenderPNG(w io.Writer, t trend.Trend) error
}

// Weather sources reported in a View.
const (
	SourceOpenWeather = "openweather"
	SourceDataset     = "dataset"
)

// Interaction is one user event: a click plus the optional slider and
// dropdown values. Nil indices fall back to the nearest reference row.
type Interaction struct {
	Click        domain.Click `json:"click"`
	SVF          *float64     `json:"svf,omitempty"`
	GVI          *float64     `json:"gvi,omitempty"`
	BVI          *float64     `json:"bvi,omitempty"`
	SelectedTime string       `json:"selected_time,omitempty"`
}

// View is everything the page renders for one interaction.
type View struct {
	Click           domain.Click        `json:"click"`
	Nearest         domain.ReferenceRow `json:"nearest"`
	Indices         domain.Indices      `json:"indices"`
	WeatherSource   string              `json:"weather_source"`
	WeatherFallback string              `json:"weather_fallback,omitempty"`
	Now             domain.Conditions   `json:"now"`
	Future          domain.Conditions   `json:"future"`
	TimeOptions     []string            `json:"time_options"`
	SelectedTime    string              `json:"selected_time"`
	PETNow          float64             `json:"pet_now"`
	PETFuture       float64             `json:"pet_future"`
	Trend           trend.Trend         `json:"trend"`
}

// Options wires a Handler. Weather and Publisher may be nil.
type Options struct {
	Source    ReferenceSource
	Weather   domain.WeatherProvider
	Predictor domain.Predictor
	Log       domain.PredictionLog
	Publisher domain.EventPublisher
	Renderer  TrendRenderer
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Tolerance float64
}

// Handler is the application context shared by every request.
type Handler struct {
	source    ReferenceSource
	weather   domain.WeatherProvider
	predictor domain.Predictor
	log       domain.PredictionLog
	publisher domain.EventPublisher
	renderer  TrendRenderer
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	tolerance float64
}

// New creates a Handler. A zero Clock uses the real clock and a zero
// Tolerance uses domain.DefaultTrendTolerance.
func New(o Options) *Handler {
	h := &Handler{
		source:    o.Source,
		weather:   o.Weather,
		predictor: o.Predictor,
		log:       o.Log,
		publisher: o.Publisher,
		renderer:  o.Renderer,
		clock:     o.Clock,
		logger:    o.Logger,
		metrics:   o.Metrics,
		tolerance: o.Tolerance,
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.tolerance <= 0 {
		h.tolerance = domain.DefaultTrendTolerance
	}
	if h.renderer == nil {
		h.renderer = trend.NewRenderer()
	}
	return h
}

// pinger is implemented by prediction logs backed by a database.
type pinger interface {
	Ping(ctx context.Context) error
}

// CheckReadiness returns nil once the reference dataset is available and the
// prediction log, if it can be pinged, answers.
func (h *Handler) CheckReadiness(ctx context.Context) error {
	rows, err := h.source.Rows(ctx)
	if err != nil {
		return fmt.Errorf("reference dataset unavailable: %w", err)
	}
	if len(rows) == 0 {
		return errors.New("reference dataset is empty")
	}
	if p, ok := h.log.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("prediction log unavailable: %w", err)
		}
	}
	return nil
}

// Nearest returns the reference row closest to the click.
func (h *Handler) Nearest(ctx context.Context, click domain.Click) (domain.ReferenceRow, error) {
	if err := click.Validate(); err != nil {
		return domain.ReferenceRow{}, err
	}
	rows, err := h.source.Rows(ctx)
	if err != nil {
		return domain.ReferenceRow{}, fmt.Errorf("load reference rows: %w", err)
	}
	i, err := domain.Nearest(rows, click.Lat, click.Lng)
	if err != nil {
		return domain.ReferenceRow{}, err
	}
	return rows[i], nil
}

// Trend returns the logged PET history near the click.
func (h *Handler) Trend(ctx context.Context, click domain.Click) (trend.Trend, error) {
	if err := click.Validate(); err != nil {
		return trend.Trend{}, err
	}
	events, err := h.log.List(ctx)
	if err != nil {
		return trend.Trend{}, fmt.Errorf("read prediction log: %w", err)
	}
	return trend.Build(events, click.Lat, click.Lng, h.tolerance), nil
}

// RenderTrend writes the trend chart for the click to w. It returns
// trend.ErrEmptyTrend when nothing has been logged nearby.
func (h *Handler) RenderTrend(ctx context.Context, click domain.Click, w io.Writer) error {
	t, err := h.Trend(ctx, click)
	if err != nil {
		return err
	}
	return h.renderer.RenderPNG(w, t)
}

// Handle runs one interaction end to end and returns the view to render.
func (h *Handler) Handle(ctx context.Context, in Interaction) (View, error) {
	h.metrics.Interactions.Inc()

	if err := in.Click.Validate(); err != nil {
		return View{}, h.fail("input", err)
	}
	row, err := h.Nearest(ctx, in.Click)
	if err != nil {
		return View{}, h.fail("lookup", err)
	}

	idx := row.Indices
	override(&idx.SVF, in.SVF)
	override(&idx.GVI, in.GVI)
	override(&idx.BVI, in.BVI)
	if err := idx.Validate(); err != nil {
		return View{}, h.fail("input", err)
	}

	view := View{Click: in.Click, Nearest: row, Indices: idx}
	h.resolveWeather(ctx, in, row, &view)

	view.PETNow, err = h.predict(ctx, domain.NewFeatures(idx, view.Now))
	if err != nil {
		return View{}, h.fail("predict", err)
	}
	view.PETFuture, err = h.predict(ctx, domain.NewFeatures(idx, view.Future))
	if err != nil {
		return View{}, h.fail("predict", err)
	}

	event := domain.PredictionEvent{
		Timestamp:   h.clock.Now(),
		Lat:         in.Click.Lat,
		Lon:         in.Click.Lng,
		SVF:         idx.SVF,
		GVI:         idx.GVI,
		BVI:         idx.BVI,
		Temp:        view.Now.AirTemperature,
		Humidity:    view.Now.Humidity,
		Wind:        view.Now.WindSpeed,
		PET:         view.PETNow,
		PETFuture:   view.PETFuture,
		PETSelected: view.SelectedTime,
	}
	if err := h.log.Append(ctx, event); err != nil {
		return View{}, h.fail("log", fmt.Errorf("append prediction log: %w", err))
	}
	h.metrics.LogAppends.Inc()
	h.publish(ctx, event)

	view.Trend, err = h.Trend(ctx, in.Click)
	if err != nil {
		return View{}, h.fail("trend", err)
	}

	h.logger.Info("interaction handled",
		"lat", in.Click.Lat,
		"lon", in.Click.Lng,
		"weather_source", view.WeatherSource,
		"pet", view.PETNow,
		"pet_future", view.PETFuture,
		"selected_time", view.SelectedTime,
	)
	return view, nil
}

// resolveWeather fills the conditions and time options of v. Live weather
// failures fall back to the reference row's conditions for both now and
// future, with the wall-clock time as the selection.
func (h *Handler) resolveWeather(ctx context.Context, in Interaction, row domain.ReferenceRow, v *View) {
	res := domain.NetworkErrorResult(domain.ErrWeatherDisabled)
	if h.weather != nil {
		res = h.weather.Fetch(ctx, in.Click.Lat, in.Click.Lng)
	}
	if res.Kind == domain.WeatherOK && len(res.Forecast) == 0 {
		res = domain.ParseErrorResult(errors.New("forecast has no slots"))
	}

	if res.Kind == domain.WeatherOK {
		v.WeatherSource = SourceOpenWeather
		v.Now = res.Current
		v.TimeOptions = res.TimeOptions()
		slot, ok := res.Slot(in.SelectedTime)
		if !ok {
			slot = res.Forecast[0]
		}
		v.SelectedTime = slot.Time
		v.Future = slot.Conditions
		return
	}

	reason := res.Kind.String()
	if errors.Is(res.Err, domain.ErrWeatherDisabled) {
		reason = "disabled"
	}
	h.metrics.WeatherFallbacks.WithLabelValues(reason).Inc()
	h.logger.Warn("live weather unavailable, using dataset conditions",
		"kind", res.Kind.String(),
		"reason", reason,
		"error", res.Err,
	)

	v.WeatherSource = SourceDataset
	v.WeatherFallback = reason
	v.Now = row.Conditions
	v.Future = row.Conditions
	v.TimeOptions = []string{}
	v.SelectedTime = h.clock.Now().Format(domain.SlotTimeLayout)
}

func (h *Handler) predict(ctx context.Context, f domain.Features) (float64, error) {
	start := h.clock.Now()
	out, err := h.predictor.Predict(ctx, []domain.Features{f})
	h.metrics.PredictDuration.Observe(h.clock.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("predict PET: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("predict PET: got %d outputs for 1 row", len(out))
	}
	h.metrics.Predictions.Inc()
	return out[0], nil
}

func (h *Handler) publish(ctx context.Context, event domain.PredictionEvent) {
	if h.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.publisher.Publish(pubCtx, event); err != nil {
		h.metrics.PublishErrors.Inc()
		h.logger.Warn("publish prediction failed", "error", err)
	}
}

func (h *Handler) fail(stage string, err error) error {
	h.metrics.InteractionErrors.WithLabelValues(stage).Inc()
	h.logger.Error("interaction failed", "stage", stage, "error", err)
	return err
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// IsInputError reports whether err was caused by invalid request values.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrInvalidClick) || errors.Is(err, domain.ErrInvalidIndex)
}
