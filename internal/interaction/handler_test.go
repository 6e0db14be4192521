package interaction_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/interaction"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	"github.com/couchcryptid/pet-microclimate/internal/trend"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	rows []domain.ReferenceRow
	err  error
}

func (m *mockSource) Rows(context.Context) ([]domain.ReferenceRow, error) {
	return m.rows, m.err
}

type mockWeather struct {
	result domain.WeatherResult
	calls  int
}

func (m *mockWeather) Fetch(context.Context, float64, float64) domain.WeatherResult {
	m.calls++
	return m.result
}

// mockPredictor returns AirTemperature + 10 and records every input row.
type mockPredictor struct {
	mu   sync.Mutex
	rows []domain.Features
	err  error
}

func (m *mockPredictor) Predict(_ context.Context, rows []domain.Features) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.rows = append(m.rows, rows...)
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.AirTemperature + 10
	}
	return out, nil
}

type memoryLog struct {
	mu        sync.Mutex
	events    []domain.PredictionEvent
	appendErr error
}

func (m *memoryLog) Append(_ context.Context, e domain.PredictionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memoryLog) List(context.Context) ([]domain.PredictionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PredictionEvent(nil), m.events...), nil
}

type mockPublisher struct {
	published []domain.PredictionEvent
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.PredictionEvent) error {
	m.published = append(m.published, e)
	return m.err
}

// --- fixtures ---

var (
	refRow = domain.ReferenceRow{
		LatDMS: "35;13;55.56", LonDMS: "129;4;44.4",
		LatDecimal: 35.2321, LonDecimal: 129.079, HasCoords: true,
		Indices:    domain.Indices{SVF: 0.5, GVI: 0.3, BVI: 0.2},
		Conditions: domain.Conditions{AirTemperature: 25, Humidity: 60, WindSpeed: 2},
	}
	farRow = domain.ReferenceRow{
		LatDMS: "35;14;0", LonDMS: "129;5;0",
		LatDecimal: 35.2333, LonDecimal: 129.0833, HasCoords: true,
		Indices:    domain.Indices{SVF: 0.9, GVI: 0.05, BVI: 0.05},
		Conditions: domain.Conditions{AirTemperature: 27, Humidity: 55, WindSpeed: 1},
	}
	clickAtRef = domain.Click{Lat: 35.2321, Lng: 129.079}
	fixedNow   = time.Date(2024, 7, 1, 14, 3, 27, 0, time.Local)
)

func liveWeather() domain.WeatherResult {
	return domain.WeatherOKResult(
		domain.Conditions{AirTemperature: 30, Humidity: 50, WindSpeed: 3},
		[]domain.ForecastSlot{
			{Time: "2024-07-01 15:00:00", Conditions: domain.Conditions{AirTemperature: 31, Humidity: 48, WindSpeed: 3.5}},
			{Time: "2024-07-01 18:00:00", Conditions: domain.Conditions{AirTemperature: 28, Humidity: 58, WindSpeed: 2.5}},
		},
	)
}

type fixture struct {
	handler   *interaction.Handler
	weather   *mockWeather
	predictor *mockPredictor
	log       *memoryLog
	publisher *mockPublisher
	metrics   *observability.Metrics
	clock     *clockwork.FakeClock
}

func newFixture(weather domain.WeatherResult) *fixture {
	f := &fixture{
		weather:   &mockWeather{result: weather},
		predictor: &mockPredictor{},
		log:       &memoryLog{},
		publisher: &mockPublisher{},
		metrics:   observability.NewMetricsForTesting(),
		clock:     clockwork.NewFakeClockAt(fixedNow),
	}
	f.handler = interaction.New(interaction.Options{
		Source:    &mockSource{rows: []domain.ReferenceRow{farRow, refRow}},
		Weather:   f.weather,
		Predictor: f.predictor,
		Log:       f.log,
		Publisher: f.publisher,
		Clock:     f.clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   f.metrics,
	})
	return f
}

func ptr(v float64) *float64 { return &v }

// --- tests ---

func TestHandle_LiveWeather(t *testing.T) {
	f := newFixture(liveWeather())

	view, err := f.handler.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	require.NoError(t, err)

	assert.Equal(t, refRow, view.Nearest)
	assert.Equal(t, interaction.SourceOpenWeather, view.WeatherSource)
	assert.Empty(t, view.WeatherFallback)
	assert.Equal(t, []string{"2024-07-01 15:00:00", "2024-07-01 18:00:00"}, view.TimeOptions)
	assert.Equal(t, "2024-07-01 15:00:00", view.SelectedTime)
	assert.InDelta(t, 40, view.PETNow, 1e-9)
	assert.InDelta(t, 41, view.PETFuture, 1e-9)

	require.Len(t, f.log.events, 1)
	e := f.log.events[0]
	assert.Equal(t, fixedNow, e.Timestamp)
	assert.InDelta(t, 30, e.Temp, 1e-9)
	assert.Equal(t, "2024-07-01 15:00:00", e.PETSelected)
	assert.Len(t, f.publisher.published, 1)

	require.Len(t, view.Trend.Points, 1)
	assert.InDelta(t, 40, view.Trend.Points[0].PET, 1e-9)
}

func TestHandle_SelectedTimeFromOptions(t *testing.T) {
	f := newFixture(liveWeather())

	view, err := f.handler.Handle(context.Background(), interaction.Interaction{
		Click:        clickAtRef,
		SelectedTime: "2024-07-01 18:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01 18:00:00", view.SelectedTime)
	assert.Equal(t, domain.Conditions{AirTemperature: 28, Humidity: 58, WindSpeed: 2.5}, view.Future)

	// An unknown label reverts to the first option.
	view, err = f.handler.Handle(context.Background(), interaction.Interaction{
		Click:        clickAtRef,
		SelectedTime: "2024-07-02 00:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01 15:00:00", view.SelectedTime)
}

func TestHandle_WeatherFailureUsesDatasetConditions(t *testing.T) {
	for _, res := range []domain.WeatherResult{
		domain.NetworkErrorResult(errors.New("connection refused")),
		domain.ParseErrorResult(errors.New("missing main.temp")),
	} {
		t.Run(res.Kind.String(), func(t *testing.T) {
			f := newFixture(res)

			view, err := f.handler.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
			require.NoError(t, err)

			want := domain.Features{SVF: 0.5, GVI: 0.3, BVI: 0.2, AirTemperature: 25, Humidity: 60, WindSpeed: 2}
			assert.Equal(t, []domain.Features{want, want}, f.predictor.rows)

			assert.Equal(t, interaction.SourceDataset, view.WeatherSource)
			assert.Equal(t, res.Kind.String(), view.WeatherFallback)
			assert.Empty(t, view.TimeOptions)
			assert.Equal(t, "2024-07-01 14:03:27", view.SelectedTime)
			assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.WeatherFallbacks.WithLabelValues(res.Kind.String())), 0)
		})
	}
}

func TestHandle_WeatherDisabled(t *testing.T) {
	log := &memoryLog{}
	h := interaction.New(interaction.Options{
		Source:    &mockSource{rows: []domain.ReferenceRow{refRow}},
		Predictor: &mockPredictor{},
		Log:       log,
		Clock:     clockwork.NewFakeClockAt(fixedNow),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   observability.NewMetricsForTesting(),
	})

	view, err := h.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	require.NoError(t, err)
	assert.Equal(t, "disabled", view.WeatherFallback)
	assert.Equal(t, refRow.Conditions, view.Now)
	assert.Len(t, log.events, 1)
}

func TestHandle_IndexOverrides(t *testing.T) {
	f := newFixture(domain.NetworkErrorResult(errors.New("down")))

	view, err := f.handler.Handle(context.Background(), interaction.Interaction{
		Click: clickAtRef,
		SVF:   ptr(0.8),
		BVI:   ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Indices{SVF: 0.8, GVI: 0.3, BVI: 0}, view.Indices)
	assert.InDelta(t, 0.8, f.log.events[0].SVF, 1e-9)
}

func TestHandle_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   interaction.Interaction
	}{
		{name: "latitude out of range", in: interaction.Interaction{Click: domain.Click{Lat: 91, Lng: 0}}},
		{name: "index above one", in: interaction.Interaction{Click: clickAtRef, GVI: ptr(1.5)}},
		{name: "negative index", in: interaction.Interaction{Click: clickAtRef, SVF: ptr(-0.1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(liveWeather())
			_, err := f.handler.Handle(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, interaction.IsInputError(err))
			assert.Empty(t, f.log.events)
			assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.InteractionErrors.WithLabelValues("input")), 0)
		})
	}
}

func TestHandle_LogFailureFailsInteraction(t *testing.T) {
	f := newFixture(liveWeather())
	f.log.appendErr = errors.New("disk full")

	_, err := f.handler.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	require.Error(t, err)
	assert.False(t, interaction.IsInputError(err))
	assert.Empty(t, f.publisher.published)
}

func TestHandle_PredictFailure(t *testing.T) {
	f := newFixture(liveWeather())
	f.predictor.err = errors.New("model unavailable")

	_, err := f.handler.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	require.Error(t, err)
	assert.Empty(t, f.log.events)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.InteractionErrors.WithLabelValues("predict")), 0)
}

func TestHandle_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(liveWeather())
	f.publisher.err = errors.New("broker down")

	_, err := f.handler.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	require.NoError(t, err)
	assert.Len(t, f.log.events, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PublishErrors), 0)
}

func TestHandle_NoReferencePoints(t *testing.T) {
	h := interaction.New(interaction.Options{
		Source:    &mockSource{rows: []domain.ReferenceRow{{LatDMS: "bad", LonDMS: "bad"}}},
		Predictor: &mockPredictor{},
		Log:       &memoryLog{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   observability.NewMetricsForTesting(),
	})

	_, err := h.Handle(context.Background(), interaction.Interaction{Click: clickAtRef})
	assert.ErrorIs(t, err, domain.ErrNoReferencePoints)
}

func TestHandle_TrendAccumulatesNearbyOnly(t *testing.T) {
	f := newFixture(liveWeather())
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, interaction.Interaction{Click: clickAtRef})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.handler.Handle(ctx, interaction.Interaction{Click: domain.Click{Lat: 35.2321 + 0.0002, Lng: 129.079}})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	view, err := f.handler.Handle(ctx, interaction.Interaction{Click: domain.Click{Lat: 35.2321 + 0.00005, Lng: 129.079}})
	require.NoError(t, err)

	require.Len(t, view.Trend.Points, 2)
	assert.Equal(t, fixedNow, view.Trend.Points[0].Timestamp)
	assert.Equal(t, fixedNow.Add(2*time.Minute), view.Trend.Points[1].Timestamp)
}

func TestNearest(t *testing.T) {
	f := newFixture(liveWeather())

	row, err := f.handler.Nearest(context.Background(), domain.Click{Lat: 35.2332, Lng: 129.0832})
	require.NoError(t, err)
	assert.Equal(t, farRow, row)

	_, err = f.handler.Nearest(context.Background(), domain.Click{Lat: 0, Lng: 200})
	assert.ErrorIs(t, err, domain.ErrInvalidClick)
}

func TestRenderTrend(t *testing.T) {
	f := newFixture(liveWeather())
	ctx := context.Background()

	var buf bytes.Buffer
	assert.ErrorIs(t, f.handler.RenderTrend(ctx, clickAtRef, &buf), trend.ErrEmptyTrend)

	_, err := f.handler.Handle(ctx, interaction.Interaction{Click: clickAtRef})
	require.NoError(t, err)
	require.NoError(t, f.handler.RenderTrend(ctx, clickAtRef, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestCheckReadiness(t *testing.T) {
	ready := interaction.New(interaction.Options{Source: &mockSource{rows: []domain.ReferenceRow{refRow}}})
	assert.NoError(t, ready.CheckReadiness(context.Background()))

	failing := interaction.New(interaction.Options{Source: &mockSource{err: errors.New("no file")}})
	assert.Error(t, failing.CheckReadiness(context.Background()))

	empty := interaction.New(interaction.Options{Source: &mockSource{}})
	assert.Error(t, empty.CheckReadiness(context.Background()))
}

type pingingLog struct {
	memoryLog
	pingErr error
	pings   int
}

func (p *pingingLog) Ping(context.Context) error {
	p.pings++
	return p.pingErr
}

func TestCheckReadiness_PingsPredictionLog(t *testing.T) {
	healthy := &pingingLog{}
	h := interaction.New(interaction.Options{Source: &mockSource{rows: []domain.ReferenceRow{refRow}}, Log: healthy})
	require.NoError(t, h.CheckReadiness(context.Background()))
	assert.Equal(t, 1, healthy.pings)

	down := &pingingLog{pingErr: errors.New("database is closed")}
	h = interaction.New(interaction.Options{Source: &mockSource{rows: []domain.ReferenceRow{refRow}}, Log: down})
	err := h.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prediction log unavailable")
}
