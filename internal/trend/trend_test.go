package trend

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chart "github.com/wcharczuk/go-chart/v2"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func logged(minute int, lat, pet float64, selected string) domain.PredictionEvent {
	return domain.PredictionEvent{
		Timestamp:   time.Date(2024, 7, 1, 12, minute, 0, 0, time.Local),
		Lat:         lat,
		Lon:         129.079,
		SVF:         0.5,
		GVI:         0.3,
		BVI:         0.2,
		Temp:        25.44,
		Humidity:    60.4,
		Wind:        2.06,
		PET:         pet,
		PETFuture:   pet + 1,
		PETSelected: selected,
	}
}

func TestBuild(t *testing.T) {
	events := []domain.PredictionEvent{
		logged(10, 35.2321, 32, "2024-07-01 15:00:00"),
		logged(0, 35.2321, 30, "not a time"),
		logged(5, 35.2400, 99, "2024-07-01 15:00:00"), // too far
	}

	tr := Build(events, 35.23215, 129.079, domain.DefaultTrendTolerance)

	require.Len(t, tr.Points, 2)
	assert.InDelta(t, 30, tr.Points[0].PET, 1e-9)
	assert.Nil(t, tr.Points[0].SelectedTime)
	assert.InDelta(t, 32, tr.Points[1].PET, 1e-9)
	require.NotNil(t, tr.Points[1].SelectedTime)
	assert.Equal(t, time.Date(2024, 7, 1, 15, 0, 0, 0, time.Local), *tr.Points[1].SelectedTime)
	assert.Equal(t, "T=25.4\nRH=60%\nWS=2.1m/s", tr.Points[1].Annotation)
}

func TestBuild_Empty(t *testing.T) {
	tr := Build(nil, 35.2321, 129.079, domain.DefaultTrendTolerance)
	assert.True(t, tr.Empty())
	assert.NotNil(t, tr.Points)
}

func TestAnnotation(t *testing.T) {
	assert.Equal(t, "T=31.0\nRH=45%\nWS=0.0m/s", Annotation(31, 45, 0))
}

func TestRenderPNG(t *testing.T) {
	tests := []struct {
		name   string
		events []domain.PredictionEvent
	}{
		{
			name: "several points",
			events: []domain.PredictionEvent{
				logged(0, 35.2321, 30, "2024-07-01 15:00:00"),
				logged(5, 35.2321, 31, "2024-07-01 18:00:00"),
				logged(9, 35.2321, 33, "2024-07-01 18:00:00"),
			},
		},
		{
			name:   "single point",
			events: []domain.PredictionEvent{logged(0, 35.2321, 30, "2024-07-01 15:00:00")},
		},
		{
			name:   "no parseable selected time",
			events: []domain.PredictionEvent{logged(0, 35.2321, 30, ""), logged(1, 35.2321, 30, "")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Build(tt.events, 35.2321, 129.079, domain.DefaultTrendTolerance)
			var buf bytes.Buffer
			require.NoError(t, NewRenderer().RenderPNG(&buf, tr))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestCollect_AnnotatesSelectedPoints(t *testing.T) {
	tr := Build([]domain.PredictionEvent{
		logged(0, 35.2321, 30, "2024-07-01 15:00:00"),
		logged(5, 35.2321, 31, "garbled"),
	}, 35.2321, 129.079, domain.DefaultTrendTolerance)

	d := collect(tr)
	assert.Len(t, d.nowX, 2)
	require.Len(t, d.selX, 1)
	require.Len(t, d.annotations, 1)

	selected := time.Date(2024, 7, 1, 15, 0, 0, 0, time.Local)
	assert.Equal(t, chart.Value2{
		XValue: chart.TimeToFloat64(selected),
		YValue: 31,
		Label:  "T=25.4 RH=60% WS=2.1m/s",
	}, d.annotations[0])
}

func TestRenderPNG_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer().RenderPNG(&buf, Trend{})
	assert.ErrorIs(t, err, ErrEmptyTrend)
	assert.Zero(t, buf.Len())
}
