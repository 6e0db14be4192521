// Command genmock generates reproducible fixtures for local runs and manual
// testing: a reference dataset around the default map centre, a small PET
// forest model, and a prediction log produced by replaying clicks through the
// real interaction handler with a fake clock.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -points 60 -interactions 30
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/dataset"
	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/interaction"
	"github.com/couchcryptid/pet-microclimate/internal/model"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	"github.com/couchcryptid/pet-microclimate/internal/predictlog"
	"github.com/jonboulle/clockwork"
)

const (
	centerLat = 35.2321
	centerLon = 129.0790
	// Survey points are spread over roughly 200 m around the centre.
	spread = 0.002
)

var startTime = time.Date(2024, time.July, 1, 9, 0, 0, 0, time.Local)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/mock", "output directory for fixtures")
	points := flag.Int("points", 60, "number of reference survey points")
	interactions := flag.Int("interactions", 30, "number of replayed clicks for the prediction log")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *points < 1 || *interactions < 0 {
		flag.Usage()
		return fmt.Errorf("-points must be positive and -interactions non-negative")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(*seed, *seed))

	datasetPath := filepath.Join(*outDir, "reference_points.csv")
	rows := generateRows(rng, *points)
	if err := writeDataset(datasetPath, rows); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	log.Printf("wrote dataset: %s (%d points)", datasetPath, len(rows))

	modelPath := filepath.Join(*outDir, "pet_model.json")
	if err := writeJSON(modelPath, generateForest()); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	forest, err := model.LoadForest(modelPath)
	if err != nil {
		return fmt.Errorf("reloading model: %w", err)
	}
	log.Printf("wrote model: %s (%d trees)", modelPath, len(forest.Trees))

	logPath := filepath.Join(*outDir, "pet_prediction_log.csv")
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	n, err := replay(rng, datasetPath, forest, logPath, *interactions)
	if err != nil {
		return fmt.Errorf("replaying interactions: %w", err)
	}
	log.Printf("wrote prediction log: %s (%d rows)", logPath, n)
	return nil
}

func generateRows(rng *rand.Rand, n int) []domain.ReferenceRow {
	rows := make([]domain.ReferenceRow, n)
	for i := range rows {
		lat := centerLat + (rng.Float64()-0.5)*spread
		lon := centerLon + (rng.Float64()-0.5)*spread
		svf := round(0.2+0.7*rng.Float64(), 3)
		gvi := round((1-svf)*rng.Float64(), 3)
		bvi := round(math.Max(0, 1-svf-gvi), 3)
		rows[i] = domain.ReferenceRow{
			LatDMS:     domain.FormatDMS(lat),
			LonDMS:     domain.FormatDMS(lon),
			LatDecimal: lat,
			LonDecimal: lon,
			HasCoords:  true,
			Indices:    domain.Indices{SVF: svf, GVI: gvi, BVI: bvi},
			Conditions: domain.Conditions{
				AirTemperature: round(24+8*rng.Float64(), 1),
				Humidity:       round(45+40*rng.Float64(), 0),
				WindSpeed:      round(0.3+3*rng.Float64(), 1),
			},
		}
	}
	return rows
}

func writeDataset(path string, rows []domain.ReferenceRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"lat", "lon", "SVF", "GVI", "BVI", "AirTemperature", "Humidity", "WindSpeed"})
	for _, r := range rows {
		_ = w.Write([]string{
			r.LatDMS, r.LonDMS,
			ftoa(r.Indices.SVF), ftoa(r.Indices.GVI), ftoa(r.Indices.BVI),
			ftoa(r.Conditions.AirTemperature), ftoa(r.Conditions.Humidity), ftoa(r.Conditions.WindSpeed),
		})
	}
	w.Flush()
	return w.Error()
}

// generateForest builds one depth-2 tree per weather feature, each also
// splitting on sky view: open sky and heat raise PET, shade and wind lower it.
func generateForest() *model.Forest {
	type split struct {
		feature   int
		threshold float64
		low, high float64
	}
	// Feature positions follow domain.FeatureNames.
	splits := []split{
		{feature: 3, threshold: 28, low: 29, high: 36},    // AirTemperature
		{feature: 4, threshold: 65, low: 31, high: 34},    // Humidity
		{feature: 5, threshold: 1.5, low: 34, high: 30},   // WindSpeed
		{feature: 1, threshold: 0.3, low: 33.5, high: 30}, // GVI
	}
	f := &model.Forest{FeatureNames: domain.FeatureNames}
	for _, s := range splits {
		f.Trees = append(f.Trees, model.Tree{
			// 0: SVF <= 0.5 ? 1 : 4; 1,4: s.feature <= threshold ? leaf : leaf.
			ChildrenLeft:  []int{1, 2, -1, -1, 5, -1, -1},
			ChildrenRight: []int{4, 3, -1, -1, 6, -1, -1},
			Feature:       []int{0, s.feature, -2, -2, s.feature, -2, -2},
			Threshold:     []float64{0.5, s.threshold, -2, -2, s.threshold, -2, -2},
			Value:         []float64{0, 0, s.low - 1.5, s.high - 1.5, 0, s.low + 1.5, s.high + 1.5},
		})
	}
	return f
}

// replay clicks near random reference points through the interaction handler,
// ten minutes apart, with live weather disabled.
func replay(rng *rand.Rand, datasetPath string, forest *model.Forest, logPath string, n int) (int, error) {
	predictionLog, err := predictlog.NewCSVLog(logPath)
	if err != nil {
		return 0, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := dataset.NewCache(datasetPath, "", logger)
	rows, err := source.Rows(context.Background())
	if err != nil {
		return 0, err
	}

	clock := clockwork.NewFakeClockAt(startTime)
	h := interaction.New(interaction.Options{
		Source:    source,
		Predictor: forest,
		Log:       predictionLog,
		Clock:     clock,
		Logger:    logger,
		Metrics:   observability.NewMetricsForTesting(),
	})

	// Revisit a handful of points so trends accumulate.
	hot := rows[:min(len(rows), 5)]
	for range n {
		r := hot[rng.IntN(len(hot))]
		click := domain.Click{
			Lat: r.LatDecimal + (rng.Float64()-0.5)*0.00005,
			Lng: r.LonDecimal + (rng.Float64()-0.5)*0.00005,
		}
		if _, err := h.Handle(context.Background(), interaction.Interaction{Click: click}); err != nil {
			return 0, err
		}
		clock.Advance(10 * time.Minute)
	}

	events, err := predictionLog.List(context.Background())
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
