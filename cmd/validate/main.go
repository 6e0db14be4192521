// Command validate performs integrity checks on the data the PET map runs on:
// the reference dataset, and optionally the PET model artifact and an
// existing prediction log. It reports unparseable coordinates, out-of-range
// indices, duplicate survey points, malformed log rows and model outputs that
// are not finite.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dataset data/mock/reference_points.csv \
//	  -model data/mock/pet_model.json \
//	  -log data/mock/pet_prediction_log.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/pet-microclimate/internal/dataset"
	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/model"
	"github.com/couchcryptid/pet-microclimate/internal/predictlog"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	datasetPath := flag.String("dataset", "", "path to the reference dataset (.xlsx or .csv)")
	sheet := flag.String("sheet", "gps 포함", "worksheet name for .xlsx datasets")
	modelPath := flag.String("model", "", "optional path to the PET forest JSON")
	logPath := flag.String("log", "", "optional path to a prediction log CSV")
	flag.Parse()

	if *datasetPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*datasetPath, *sheet, *modelPath, *logPath); code != 0 {
		os.Exit(code)
	}
}

func run(datasetPath, sheet, modelPath, logPath string) int {
	// ── Load all data sources ──
	fmt.Println("=== PET Map Data Integrity Validation ===")
	fmt.Println()

	rows, err := dataset.Load(datasetPath, sheet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	var forest *model.Forest
	if modelPath != "" {
		if forest, err = model.LoadForest(modelPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load model: %v\n", err)
			return 1
		}
	}

	var events []domain.PredictionEvent
	if logPath != "" {
		f, err := os.Open(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open prediction log: %v\n", err)
			return 1
		}
		events, err = predictlog.Read(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read prediction log: %v\n", err)
			return 1
		}
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateCoordinates(rows),
		validateIndices(rows),
		validateDuplicates(rows),
	}
	if forest != nil {
		phases = append(phases, validateModel(forest, rows))
	}
	if logPath != "" {
		phases = append(phases, validateLog(events))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d reference rows (%d without coordinates), %d logged predictions\n",
		len(rows), dataset.CountMissingCoords(rows), len(events))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Dataset ──

// rowNum is the 1-based data row, not counting the header.
func rowNum(i int) int { return i + 1 }

func validateCoordinates(rows []domain.ReferenceRow) *phase {
	p := &phase{name: "Dataset: DMS coordinates parse"}
	for i, r := range rows {
		if r.HasCoords {
			continue
		}
		p.errorf("row %d: lat %q / lon %q is not D;M;S", rowNum(i), r.LatDMS, r.LonDMS)
	}
	if len(rows) > 0 && dataset.CountMissingCoords(rows) == len(rows) {
		p.errorf("no row has usable coordinates; every lookup would fail")
	}
	return p
}

func validateIndices(rows []domain.ReferenceRow) *phase {
	p := &phase{name: "Dataset: visual indices within [0, 1]"}
	for i, r := range rows {
		if err := r.Indices.Validate(); err != nil {
			p.errorf("row %d: SVF=%g GVI=%g BVI=%g", rowNum(i), r.Indices.SVF, r.Indices.GVI, r.Indices.BVI)
		}
		if r.Conditions.Humidity < 0 || r.Conditions.Humidity > 100 {
			p.errorf("row %d: humidity %g outside [0, 100]", rowNum(i), r.Conditions.Humidity)
		}
		if r.Conditions.WindSpeed < 0 {
			p.errorf("row %d: negative wind speed %g", rowNum(i), r.Conditions.WindSpeed)
		}
	}
	return p
}

// validateDuplicates flags survey points sharing a coordinate: only the first
// of them can ever be selected.
func validateDuplicates(rows []domain.ReferenceRow) *phase {
	p := &phase{name: "Dataset: unique survey coordinates"}
	first := map[[2]float64]int{}
	for i, r := range rows {
		if !r.HasCoords {
			continue
		}
		key := [2]float64{r.LatDecimal, r.LonDecimal}
		if j, ok := first[key]; ok {
			p.errorf("row %d duplicates row %d (%s, %s); it is never selected", rowNum(i), rowNum(j), r.LatDMS, r.LonDMS)
			continue
		}
		first[key] = i
	}
	return p
}

// ── Model ──

func validateModel(forest *model.Forest, rows []domain.ReferenceRow) *phase {
	p := &phase{name: "Model: finite PET for every reference row"}
	features := make([]domain.Features, len(rows))
	for i, r := range rows {
		features[i] = domain.NewFeatures(r.Indices, r.Conditions)
	}
	preds, err := forest.Predict(context.Background(), features)
	if err != nil {
		p.errorf("predict: %v", err)
		return p
	}
	for i, v := range preds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.errorf("row %d: PET=%v", rowNum(i), v)
		}
	}
	return p
}

// ── Prediction log ──

func validateLog(events []domain.PredictionEvent) *phase {
	p := &phase{name: "Log: rows well-formed and in append order"}
	for i, e := range events {
		row := rowNum(i)
		if err := (domain.Click{Lat: e.Lat, Lng: e.Lon}).Validate(); err != nil {
			p.errorf("row %d: coordinate (%g, %g) out of range", row, e.Lat, e.Lon)
		}
		if err := (domain.Indices{SVF: e.SVF, GVI: e.GVI, BVI: e.BVI}).Validate(); err != nil {
			p.errorf("row %d: SVF=%g GVI=%g BVI=%g", row, e.SVF, e.GVI, e.BVI)
		}
		if _, ok := e.SelectedTime(); !ok {
			p.errorf("row %d: PET_selected %q is not a forecast label", row, e.PETSelected)
		}
		if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
			p.errorf("row %d: timestamp %s precedes the previous row", row, e.Timestamp.Format(predictlog.TimestampLayout))
		}
	}
	return p
}
