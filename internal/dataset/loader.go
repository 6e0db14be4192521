// Package dataset loads the reference table of surveyed points and their
// precomputed visual indices from a spreadsheet or CSV export.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Required columns after header normalisation.
const (
	colLat            = "lat"
	colLon            = "lon"
	colSVF            = "svf"
	colGVI            = "gvi"
	colBVI            = "bvi"
	colAirTemperature = "airtemperature"
	colHumidity       = "humidity"
	colWindSpeed      = "windspeed"
)

var requiredColumns = []string{
	colLat, colLon, colSVF, colGVI, colBVI, colAirTemperature, colHumidity, colWindSpeed,
}

// Load reads the reference dataset at path. Files ending in .csv are read as
// CSV; anything else is opened as a workbook and sheet is read.
func Load(path, sheet string) ([]domain.ReferenceRow, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err = readCSV(path)
	} else {
		records, err = readSheet(path, sheet)
	}
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset csv: %w", err)
	}
	return records, nil
}

func readSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// parseRecords maps a header row plus data rows onto reference rows.
func parseRecords(records [][]string) ([]domain.ReferenceRow, error) {
	if len(records) == 0 {
		return nil, errors.New("dataset is empty")
	}

	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[normalizeColumn(name)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("dataset missing column %q", c)
		}
	}

	rows := make([]domain.ReferenceRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		line := n + 2 // 1-based, after header
		cell := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		var nums [6]float64
		for i, col := range []string{colSVF, colGVI, colBVI, colAirTemperature, colHumidity, colWindSpeed} {
			v, err := strconv.ParseFloat(cell(col), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %q: %w", line, col, err)
			}
			nums[i] = v
		}

		r := domain.ReferenceRow{
			LatDMS:     cell(colLat),
			LonDMS:     cell(colLon),
			Indices:    domain.Indices{SVF: nums[0], GVI: nums[1], BVI: nums[2]},
			Conditions: domain.Conditions{AirTemperature: nums[3], Humidity: nums[4], WindSpeed: nums[5]},
		}
		lat, latOK := domain.ParseDMS(r.LatDMS)
		lon, lonOK := domain.ParseDMS(r.LonDMS)
		r.LatDecimal, r.LonDecimal = lat, lon
		r.HasCoords = latOK && lonOK
		rows = append(rows, r)
	}
	return rows, nil
}

func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CountMissingCoords returns the number of rows whose DMS coordinates did not parse.
func CountMissingCoords(rows []domain.ReferenceRow) int {
	n := 0
	for _, r := range rows {
		if !r.HasCoords {
			n++
		}
	}
	return n
}

// Cache loads the dataset once per process lifetime. Every caller observes
// the result of the first load, including its error.
type Cache struct {
	path   string
	sheet  string
	logger *slog.Logger

	once sync.Once
	rows []domain.ReferenceRow
	err  error
}

// NewCache creates a lazily loading dataset cache.
func NewCache(path, sheet string, logger *slog.Logger) *Cache {
	return &Cache{path: path, sheet: sheet, logger: logger}
}

// Rows returns the cached reference rows, loading them on first use.
func (c *Cache) Rows(_ context.Context) ([]domain.ReferenceRow, error) {
	c.once.Do(func() {
		c.rows, c.err = Load(c.path, c.sheet)
		if c.err != nil {
			return
		}
		missing := CountMissingCoords(c.rows)
		c.logger.Info("reference dataset loaded", "path", c.path, "rows", len(c.rows))
		if missing > 0 {
			c.logger.Warn("reference rows without parseable coordinates", "count", missing)
		}
	})
	return c.rows, c.err
}
