// Package predictlog persists prediction events to an append-only CSV file.
package predictlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
)

// TimestampLayout is the layout of the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// CSVLog is a domain.PredictionLog backed by a CSV file with a fixed header.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

// NewCSVLog returns a log at path, creating the file with its header if absent.
func NewCSVLog(path string) (*CSVLog, error) {
	l := &CSVLog{path: path}
	if err := l.ensureHeader(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the log file location.
func (l *CSVLog) Path() string { return l.path }

func (l *CSVLog) ensureHeader() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open prediction log: %w", err)
	}
	defer f.Close()
	return writeRecords(f, nil)
}

// Append writes one row. The header is written first when the file is
// missing or empty.
func (l *CSVLog) Append(_ context.Context, e domain.PredictionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open prediction log: %w", err)
	}
	if err := writeRecords(f, [][]string{Record(e)}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close prediction log: %w", err)
	}
	return nil
}

// writeRecords emits the header (when f is empty) and records in one write.
func writeRecords(f *os.File, records [][]string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat prediction log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(domain.LogHeader)
	}
	_ = w.WriteAll(records)
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode prediction log row: %w", err)
	}
	if buf.Len() == 0 {
		return nil
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write prediction log: %w", err)
	}
	return nil
}

// List reads every logged event in file order. A missing file is an empty log.
func (l *CSVLog) List(_ context.Context) ([]domain.PredictionEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open prediction log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a prediction log stream. The first row must be the header.
func Read(r io.Reader) ([]domain.PredictionEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(domain.LogHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prediction log header: %w", err)
	}
	for i, name := range domain.LogHeader {
		if header[i] != name {
			return nil, fmt.Errorf("prediction log header column %d is %q, want %q", i, header[i], name)
		}
	}

	var events []domain.PredictionEvent
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read prediction log: %w", err)
		}
		e, err := ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("prediction log line %d: %w", line, err)
		}
		events = append(events, e)
	}
}

// Record formats an event as a row in LogHeader order.
func Record(e domain.PredictionEvent) []string {
	return []string{
		e.Timestamp.Format(TimestampLayout),
		formatFloat(e.Lat), formatFloat(e.Lon),
		formatFloat(e.SVF), formatFloat(e.GVI), formatFloat(e.BVI),
		formatFloat(e.Temp), formatFloat(e.Humidity), formatFloat(e.Wind),
		formatFloat(e.PET), formatFloat(e.PETFuture),
		e.PETSelected,
	}
}

// ParseRecord is the inverse of Record.
func ParseRecord(rec []string) (domain.PredictionEvent, error) {
	if len(rec) != len(domain.LogHeader) {
		return domain.PredictionEvent{}, fmt.Errorf("got %d fields, want %d", len(rec), len(domain.LogHeader))
	}
	ts, err := ParseTimestamp(rec[0])
	if err != nil {
		return domain.PredictionEvent{}, err
	}

	var nums [10]float64
	for i := range nums {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return domain.PredictionEvent{}, fmt.Errorf("column %q: %w", domain.LogHeader[i+1], err)
		}
		nums[i] = v
	}
	return domain.PredictionEvent{
		Timestamp:   ts,
		Lat:         nums[0],
		Lon:         nums[1],
		SVF:         nums[2],
		GVI:         nums[3],
		BVI:         nums[4],
		Temp:        nums[5],
		Humidity:    nums[6],
		Wind:        nums[7],
		PET:         nums[8],
		PETFuture:   nums[9],
		PETSelected: rec[11],
	}, nil
}

// ParseTimestamp accepts the log layout with or without fractional seconds,
// and RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(domain.SlotTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
