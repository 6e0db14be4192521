// Package sqlite is an embedded SQLite backend for the prediction log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/predictlog"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		svf REAL NOT NULL,
		gvi REAL NOT NULL,
		bvi REAL NOT NULL,
		temp REAL NOT NULL,
		humidity REAL NOT NULL,
		wind REAL NOT NULL,
		pet REAL NOT NULL,
		pet_future REAL NOT NULL,
		pet_selected TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_location ON predictions(lat, lon);
`

// Store is a domain.PredictionLog persisted in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening prediction database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating predictions table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, e domain.PredictionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions
			(timestamp, lat, lon, svf, gvi, bvi, temp, humidity, wind, pet, pet_future, pet_selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(predictlog.TimestampLayout),
		e.Lat, e.Lon, e.SVF, e.GVI, e.BVI,
		e.Temp, e.Humidity, e.Wind, e.PET, e.PETFuture, e.PETSelected,
	)
	if err != nil {
		return fmt.Errorf("inserting prediction: %w", err)
	}
	return nil
}

// List returns every event in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.PredictionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, lat, lon, svf, gvi, bvi, temp, humidity, wind, pet, pet_future, pet_selected
		FROM predictions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	var events []domain.PredictionEvent
	for rows.Next() {
		var (
			e  domain.PredictionEvent
			ts string
		)
		if err := rows.Scan(&ts, &e.Lat, &e.Lon, &e.SVF, &e.GVI, &e.BVI,
			&e.Temp, &e.Humidity, &e.Wind, &e.PET, &e.PETFuture, &e.PETSelected); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		if e.Timestamp, err = predictlog.ParseTimestamp(ts); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating predictions: %w", err)
	}
	return events, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
