// Package sink provides persistence collaborators for canonical readings:
// a local SQLite store and a Kafka publisher for the backend ingestion
// topic.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vitalsync/wearsync/internal/reading"
)

// SQLiteSink stores readings in a local SQLite database, one row per
// reading, keyed by the authenticated user.
type SQLiteSink struct {
	db     *sql.DB
	userID string
}

// NewSQLiteSink opens (or creates) the database at dbPath for the given
// user and runs the schema migration.
func NewSQLiteSink(dbPath, userID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open readings db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate readings db: %w", err)
	}
	return &SQLiteSink{db: db, userID: userID}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			device_name   TEXT NOT NULL,
			device_type   TEXT NOT NULL,
			heart_rate    INTEGER,
			steps         INTEGER,
			calories      INTEGER,
			spo2          INTEGER,
			battery_level INTEGER,
			temperature   REAL,
			recorded_at   TEXT NOT NULL
		)
	`)
	return err
}

// Store implements gateway.Sink.
func (s *SQLiteSink) Store(ctx context.Context, r reading.WearableReading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings
			(id, user_id, device_name, device_type, heart_rate, steps, calories, spo2, battery_level, temperature, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, s.userID, r.DeviceName, string(r.DeviceType),
		nullableInt(r.HeartRate), nullableInt(r.Steps), nullableInt(r.Calories),
		nullableInt(r.SpO2), nullableInt(r.BatteryLevel), nullableFloat(r.Temperature),
		r.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert reading %s: %w", r.ID, err)
	}
	return nil
}

// Count returns the number of stored readings for the sink's user.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM readings WHERE user_id = ?", s.userID).Scan(&n)
	return n, err
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float32) interface{} {
	if p == nil {
		return nil
	}
	return float64(*p)
}
