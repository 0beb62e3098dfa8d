// Package store keeps snapshots of cleaned datasets in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// TimeLayout is the layout of the datetime column in snapshots.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the cleaned column layout that Records returns.
var Header = []string{"datetime", "station", "PM2.5", "PM10", "SO2", "NO2", "CO", "RAIN"}

// Store wraps the SQL database connection holding a snapshot.
type Store struct {
	*sql.DB
	path string
}

// Open creates a new database connection and initializes the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to snapshot: %w", err)
	}

	s := &Store{DB: sqlDB, path: path}

	if err := s.configure(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to configure snapshot: %w", err)
	}

	if err := s.createSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := s.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station TEXT NOT NULL,
		ts TEXT NOT NULL,
		pm25 REAL NOT NULL,
		pm10 REAL NOT NULL,
		so2 REAL NOT NULL,
		no2 REAL NOT NULL,
		co REAL NOT NULL,
		rain REAL NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`}

	for _, query := range queries {
		if _, err := s.ExecContext(context.Background(), query); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset replaces the stored snapshot with ds in a single transaction.
func (s *Store) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations"); err != nil {
		return fmt.Errorf("failed to clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (station, ts, pm25, pm10, so2, no2, co, rain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range ds.Observations {
		if _, err := stmt.ExecContext(ctx,
			o.Station, o.Timestamp.UTC().Format(TimeLayout),
			o.PM25, o.PM10, o.SO2, o.NO2, o.CO, o.Rain); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	meta := map[string]string{
		"version":   ds.Version,
		"saved_at":  time.Now().UTC().Format(time.RFC3339),
		"row_count": strconv.Itoa(len(ds.Observations)),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshot_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v); err != nil {
			return fmt.Errorf("failed to write snapshot meta: %w", err)
		}
	}

	return tx.Commit()
}

// Records returns the snapshot as string records in the cleaned layout, header first,
// in insertion order.
func (s *Store) Records(ctx context.Context) ([][]string, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT ts, station, pm25, pm10, so2, no2, co, rain
		FROM observations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	records := [][]string{append([]string(nil), Header...)}
	for rows.Next() {
		var ts, station string
		var v [6]float64
		if err := rows.Scan(&ts, &station, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5]); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		rec := []string{ts, station}
		for _, f := range v {
			rec = append(rec, strconv.FormatFloat(f, 'g', -1, 64))
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Meta returns a snapshot metadata value, or "" when absent.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.QueryRowContext(ctx, "SELECT value FROM snapshot_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
