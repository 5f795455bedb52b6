// Package sqlite stores alerts in a local SQLite file for single-node
// deployments without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/RMahshie/skywatch/internal/repository"
	"github.com/RMahshie/skywatch/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id            TEXT PRIMARY KEY,
	drone_name    TEXT NOT NULL,
	frequency_mhz REAL NOT NULL,
	rssi_db       INTEGER NOT NULL,
	burst_pattern TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL,
	confidence    REAL NOT NULL,
	matched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_matched_at_idx ON alerts (matched_at DESC);

CREATE TABLE IF NOT EXISTS unrecognized_signals (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	frequency_mhz   REAL NOT NULL,
	rssi_db         INTEGER NOT NULL,
	burst_pattern   TEXT NOT NULL,
	duration_ms     INTEGER NOT NULL,
	band_center_mhz REAL NOT NULL,
	captured_at     INTEGER NOT NULL
);`

// SQLiteDetectionRepository implements DetectionRepository on a SQLite file.
// Timestamps are stored as Unix nanoseconds.
type SQLiteDetectionRepository struct {
	db *sql.DB
}

// Open opens or creates the database at path. A sqlite:// prefix is accepted.
func Open(path string) (repository.DetectionRepository, error) {
	dsn := strings.TrimPrefix(path, "sqlite://")

	dbPath := dsn
	if idx := strings.Index(dsn, "?"); idx != -1 {
		dbPath = dsn[:idx]
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dsn, "_busy_timeout") {
		if strings.Contains(dsn, "?") {
			dsn += "&_busy_timeout=5000"
		} else {
			dsn += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	return &SQLiteDetectionRepository{db: db}, nil
}

// Migrate creates the alert tables
func (r *SQLiteDetectionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// StoreAlert inserts a match result
func (r *SQLiteDetectionRepository) StoreAlert(ctx context.Context, result *models.MatchResult) error {
	query := `
		INSERT INTO alerts (id, drone_name, frequency_mhz, rssi_db, burst_pattern, duration_ms, confidence, matched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		result.ID,
		result.Pattern.DroneName,
		result.Detection.FrequencyMHz,
		result.Detection.RSSIDb,
		result.Detection.BurstPattern,
		result.Detection.DurationMs,
		result.Confidence,
		result.MatchedAt.UnixNano())

	return err
}

// StoreUnrecognized inserts a detection that matched nothing
func (r *SQLiteDetectionRepository) StoreUnrecognized(ctx context.Context, d models.Detection) error {
	query := `
		INSERT INTO unrecognized_signals (frequency_mhz, rssi_db, burst_pattern, duration_ms, band_center_mhz, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.FrequencyMHz,
		d.RSSIDb,
		d.BurstPattern,
		d.DurationMs,
		d.BandCenterMHz,
		d.CapturedAt.UnixNano())

	return err
}

// RecentAlerts returns the newest alerts first
func (r *SQLiteDetectionRepository) RecentAlerts(ctx context.Context, limit int) ([]models.AlertPayload, error) {
	query := `
		SELECT id, drone_name, frequency_mhz, rssi_db, burst_pattern, duration_ms, confidence, matched_at
		FROM alerts
		ORDER BY matched_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []models.AlertPayload{}
	for rows.Next() {
		var a models.AlertPayload
		var matchedAt int64

		if err := rows.Scan(&a.ID, &a.Drone, &a.FrequencyMHz, &a.RSSIDb,
			&a.Pattern, &a.DurationMs, &a.Confidence, &matchedAt); err != nil {
			return nil, err
		}

		a.Timestamp = time.Unix(0, matchedAt).UTC().Format(time.RFC3339)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountUnrecognized returns the number of stored unrecognized signals
func (r *SQLiteDetectionRepository) CountUnrecognized(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unrecognized_signals`).Scan(&n)
	return n, err
}

// Close releases the database handle
func (r *SQLiteDetectionRepository) Close() error {
	return r.db.Close()
}
