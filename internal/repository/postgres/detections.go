package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/RMahshie/skywatch/internal/repository"
	"github.com/RMahshie/skywatch/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id            UUID PRIMARY KEY,
	drone_name    TEXT NOT NULL,
	frequency_mhz DOUBLE PRECISION NOT NULL,
	rssi_db       INTEGER NOT NULL,
	burst_pattern TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	matched_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_matched_at_idx ON alerts (matched_at DESC);

CREATE TABLE IF NOT EXISTS unrecognized_signals (
	id              BIGSERIAL PRIMARY KEY,
	frequency_mhz   DOUBLE PRECISION NOT NULL,
	rssi_db         INTEGER NOT NULL,
	burst_pattern   TEXT NOT NULL,
	duration_ms     INTEGER NOT NULL,
	band_center_mhz DOUBLE PRECISION NOT NULL,
	captured_at     TIMESTAMPTZ NOT NULL
);`

// PostgresDetectionRepository implements DetectionRepository for PostgreSQL
type PostgresDetectionRepository struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (repository.DetectionRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return NewPostgresDetectionRepository(db), nil
}

// NewPostgresDetectionRepository creates a new PostgreSQL detection repository
func NewPostgresDetectionRepository(db *sql.DB) repository.DetectionRepository {
	return &PostgresDetectionRepository{db: db}
}

// Migrate creates the alert tables
func (r *PostgresDetectionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}

// StoreAlert inserts a match result
func (r *PostgresDetectionRepository) StoreAlert(ctx context.Context, result *models.MatchResult) error {
	query := `
		INSERT INTO alerts (id, drone_name, frequency_mhz, rssi_db, burst_pattern, duration_ms, confidence, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		result.ID,
		result.Pattern.DroneName,
		result.Detection.FrequencyMHz,
		result.Detection.RSSIDb,
		result.Detection.BurstPattern,
		result.Detection.DurationMs,
		result.Confidence,
		result.MatchedAt)

	return err
}

// StoreUnrecognized inserts a detection that matched nothing
func (r *PostgresDetectionRepository) StoreUnrecognized(ctx context.Context, d models.Detection) error {
	query := `
		INSERT INTO unrecognized_signals (frequency_mhz, rssi_db, burst_pattern, duration_ms, band_center_mhz, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		d.FrequencyMHz,
		d.RSSIDb,
		d.BurstPattern,
		d.DurationMs,
		d.BandCenterMHz,
		d.CapturedAt)

	return err
}

// RecentAlerts returns the newest alerts first
func (r *PostgresDetectionRepository) RecentAlerts(ctx context.Context, limit int) ([]models.AlertPayload, error) {
	query := `
		SELECT id, drone_name, frequency_mhz, rssi_db, burst_pattern, duration_ms, confidence, matched_at
		FROM alerts
		ORDER BY matched_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []models.AlertPayload{}
	for rows.Next() {
		var a models.AlertPayload
		var matchedAt time.Time

		err := rows.Scan(
			&a.ID,
			&a.Drone,
			&a.FrequencyMHz,
			&a.RSSIDb,
			&a.Pattern,
			&a.DurationMs,
			&a.Confidence,
			&matchedAt)
		if err != nil {
			return nil, err
		}

		a.Timestamp = matchedAt.UTC().Format(time.RFC3339)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// Close releases the connection pool
func (r *PostgresDetectionRepository) Close() error {
	return r.db.Close()
}
