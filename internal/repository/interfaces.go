package repository

import (
	"context"

	"github.com/RMahshie/skywatch/pkg/models"
)

// DetectionRepository defines the interface for durable alert and
// unrecognized-signal storage
type DetectionRepository interface {
	// Migrate creates the tables if they do not exist
	Migrate(ctx context.Context) error
	StoreAlert(ctx context.Context, result *models.MatchResult) error
	StoreUnrecognized(ctx context.Context, detection models.Detection) error
	// RecentAlerts returns at most limit alerts, newest first
	RecentAlerts(ctx context.Context, limit int) ([]models.AlertPayload, error)
	Close() error
}
