package alert

import (
	"context"

	"github.com/RMahshie/skywatch/internal/repository"
	"github.com/RMahshie/skywatch/pkg/models"
)

// RepositorySink persists alerts and unrecognized detections
type RepositorySink struct {
	repo repository.DetectionRepository
}

// NewRepositorySink wraps repo
func NewRepositorySink(repo repository.DetectionRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

// Send stores the match
func (s *RepositorySink) Send(ctx context.Context, result *models.MatchResult) error {
	return s.repo.StoreAlert(ctx, result)
}

// Log stores the detection
func (s *RepositorySink) Log(ctx context.Context, detection models.Detection) error {
	return s.repo.StoreUnrecognized(ctx, detection)
}

// Name implements Named
func (s *RepositorySink) Name() string { return "repository" }
