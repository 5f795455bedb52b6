package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/skywatch/pkg/models"
)

// StatusProvider reports the live pipeline state
type StatusProvider interface {
	Status() models.PipelineStatus
}

// SignatureSource lists the loaded catalog
type SignatureSource interface {
	Patterns() []models.SignaturePattern
}

// AlertSource returns recent alerts, newest first
type AlertSource interface {
	RecentAlerts(ctx context.Context, limit int) ([]models.AlertPayload, error)
}

// StatusHandler handles scanner status requests
type StatusHandler struct {
	status     StatusProvider
	signatures SignatureSource
	alerts     AlertSource
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status StatusProvider, signatures SignatureSource, alerts AlertSource) *StatusHandler {
	return &StatusHandler{
		status:     status,
		signatures: signatures,
		alerts:     alerts,
	}
}

// GetStatus returns counters and the last cycle summary
func (h *StatusHandler) GetStatus(ctx context.Context, _ *struct{}) (*models.GetStatusResponse, error) {
	return &models.GetStatusResponse{Body: h.status.Status()}, nil
}

// ListSignatures returns the catalog in order
func (h *StatusHandler) ListSignatures(ctx context.Context, _ *struct{}) (*models.ListSignaturesResponse, error) {
	patterns := h.signatures.Patterns()
	if patterns == nil {
		patterns = []models.SignaturePattern{}
	}

	resp := &models.ListSignaturesResponse{}
	resp.Body.Count = len(patterns)
	resp.Body.Signatures = patterns
	return resp, nil
}

// ListRecentAlerts returns up to limit alerts, newest first
func (h *StatusHandler) ListRecentAlerts(ctx context.Context, req *models.ListRecentAlertsRequest) (*models.ListRecentAlertsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	alerts, err := h.alerts.RecentAlerts(ctx, limit)
	if err != nil {
		log.Error().Err(err).Int("limit", limit).Msg("Failed to load recent alerts")
		return nil, huma.Error500InternalServerError("Failed to load recent alerts", err)
	}
	if alerts == nil {
		alerts = []models.AlertPayload{}
	}

	resp := &models.ListRecentAlertsResponse{}
	resp.Body.Count = len(alerts)
	resp.Body.Alerts = alerts
	return resp, nil
}
