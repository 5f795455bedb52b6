package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// PipelineStatus is a point-in-time view of the scanner
type PipelineStatus struct {
	Running     bool          `json:"running" doc:"Whether the scan loop is active"`
	Totals      SessionTotals `json:"totals" doc:"Counters accumulated since start"`
	LastCycle   *CycleSummary `json:"last_cycle,omitempty" doc:"Counters of the most recent cycle"`
	LastCycleAt *time.Time    `json:"last_cycle_at,omitempty" doc:"When the most recent cycle finished"`
	BandsMHz    []float64     `json:"bands_mhz" doc:"Band centre frequencies in scan order"`
	CatalogSize int           `json:"catalog_size" doc:"Number of loaded signatures"`
}

// GetStatusResponse represents the scanner status
type GetStatusResponse struct {
	Body PipelineStatus
}

// ListSignaturesResponseBody is the body of the signature listing
type ListSignaturesResponseBody struct {
	Count      int                `json:"count" doc:"Number of signatures"`
	Signatures []SignaturePattern `json:"signatures" doc:"Signatures in catalog order"`
}

// ListSignaturesResponse represents the loaded signature catalog
type ListSignaturesResponse struct {
	Body ListSignaturesResponseBody
}

// ListRecentAlertsRequest represents a request for recent alerts
type ListRecentAlertsRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of alerts to return"`
}

// ListRecentAlertsResponseBody is the body of the recent alerts response
type ListRecentAlertsResponseBody struct {
	Count  int            `json:"count" doc:"Number of alerts returned"`
	Alerts []AlertPayload `json:"alerts" doc:"Alerts, newest first"`
}

// ListRecentAlertsResponse represents recent alerts
type ListRecentAlertsResponse struct {
	Body ListRecentAlertsResponseBody
}
