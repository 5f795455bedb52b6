package models

import (
	"time"
)

// UnknownBurstPattern is the burst label used when no classifier is attached
const UnknownBurstPattern = "unknown"

// DefaultDurationMs is the nominal event length reported without a duration estimator
const DefaultDurationMs = 500

// Detection is a single spectral peak observed in one band during one cycle.
// Values are immutable once the sampler has built them.
type Detection struct {
	FrequencyMHz  float64   `json:"frequency_mhz"`
	RSSIDb        int       `json:"rssi_db"`
	BurstPattern  string    `json:"burst_pattern"`
	DurationMs    int       `json:"duration_ms"`
	CapturedAt    time.Time `json:"captured_at"`
	BandCenterMHz float64   `json:"band_center_mhz"`
}

// SignaturePattern describes a known emission signature
type SignaturePattern struct {
	DroneName    string        `json:"drone_name" yaml:"drone_name"`
	FreqBand     FrequencyBand `json:"freq_band" yaml:"freq_band"`
	BurstPattern string        `json:"burst_pattern" yaml:"burst_pattern"`
	RSSIMin      float64       `json:"rssi_min" yaml:"rssi_min"`
}

// MatchResult pairs a detection with the signature it matched
type MatchResult struct {
	ID         string           `json:"id"`
	Detection  Detection        `json:"detection"`
	Pattern    SignaturePattern `json:"pattern"`
	Confidence float64          `json:"match_confidence"`
	MatchedAt  time.Time        `json:"matched_at"`
}

// CycleSummary holds the counters of a single scan cycle
type CycleSummary struct {
	Cycle      int64         `json:"cycle"`
	Matches    int           `json:"matches"`
	Unknown    int           `json:"unknown"`
	Quiet      int           `json:"quiet"`  // bands without a peak over threshold
	Failed     int           `json:"failed"` // bands skipped on capture errors
	SinkErrors int           `json:"sink_errors"`
	Duration   time.Duration `json:"duration"`
}

// SessionTotals accumulates counters across every cycle of a pipeline
type SessionTotals struct {
	Cycles  int64 `json:"cycles"`
	Matches int64 `json:"matches"`
	Unknown int64 `json:"unknown"`
}

// AlertPayload is the flat record written for every alert
type AlertPayload struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Drone        string  `json:"drone"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	RSSIDb       int     `json:"rssi_db"`
	Pattern      string  `json:"pattern"`
	DurationMs   int     `json:"duration_ms"`
	Confidence   float64 `json:"confidence"`
}

// NewAlertPayload flattens a match result
func NewAlertPayload(result *MatchResult) AlertPayload {
	return AlertPayload{
		ID:           result.ID,
		Timestamp:    result.MatchedAt.UTC().Format(time.RFC3339),
		Drone:        result.Pattern.DroneName,
		FrequencyMHz: result.Detection.FrequencyMHz,
		RSSIDb:       result.Detection.RSSIDb,
		Pattern:      result.Detection.BurstPattern,
		DurationMs:   result.Detection.DurationMs,
		Confidence:   result.Confidence,
	}
}

// UnrecognizedRecord is the record written for a detection that matched nothing
type UnrecognizedRecord struct {
	Timestamp     string  `json:"timestamp"`
	FrequencyMHz  float64 `json:"frequency_mhz"`
	RSSIDb        int     `json:"rssi_db"`
	BurstPattern  string  `json:"burst_pattern"`
	DurationMs    int     `json:"duration_ms"`
	BandCenterMHz float64 `json:"band_center_mhz"`
}

// NewUnrecognizedRecord flattens a detection
func NewUnrecognizedRecord(d Detection) UnrecognizedRecord {
	return UnrecognizedRecord{
		Timestamp:     d.CapturedAt.UTC().Format(time.RFC3339Nano),
		FrequencyMHz:  d.FrequencyMHz,
		RSSIDb:        d.RSSIDb,
		BurstPattern:  d.BurstPattern,
		DurationMs:    d.DurationMs,
		BandCenterMHz: d.BandCenterMHz,
	}
}
