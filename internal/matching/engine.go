// Package matching scores detections against the signature catalog.
package matching

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/RMahshie/skywatch/internal/signature"
	"github.com/RMahshie/skywatch/pkg/models"
)

// Criterion weights. A criterion contributes its full weight or nothing.
const (
	FrequencyWeight = 0.4
	BurstWeight     = 0.3
	PowerWeight     = 0.3

	// AcceptScore is the minimum total for a pattern to be eligible
	AcceptScore = 0.6
)

// Breakdown records which criteria a pattern satisfied
type Breakdown struct {
	Frequency bool
	Burst     bool
	Power     bool
	// RequiredRSSI is max(pattern.RSSIMin, global threshold)
	RequiredRSSI float64
	Total        float64
}

// Eligible reports whether the total clears AcceptScore
func (b Breakdown) Eligible() bool {
	return b.Total >= AcceptScore
}

// Score evaluates one pattern. The total is rounded to two decimals so that
// sums such as 0.3+0.3 compare exactly against AcceptScore.
func Score(d models.Detection, p models.SignaturePattern, minRSSIThreshold float64) Breakdown {
	b := Breakdown{RequiredRSSI: math.Max(p.RSSIMin, minRSSIThreshold)}

	var total float64
	if p.FreqBand.Contains(d.FrequencyMHz) {
		b.Frequency = true
		total += FrequencyWeight
	}
	if d.BurstPattern == p.BurstPattern {
		b.Burst = true
		total += BurstWeight
	}
	if float64(d.RSSIDb) >= b.RequiredRSSI {
		b.Power = true
		total += PowerWeight
	}
	b.Total = round2(total)
	return b
}

// Match returns the best eligible pattern for d. Only a strictly higher score
// displaces the current best, so ties go to the earliest pattern.
func Match(d models.Detection, patterns []models.SignaturePattern, minRSSIThreshold float64) (*models.MatchResult, bool) {
	best := -1
	bestScore := 0.0

	for i, p := range patterns {
		b := Score(d, p, minRSSIThreshold)
		if !b.Eligible() {
			continue
		}
		if best < 0 || b.Total > bestScore {
			best, bestScore = i, b.Total
		}
	}

	if best < 0 {
		return nil, false
	}

	return &models.MatchResult{
		ID:         uuid.NewString(),
		Detection:  d,
		Pattern:    patterns[best],
		Confidence: bestScore,
		MatchedAt:  time.Now().UTC(),
	}, true
}

// Engine binds a catalog and the global RSSI floor
type Engine struct {
	catalog          *signature.Catalog
	patterns         []models.SignaturePattern
	minRSSIThreshold float64
}

// NewEngine creates an engine over catalog
func NewEngine(catalog *signature.Catalog, minRSSIThreshold float64) *Engine {
	return &Engine{
		catalog:          catalog,
		patterns:         catalog.Patterns(),
		minRSSIThreshold: minRSSIThreshold,
	}
}

// Match scores d against every catalog entry
func (e *Engine) Match(d models.Detection) (*models.MatchResult, bool) {
	return Match(d, e.patterns, e.minRSSIThreshold)
}

// Explain returns the per-pattern breakdown in catalog order
func (e *Engine) Explain(d models.Detection) []Breakdown {
	out := make([]Breakdown, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = Score(d, p, e.minRSSIThreshold)
	}
	return out
}

// Catalog returns the catalog the engine scores against
func (e *Engine) Catalog() *signature.Catalog {
	return e.catalog
}

// MinRSSIThreshold returns the global RSSI floor
func (e *Engine) MinRSSIThreshold() float64 {
	return e.minRSSIThreshold
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
