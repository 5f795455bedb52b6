package alert

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/RMahshie/skywatch/pkg/models"
)

// DefaultRecentTTL is how long an alert stays in the recent list
const DefaultRecentTTL = time.Hour

// RecentAlerts keeps alerts in memory for the HTTP API. Entries expire after
// the configured TTL.
type RecentAlerts struct {
	cache *cache.Cache
}

// NewRecentAlerts creates the cache. A non-positive ttl uses DefaultRecentTTL.
func NewRecentAlerts(ttl time.Duration) *RecentAlerts {
	if ttl <= 0 {
		ttl = DefaultRecentTTL
	}
	return &RecentAlerts{cache: cache.New(ttl, 2*ttl)}
}

// Send stores the alert payload keyed by result ID
func (r *RecentAlerts) Send(_ context.Context, result *models.MatchResult) error {
	r.cache.SetDefault(result.ID, recentEntry{
		payload: models.NewAlertPayload(result),
		at:      result.MatchedAt,
	})
	return nil
}

type recentEntry struct {
	payload models.AlertPayload
	at      time.Time
}

// List returns at most limit unexpired alerts, newest first
func (r *RecentAlerts) List(limit int) []models.AlertPayload {
	items := r.cache.Items()

	entries := make([]recentEntry, 0, len(items))
	for _, item := range items {
		if e, ok := item.Object.(recentEntry); ok {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].payload.ID > entries[j].payload.ID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	alerts := make([]models.AlertPayload, len(entries))
	for i, e := range entries {
		alerts[i] = e.payload
	}
	return alerts
}

// RecentAlerts has the same shape as the repository query so either can back
// the HTTP API
func (r *RecentAlerts) RecentAlerts(_ context.Context, limit int) ([]models.AlertPayload, error) {
	return r.List(limit), nil
}

// Len returns the number of cached alerts, including expired ones not yet evicted
func (r *RecentAlerts) Len() int {
	return r.cache.ItemCount()
}

// Name implements Named
func (r *RecentAlerts) Name() string { return "recent" }
