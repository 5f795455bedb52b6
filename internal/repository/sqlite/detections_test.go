package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/skywatch/pkg/models"
)

func openTemp(t *testing.T) *SQLiteDetectionRepository {
	t.Helper()

	repo, err := Open("sqlite://" + filepath.Join(t.TempDir(), "data", "skywatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.Migrate(context.Background()))
	return repo.(*SQLiteDetectionRepository)
}

func TestSQLiteDetectionRepository_Alerts(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		err := repo.StoreAlert(ctx, &models.MatchResult{
			ID:         name + "-id",
			Detection:  models.Detection{FrequencyMHz: 2450.3, RSSIDb: 40 + i, BurstPattern: "fhss", DurationMs: 500},
			Pattern:    models.SignaturePattern{DroneName: name},
			Confidence: 0.7,
			MatchedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	alerts, err := repo.RecentAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "third", alerts[0].Drone)
	assert.Equal(t, "second", alerts[1].Drone)
	assert.Equal(t, "third-id", alerts[0].ID)
	assert.Equal(t, 42, alerts[0].RSSIDb)
	assert.Equal(t, "fhss", alerts[0].Pattern)
	assert.Equal(t, 0.7, alerts[0].Confidence)
	assert.Equal(t, "2025-06-01T12:00:02Z", alerts[0].Timestamp)
}

func TestSQLiteDetectionRepository_EmptyAlerts(t *testing.T) {
	alerts, err := openTemp(t).RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestSQLiteDetectionRepository_Unrecognized(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	for range 3 {
		require.NoError(t, repo.StoreUnrecognized(ctx, models.Detection{
			FrequencyMHz:  2425.1,
			RSSIDb:        31,
			BurstPattern:  models.UnknownBurstPattern,
			DurationMs:    500,
			CapturedAt:    time.Now(),
			BandCenterMHz: 2425,
		}))
	}

	n, err := repo.CountUnrecognized(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteDetectionRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	result := &models.MatchResult{ID: "dup", Pattern: models.SignaturePattern{DroneName: "x"}, MatchedAt: time.Now()}
	require.NoError(t, repo.StoreAlert(ctx, result))
	assert.Error(t, repo.StoreAlert(ctx, result))
}
