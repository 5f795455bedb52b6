package alert

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/skywatch/pkg/models"
)

func TestRecentAlerts_NewestFirstWithLimit(t *testing.T) {
	recent := NewRecentAlerts(time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		m := sampleMatch()
		m.ID = fmt.Sprintf("id-%d", i)
		m.Pattern.DroneName = fmt.Sprintf("drone-%d", i)
		m.MatchedAt = base.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, recent.Send(context.Background(), m))
	}

	assert.Equal(t, 5, recent.Len())

	got := recent.List(3)
	require.Len(t, got, 3)
	assert.Equal(t, "drone-4", got[0].Drone)
	assert.Equal(t, "drone-3", got[1].Drone)
	assert.Equal(t, "drone-2", got[2].Drone)

	assert.Len(t, recent.List(0), 5)
}

func TestRecentAlerts_Expire(t *testing.T) {
	recent := NewRecentAlerts(20 * time.Millisecond)
	require.NoError(t, recent.Send(context.Background(), sampleMatch()))
	require.Len(t, recent.List(10), 1)

	assert.Eventually(t, func() bool {
		return len(recent.List(10)) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRecentAlerts_SameIDOverwrites(t *testing.T) {
	recent := NewRecentAlerts(0)
	require.NoError(t, recent.Send(context.Background(), sampleMatch()))
	require.NoError(t, recent.Send(context.Background(), sampleMatch()))
	assert.Len(t, recent.List(10), 1)
}

// MockDetectionRepository implements repository.DetectionRepository for testing
type MockDetectionRepository struct {
	mock.Mock
}

func (m *MockDetectionRepository) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDetectionRepository) StoreAlert(ctx context.Context, result *models.MatchResult) error {
	return m.Called(ctx, result).Error(0)
}

func (m *MockDetectionRepository) StoreUnrecognized(ctx context.Context, d models.Detection) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDetectionRepository) RecentAlerts(ctx context.Context, limit int) ([]models.AlertPayload, error) {
	args := m.Called(ctx, limit)
	alerts, _ := args.Get(0).([]models.AlertPayload)
	return alerts, args.Error(1)
}

func (m *MockDetectionRepository) Close() error {
	return m.Called().Error(0)
}

func TestRepositorySink(t *testing.T) {
	ctx := context.Background()
	result := sampleMatch()
	d := sampleDetection()

	repo := new(MockDetectionRepository)
	repo.On("StoreAlert", ctx, result).Return(nil)
	repo.On("StoreUnrecognized", ctx, d).Return(nil)

	sink := NewRepositorySink(repo)
	require.NoError(t, sink.Send(ctx, result))
	require.NoError(t, sink.Log(ctx, d))
	assert.Equal(t, "repository", sink.Name())

	repo.AssertExpectations(t)
}

func TestRecentAlerts_RepositoryShape(t *testing.T) {
	recent := NewRecentAlerts(time.Minute)
	require.NoError(t, recent.Send(context.Background(), sampleMatch()))

	got, err := recent.RecentAlerts(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "DJI OcuSync", got[0].Drone)
}
