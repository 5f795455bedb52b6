package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/skywatch/pkg/models"
)

// MockAlertSink implements AlertSink and UnrecognizedSink for testing
type MockAlertSink struct {
	mock.Mock
	name string
}

func (m *MockAlertSink) Send(ctx context.Context, result *models.MatchResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockAlertSink) Log(ctx context.Context, detection models.Detection) error {
	args := m.Called(ctx, detection)
	return args.Error(0)
}

func (m *MockAlertSink) Name() string { return m.name }

func sampleMatch() *models.MatchResult {
	return &models.MatchResult{
		ID: "3f1c1a8e-0000-4000-8000-000000000001",
		Detection: models.Detection{
			FrequencyMHz:  2450.3,
			RSSIDb:        42,
			BurstPattern:  "100Hz",
			DurationMs:    500,
			CapturedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			BandCenterMHz: 2450,
		},
		Pattern: models.SignaturePattern{
			DroneName:    "DJI OcuSync",
			FreqBand:     models.FrequencyBand{MinMHz: 2400, MaxMHz: 2483.5},
			BurstPattern: "100Hz",
			RSSIMin:      35,
		},
		Confidence: 1.0,
		MatchedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleDetection() models.Detection {
	return models.Detection{
		FrequencyMHz:  2425.12,
		RSSIDb:        33,
		BurstPattern:  models.UnknownBurstPattern,
		DurationMs:    500,
		CapturedAt:    time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
		BandCenterMHz: 2425,
	}
}

func TestFanout_DeliversToEverySinkDespiteFailures(t *testing.T) {
	ctx := context.Background()
	result := sampleMatch()

	failing := &MockAlertSink{name: "mqtt"}
	failing.On("Send", ctx, result).Return(errors.New("broker down"))
	ok := &MockAlertSink{name: "file"}
	ok.On("Send", ctx, result).Return(nil)

	var hooked []string
	f := NewFanout().
		AddAlertSink(failing).
		AddAlertSink(ok).
		OnError(func(sink string, err error) { hooked = append(hooked, sink) })

	err := f.Send(ctx, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt: broker down")
	assert.Equal(t, []string{"mqtt"}, hooked)

	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestFanout_JoinsAllErrors(t *testing.T) {
	ctx := context.Background()
	d := sampleDetection()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	a := &MockAlertSink{name: "a"}
	a.On("Log", ctx, d).Return(errA)
	b := &MockAlertSink{name: "b"}
	b.On("Log", ctx, d).Return(errB)

	err := NewFanout().AddUnrecognizedSink(a).AddUnrecognizedSink(b).Log(ctx, d)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestFanout_Empty(t *testing.T) {
	f := NewFanout()
	assert.NoError(t, f.Send(context.Background(), sampleMatch()))
	assert.NoError(t, f.Log(context.Background(), sampleDetection()))
}

func TestSinkName(t *testing.T) {
	assert.Equal(t, "console", SinkName(&ConsoleSink{}))
	assert.Equal(t, "*alert.unnamed", SinkName(&unnamed{}))
}

type unnamed struct{}
