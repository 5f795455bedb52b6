package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScannerMetrics_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewScannerMetrics(registry)
	require.NoError(t, err)

	// a second set on the same registry collides
	_, err = NewScannerMetrics(registry)
	assert.Error(t, err)
}

func TestScannerMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewScannerMetrics(registry)
	require.NoError(t, err)

	m.RecordCycle(120 * time.Millisecond)
	m.RecordCycle(80 * time.Millisecond)
	m.RecordMatch("DJI OcuSync")
	m.RecordMatch("DJI OcuSync")
	m.RecordMatch("TBS Crossfire")
	m.RecordUnrecognized()
	m.RecordQuiet()
	m.RecordBandError(2425)
	m.RecordSinkError("mqtt")
	m.RecordPeak(2450, 42)
	m.RecordCapture(2450, 10*time.Millisecond)
	m.SetCatalogSize(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CyclesTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MatchesTotal.WithLabelValues("DJI OcuSync")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MatchesTotal.WithLabelValues("TBS Crossfire")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnrecognizedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QuietBandsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BandErrorsTotal.WithLabelValues("2425")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("mqtt")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.LastPeakRSSI.WithLabelValues("2450")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CatalogSize))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CaptureDuration))
}

func TestScannerMetrics_NilReceiver(t *testing.T) {
	var m *ScannerMetrics
	assert.NotPanics(t, func() {
		m.RecordCycle(time.Second)
		m.RecordCapture(2450, time.Millisecond)
		m.RecordPeak(2450, 10)
		m.RecordMatch("x")
		m.RecordUnrecognized()
		m.RecordQuiet()
		m.RecordBandError(2450)
		m.RecordSinkError("file")
		m.SetCatalogSize(1)
	})
}

func TestBandLabel(t *testing.T) {
	assert.Equal(t, "2450", bandLabel(2450))
	assert.Equal(t, "2483.5", bandLabel(2483.5))
}
