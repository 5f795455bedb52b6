// Package metrics provides Prometheus collectors for the scan pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skywatch"

// ScannerMetrics holds the collectors updated by the detection pipeline.
// All record methods are safe to call on a nil receiver so callers can run
// without a registry.
type ScannerMetrics struct {
	CyclesTotal         prometheus.Counter
	MatchesTotal        *prometheus.CounterVec
	UnrecognizedTotal   prometheus.Counter
	QuietBandsTotal     prometheus.Counter
	BandErrorsTotal     *prometheus.CounterVec
	SinkErrorsTotal     *prometheus.CounterVec
	CaptureDuration     *prometheus.HistogramVec
	CycleDuration       prometheus.Histogram
	LastPeakRSSI        *prometheus.GaugeVec
	CatalogSize         prometheus.Gauge
	LastCycleCompletion prometheus.Gauge
}

// NewScannerMetrics creates the collectors and registers them with registry.
func NewScannerMetrics(registry prometheus.Registerer) (*ScannerMetrics, error) {
	m := &ScannerMetrics{}
	m.initMetrics()

	for _, c := range m.collectors() {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register scanner metrics: %w", err)
		}
	}
	return m, nil
}

func (m *ScannerMetrics) initMetrics() {
	m.CyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_cycles_total",
		Help:      "Total number of completed scan cycles",
	})

	m.MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Total number of detections matched to a signature",
	}, []string{"drone"})

	m.UnrecognizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unrecognized_total",
		Help:      "Total number of detections that matched no signature",
	})

	m.QuietBandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quiet_bands_total",
		Help:      "Total number of band captures with no peak above threshold",
	})

	m.BandErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "band_errors_total",
		Help:      "Total number of failed band captures",
	}, []string{"band_mhz"})

	m.SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_errors_total",
		Help:      "Total number of failed sink deliveries",
	}, []string{"sink"})

	m.CaptureDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "capture_duration_seconds",
		Help:      "Time spent tuning, reading and transforming one band",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"band_mhz"})

	m.CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Time spent on a full sweep of the configured bands",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.LastPeakRSSI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_peak_rssi_db",
		Help:      "Peak level of the most recent detection per band",
	}, []string{"band_mhz"})

	m.CatalogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_patterns",
		Help:      "Number of signature patterns loaded",
	})

	m.LastCycleCompletion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_completion_timestamp_seconds",
		Help:      "Unix time of the most recent completed cycle",
	})
}

func (m *ScannerMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CyclesTotal,
		m.MatchesTotal,
		m.UnrecognizedTotal,
		m.QuietBandsTotal,
		m.BandErrorsTotal,
		m.SinkErrorsTotal,
		m.CaptureDuration,
		m.CycleDuration,
		m.LastPeakRSSI,
		m.CatalogSize,
		m.LastCycleCompletion,
	}
}

// RecordCycle marks a completed sweep.
func (m *ScannerMetrics) RecordCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycleCompletion.SetToCurrentTime()
}

// RecordCapture observes one band capture.
func (m *ScannerMetrics) RecordCapture(bandMHz float64, d time.Duration) {
	if m == nil {
		return
	}
	m.CaptureDuration.WithLabelValues(bandLabel(bandMHz)).Observe(d.Seconds())
}

// RecordPeak stores the peak level seen on a band.
func (m *ScannerMetrics) RecordPeak(bandMHz float64, rssiDb int) {
	if m == nil {
		return
	}
	m.LastPeakRSSI.WithLabelValues(bandLabel(bandMHz)).Set(float64(rssiDb))
}

// RecordMatch counts a recognised drone.
func (m *ScannerMetrics) RecordMatch(drone string) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(drone).Inc()
}

// RecordUnrecognized counts a detection without a match.
func (m *ScannerMetrics) RecordUnrecognized() {
	if m == nil {
		return
	}
	m.UnrecognizedTotal.Inc()
}

// RecordQuiet counts a band with nothing above threshold.
func (m *ScannerMetrics) RecordQuiet() {
	if m == nil {
		return
	}
	m.QuietBandsTotal.Inc()
}

// RecordBandError counts a failed capture.
func (m *ScannerMetrics) RecordBandError(bandMHz float64) {
	if m == nil {
		return
	}
	m.BandErrorsTotal.WithLabelValues(bandLabel(bandMHz)).Inc()
}

// RecordSinkError counts a failed delivery to the named sink.
func (m *ScannerMetrics) RecordSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// SetCatalogSize publishes the number of loaded patterns.
func (m *ScannerMetrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(n))
}

func bandLabel(mhz float64) string {
	return fmt.Sprintf("%g", mhz)
}
