// Package pipeline drives the scan loop: capture each configured band, match
// what was found against the catalog and hand the outcome to the sinks.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/skywatch/internal/alert"
	"github.com/RMahshie/skywatch/internal/matching"
	"github.com/RMahshie/skywatch/internal/metrics"
	"github.com/RMahshie/skywatch/internal/spectrum"
	"github.com/RMahshie/skywatch/pkg/models"
)

// Config holds the scan parameters
type Config struct {
	BandsMHz     []float64
	ChunkSamples int
	// Workers > 1 captures bands concurrently; the capturer must then be
	// safe for concurrent use (see spectrum.Pool)
	Workers int
}

// Pipeline runs detection cycles. Counters are safe to read while it runs.
type Pipeline struct {
	cfg          Config
	capturer     spectrum.Capturer
	engine       *matching.Engine
	alerts       alert.AlertSink
	unrecognized alert.UnrecognizedSink
	metrics      *metrics.ScannerMetrics
	logger       zerolog.Logger

	cycles  atomic.Int64
	matches atomic.Int64
	unknown atomic.Int64
	running atomic.Bool

	mu          sync.RWMutex
	lastCycle   *models.CycleSummary
	lastCycleAt time.Time
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithAlertSink sets the destination for matches
func WithAlertSink(s alert.AlertSink) Option {
	return func(p *Pipeline) { p.alerts = s }
}

// WithUnrecognizedSink sets the destination for unmatched detections
func WithUnrecognizedSink(s alert.UnrecognizedSink) Option {
	return func(p *Pipeline) { p.unrecognized = s }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.ScannerMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline
func New(cfg Config, capturer spectrum.Capturer, engine *matching.Engine, opts ...Option) (*Pipeline, error) {
	if capturer == nil {
		return nil, errors.New("pipeline requires a capturer")
	}
	if engine == nil {
		return nil, errors.New("pipeline requires a match engine")
	}
	if cfg.ChunkSamples < 2 {
		return nil, errors.New("chunk samples must be at least 2")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	cfg.BandsMHz = slices.Clone(cfg.BandsMHz)

	p := &Pipeline{
		cfg:      cfg,
		capturer: capturer,
		engine:   engine,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.metrics.SetCatalogSize(engine.Catalog().Len())
	return p, nil
}

// cycleCounts is shared by the band workers of one cycle
type cycleCounts struct {
	matches    atomic.Int32
	unknown    atomic.Int32
	quiet      atomic.Int32
	failed     atomic.Int32
	sinkErrors atomic.Int32
}

// RunCycle sweeps every band once. Band and sink failures are logged and
// never abort the cycle. If ctx ends mid-cycle the remaining bands are
// skipped, the partial summary is returned with ctx.Err() and the cycle is
// not counted as completed; matches found before cancellation still count.
func (p *Pipeline) RunCycle(ctx context.Context) (models.CycleSummary, error) {
	start := time.Now()
	var c cycleCounts

	if p.cfg.Workers == 1 {
		for _, band := range p.cfg.BandsMHz {
			if ctx.Err() != nil {
				break
			}
			p.scanBand(ctx, band, &c)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for _, band := range p.cfg.BandsMHz {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() == nil {
					p.scanBand(ctx, band, &c)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	summary := models.CycleSummary{
		Matches:    int(c.matches.Load()),
		Unknown:    int(c.unknown.Load()),
		Quiet:      int(c.quiet.Load()),
		Failed:     int(c.failed.Load()),
		SinkErrors: int(c.sinkErrors.Load()),
		Duration:   time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		summary.Cycle = p.cycles.Load() + 1
		return summary, err
	}

	summary.Cycle = p.cycles.Add(1)
	p.metrics.RecordCycle(summary.Duration)

	p.mu.Lock()
	p.lastCycle = &summary
	p.lastCycleAt = time.Now()
	p.mu.Unlock()

	p.logger.Debug().
		Int64("cycle", summary.Cycle).
		Int("matches", summary.Matches).
		Int("unknown", summary.Unknown).
		Int("quiet", summary.Quiet).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Cycle complete")

	return summary, nil
}

func (p *Pipeline) scanBand(ctx context.Context, band float64, c *cycleCounts) {
	start := time.Now()
	detection, err := p.capturer.Capture(ctx, band, p.cfg.ChunkSamples)
	p.metrics.RecordCapture(band, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.failed.Add(1)
		p.metrics.RecordBandError(band)
		p.logger.Warn().Err(err).Float64("band_mhz", band).Msg("Capture failed, skipping band")
		return
	}
	if detection == nil {
		c.quiet.Add(1)
		p.metrics.RecordQuiet()
		return
	}

	p.metrics.RecordPeak(band, detection.RSSIDb)

	result, ok := p.engine.Match(*detection)
	if !ok {
		c.unknown.Add(1)
		p.unknown.Add(1)
		p.metrics.RecordUnrecognized()

		p.logger.Debug().
			Float64("frequency_mhz", detection.FrequencyMHz).
			Int("rssi_db", detection.RSSIDb).
			Msg("Unrecognized signal")

		if p.unrecognized != nil {
			if err := p.unrecognized.Log(ctx, *detection); err != nil {
				c.sinkErrors.Add(1)
				p.logger.Error().Err(err).Float64("band_mhz", band).Msg("Failed to log unrecognized signal")
			}
		}
		return
	}

	c.matches.Add(1)
	p.matches.Add(1)
	p.metrics.RecordMatch(result.Pattern.DroneName)

	p.logger.Info().
		Str("drone", result.Pattern.DroneName).
		Float64("frequency_mhz", detection.FrequencyMHz).
		Int("rssi_db", detection.RSSIDb).
		Float64("confidence", result.Confidence).
		Msg("Drone signature matched")

	if p.alerts != nil {
		if err := p.alerts.Send(ctx, result); err != nil {
			c.sinkErrors.Add(1)
			p.logger.Error().Err(err).Str("drone", result.Pattern.DroneName).Msg("Failed to deliver alert")
		}
	}
}

// RunForever runs cycles separated by interval until ctx ends, then logs and
// returns the session totals
func (p *Pipeline) RunForever(ctx context.Context, interval time.Duration) models.SessionTotals {
	p.running.Store(true)
	defer p.running.Store(false)

	p.logger.Info().
		Dur("interval", interval).
		Floats64("bands_mhz", p.cfg.BandsMHz).
		Int("workers", p.cfg.Workers).
		Msg("Scanner started")

	for {
		if _, err := p.RunCycle(ctx); err != nil {
			break
		}
		if !sleep(ctx, interval) {
			break
		}
	}

	totals := p.Totals()
	p.logger.Info().
		Int64("cycles", totals.Cycles).
		Int64("matches", totals.Matches).
		Int64("unknown", totals.Unknown).
		Msg("Scanner stopped")
	return totals
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Totals returns the session counters
func (p *Pipeline) Totals() models.SessionTotals {
	return models.SessionTotals{
		Cycles:  p.cycles.Load(),
		Matches: p.matches.Load(),
		Unknown: p.unknown.Load(),
	}
}

// Status returns a snapshot for the HTTP API
func (p *Pipeline) Status() models.PipelineStatus {
	status := models.PipelineStatus{
		Running:     p.running.Load(),
		Totals:      p.Totals(),
		BandsMHz:    slices.Clone(p.cfg.BandsMHz),
		CatalogSize: p.engine.Catalog().Len(),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastCycle != nil {
		last := *p.lastCycle
		at := p.lastCycleAt
		status.LastCycle = &last
		status.LastCycleAt = &at
	}
	return status
}
