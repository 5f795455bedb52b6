// Package spectrum turns raw IQ blocks into power-peak detections.
package spectrum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RMahshie/skywatch/internal/radio"
	"github.com/RMahshie/skywatch/pkg/models"
)

// ErrCapture wraps every hardware failure returned by Capture
var ErrCapture = errors.New("spectrum capture failed")

// Capturer produces at most one detection per band per call.
// A nil detection with a nil error means the band was quiet.
type Capturer interface {
	Capture(ctx context.Context, bandCenterMHz float64, sampleCount int) (*models.Detection, error)
}

// BurstClassifier labels the burst pattern of a captured block
type BurstClassifier interface {
	Classify(samples []complex64, sampleRateHz float64) string
}

// DurationEstimator estimates the event length of a captured block
type DurationEstimator interface {
	EstimateMs(samples []complex64, sampleRateHz float64) int
}

// Config holds sampler settings
type Config struct {
	SampleRateHz    float64
	PeakThresholdDb float64
}

// Sampler captures one band at a time from a radio device
type Sampler struct {
	device     radio.Device
	cfg        Config
	classifier BurstClassifier
	estimator  DurationEstimator
	plans      map[int]*fourier.FFT
	now        func() time.Time
	logger     zerolog.Logger
}

// Option customises a Sampler
type Option func(*Sampler)

// WithBurstClassifier attaches a burst-pattern classifier
func WithBurstClassifier(c BurstClassifier) Option {
	return func(s *Sampler) { s.classifier = c }
}

// WithDurationEstimator attaches a duration estimator
func WithDurationEstimator(e DurationEstimator) Option {
	return func(s *Sampler) { s.estimator = e }
}

// WithClock overrides the capture timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler creates a sampler reading from device
func NewSampler(device radio.Device, cfg Config, opts ...Option) *Sampler {
	s := &Sampler{
		device: device,
		cfg:    cfg,
		plans:  make(map[int]*fourier.FFT),
		now:    time.Now,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture tunes to the band, reads sampleCount samples and returns the
// strongest spectral peak if it clears the threshold.
// Not safe for concurrent use: the device holds a single tuning.
func (s *Sampler) Capture(ctx context.Context, bandCenterMHz float64, sampleCount int) (*models.Detection, error) {
	if sampleCount < 2 {
		return nil, fmt.Errorf("sample count must be at least 2, got %d", sampleCount)
	}

	centerHz := bandCenterMHz * 1e6
	if err := s.device.Tune(ctx, centerHz); err != nil {
		return nil, fmt.Errorf("%w: tune %.3f MHz: %w", ErrCapture, bandCenterMHz, err)
	}

	samples, err := s.device.ReadSamples(ctx, sampleCount)
	if err != nil {
		return nil, fmt.Errorf("%w: read at %.3f MHz: %w", ErrCapture, bandCenterMHz, err)
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: short read at %.3f MHz (%d samples)", ErrCapture, bandCenterMHz, len(samples))
	}

	power := s.powerSpectrum(samples)
	peakBin, peakDb := ArgMax(power)
	if peakBin < 0 || peakDb < s.cfg.PeakThresholdDb {
		s.logger.Debug().
			Float64("band_mhz", bandCenterMHz).
			Float64("peak_db", peakDb).
			Msg("No peak above threshold")
		return nil, nil
	}

	peakHz := PeakFrequencyHz(centerHz, s.cfg.SampleRateHz, len(power), peakBin)

	burst := models.UnknownBurstPattern
	if s.classifier != nil {
		if label := s.classifier.Classify(samples, s.cfg.SampleRateHz); label != "" {
			burst = label
		}
	}
	duration := models.DefaultDurationMs
	if s.estimator != nil {
		duration = s.estimator.EstimateMs(samples, s.cfg.SampleRateHz)
	}

	return &models.Detection{
		FrequencyMHz:  Round2(peakHz / 1e6),
		RSSIDb:        int(peakDb),
		BurstPattern:  burst,
		DurationMs:    duration,
		CapturedAt:    s.now(),
		BandCenterMHz: bandCenterMHz,
	}, nil
}

// powerSpectrum returns 20*log10|X| of the real-input DFT of the in-phase component
func (s *Sampler) powerSpectrum(samples []complex64) []float64 {
	n := len(samples)
	plan, ok := s.plans[n]
	if !ok {
		plan = fourier.NewFFT(n)
		s.plans[n] = plan
	}

	in := make([]float64, n)
	for i, v := range samples {
		in[i] = float64(real(v))
	}
	return MagnitudeDb(plan.Coefficients(nil, in))
}

// MagnitudeDb converts DFT coefficients to 20*log10 magnitude
func MagnitudeDb(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = 20 * math.Log10(math.Hypot(real(c), imag(c)))
	}
	return out
}

// ArgMax returns the index and value of the first maximum, ignoring NaN.
// It returns -1 when no finite or infinite value exists.
func ArgMax(values []float64) (int, float64) {
	idx := -1
	best := math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if idx < 0 || v > best {
			idx, best = i, v
		}
	}
	return idx, best
}

// PeakFrequencyHz maps a bin of a half-spectrum of width sampleRate/2, offset so
// the band is centred on centerHz, to an absolute frequency.
func PeakFrequencyHz(centerHz, sampleRateHz float64, binCount, peakBin int) float64 {
	binWidth := sampleRateHz / 2 / float64(binCount)
	return centerHz - sampleRateHz/4 + float64(peakBin)*binWidth
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
