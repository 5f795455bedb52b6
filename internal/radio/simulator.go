package radio

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// Emitter is a continuous tone at an absolute frequency
type Emitter struct {
	FrequencyHz float64
	Amplitude   float64
}

// SimulatorConfig drives the deterministic sample generator
type SimulatorConfig struct {
	SampleRateHz float64
	Seed         uint64
	NoiseStdDev  float64
	Emitters     []Emitter
	// ReadFaults maps a tuned centre frequency in Hz to the error its reads return
	ReadFaults map[float64]error
}

// Simulator generates IQ samples for a set of emitters around the tuned frequency.
// The same seed always yields the same samples.
type Simulator struct {
	cfg    SimulatorConfig
	mu     sync.Mutex
	rng    *rand.Rand
	center float64
	tuned  bool
	closed bool
	reads  int
}

// NewSimulator builds a simulator
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Tune records the centre frequency
func (s *Simulator) Tune(ctx context.Context, centerHz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.center = centerHz
	s.tuned = true
	return nil
}

// ReadSamples synthesises count samples at the current centre frequency.
// Emitters are placed so that the real-input spectrum maps them back to their
// absolute frequency: an emitter at f lands at baseband f - center + rate/4.
func (s *Simulator) ReadSamples(ctx context.Context, count int) ([]complex64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.tuned {
		return nil, fmt.Errorf("simulator read before tune")
	}
	if err, ok := s.cfg.ReadFaults[s.center]; ok {
		return nil, err
	}
	s.reads++

	rate := s.cfg.SampleRateHz
	out := make([]complex64, count)
	for _, em := range s.cfg.Emitters {
		baseband := em.FrequencyHz - s.center + rate/4
		if baseband < 0 || baseband > rate/2 {
			continue
		}
		w := 2 * math.Pi * baseband / rate
		for n := range out {
			phase := w * float64(n)
			out[n] += complex(float32(em.Amplitude*math.Cos(phase)), float32(em.Amplitude*math.Sin(phase)))
		}
	}
	if s.cfg.NoiseStdDev > 0 {
		for n := range out {
			out[n] += complex(
				float32(s.rng.NormFloat64()*s.cfg.NoiseStdDev),
				float32(s.rng.NormFloat64()*s.cfg.NoiseStdDev),
			)
		}
	}
	return out, nil
}

// Reads returns the number of successful reads so far
func (s *Simulator) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Close marks the simulator closed
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
