package spectrum

import (
	"context"

	"github.com/RMahshie/skywatch/pkg/models"
)

// Pool shares several capturers, each bound to its own device, between
// concurrent callers. A capturer is used by one caller at a time.
type Pool struct {
	free chan Capturer
	size int
}

// NewPool creates a pool over capturers
func NewPool(capturers ...Capturer) *Pool {
	p := &Pool{free: make(chan Capturer, len(capturers)), size: len(capturers)}
	for _, c := range capturers {
		p.free <- c
	}
	return p
}

// Capture borrows a free capturer, waiting until one is available or ctx ends
func (p *Pool) Capture(ctx context.Context, bandCenterMHz float64, sampleCount int) (*models.Detection, error) {
	select {
	case c := <-p.free:
		defer func() { p.free <- c }()
		return c.Capture(ctx, bandCenterMHz, sampleCount)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of capturers in the pool
func (p *Pool) Size() int { return p.size }
