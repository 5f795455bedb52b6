// Package radio provides the hardware side of the scanner: tuning a receiver
// and pulling raw IQ samples from it.
package radio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrClosed is returned by devices that were already closed
var ErrClosed = errors.New("radio device closed")

// Device is a tunable IQ sample source
type Device interface {
	Tune(ctx context.Context, centerHz float64) error
	ReadSamples(ctx context.Context, count int) ([]complex64, error)
	Close() error
}

// Gain is either automatic or a fixed value in dB
type Gain struct {
	Auto bool
	DB   float64
}

// AutoGain selects the tuner AGC
var AutoGain = Gain{Auto: true}

// ParseGain accepts "auto" or a number of dB
func ParseGain(s string) (Gain, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return AutoGain, nil
	}
	db, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Gain{}, fmt.Errorf("invalid gain %q: want \"auto\" or dB value", s)
	}
	return Gain{DB: db}, nil
}

func (g Gain) String() string {
	if g.Auto {
		return "auto"
	}
	return strconv.FormatFloat(g.DB, 'f', 1, 64)
}
