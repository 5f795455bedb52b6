// Package alert delivers match results and unrecognized detections to their
// destinations: rotating log files, the console, MQTT, a repository and the
// in-memory recent-alert cache.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/RMahshie/skywatch/pkg/models"
)

// AlertSink receives every accepted match
type AlertSink interface {
	Send(ctx context.Context, result *models.MatchResult) error
}

// UnrecognizedSink receives detections that matched no signature
type UnrecognizedSink interface {
	Log(ctx context.Context, detection models.Detection) error
}

// Named is implemented by sinks that report a stable name for logs and metrics
type Named interface {
	Name() string
}

// ErrorHook is called once for every failed delivery
type ErrorHook func(sink string, err error)

// Fanout dispatches to every configured sink. A failing sink never prevents
// delivery to the others; the failures are joined into the returned error.
type Fanout struct {
	alerts       []AlertSink
	unrecognized []UnrecognizedSink
	onError      ErrorHook
}

// NewFanout creates an empty fanout
func NewFanout() *Fanout {
	return &Fanout{}
}

// AddAlertSink appends an alert destination
func (f *Fanout) AddAlertSink(s AlertSink) *Fanout {
	f.alerts = append(f.alerts, s)
	return f
}

// AddUnrecognizedSink appends an unrecognized-signal destination
func (f *Fanout) AddUnrecognizedSink(s UnrecognizedSink) *Fanout {
	f.unrecognized = append(f.unrecognized, s)
	return f
}

// OnError installs a hook invoked for each failed sink
func (f *Fanout) OnError(hook ErrorHook) *Fanout {
	f.onError = hook
	return f
}

// Send delivers result to every alert sink
func (f *Fanout) Send(ctx context.Context, result *models.MatchResult) error {
	var errs []error
	for _, s := range f.alerts {
		if err := s.Send(ctx, result); err != nil {
			errs = append(errs, f.fail(SinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// Log delivers detection to every unrecognized sink
func (f *Fanout) Log(ctx context.Context, detection models.Detection) error {
	var errs []error
	for _, s := range f.unrecognized {
		if err := s.Log(ctx, detection); err != nil {
			errs = append(errs, f.fail(SinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// Name implements Named
func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) fail(name string, err error) error {
	if f.onError != nil {
		f.onError(name, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// SinkName returns the sink's Name or its Go type
func SinkName(s any) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
