package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/RMahshie/skywatch/pkg/models"
)

// ColorMode selects when the console sink emits ANSI colour
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

const (
	ansiCyan  = "\x1b[36m"
	ansiReset = "\x1b[0m"
)

// ParseColorMode accepts auto, always or never (case-insensitive; empty is auto)
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid console colour mode %q: want auto, always or never", s)
	}
}

// ConsoleSink prints a one-line summary of every alert
type ConsoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewConsoleSink writes to out. In auto mode colour is used only when out is
// a terminal.
func NewConsoleSink(out io.Writer, mode ColorMode) *ConsoleSink {
	color := false
	switch mode {
	case ColorAlways:
		color = true
	case ColorNever:
	default:
		if f, ok := out.(*os.File); ok {
			color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return &ConsoleSink{out: out, color: color}
}

// Send prints the alert line
func (s *ConsoleSink) Send(_ context.Context, result *models.MatchResult) error {
	line := FormatAlertLine(models.NewAlertPayload(result))
	if s.color {
		line = ansiCyan + line + ansiReset
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, line)
	return err
}

// Colored reports whether ANSI colour is enabled
func (s *ConsoleSink) Colored() bool { return s.color }

// Name implements Named
func (s *ConsoleSink) Name() string { return "console" }

// FormatAlertLine renders "[ts] ALERT   drone  f MHz  rssi dB  conf c"
func FormatAlertLine(p models.AlertPayload) string {
	return fmt.Sprintf("[%s] ALERT   %s  %.2f MHz  %d dB  conf %.2f",
		p.Timestamp, p.Drone, p.FrequencyMHz, p.RSSIDb, p.Confidence)
}
