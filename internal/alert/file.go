package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/RMahshie/skywatch/pkg/models"
)

// FileConfig controls a rotating JSON-lines file
type FileConfig struct {
	Path       string
	MaxSizeMB  int // rotate after this many megabytes
	MaxBackups int
	MaxAgeDays int // 0 keeps backups regardless of age
	Compress   bool
}

// FileSink appends one JSON object per line to a rotating file. It serves
// both as an AlertSink and an UnrecognizedSink.
type FileSink struct {
	mu   sync.Mutex
	out  *lumberjack.Logger
	name string
}

// NewFileSink opens a rotating writer for cfg.Path, creating its directory
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, errors.New("file sink path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Path, err)
	}

	return &FileSink{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		name: "file:" + filepath.Base(cfg.Path),
	}, nil
}

// Send writes the flattened alert payload
func (s *FileSink) Send(_ context.Context, result *models.MatchResult) error {
	return s.writeLine(models.NewAlertPayload(result))
}

// Log writes the flattened unrecognized record
func (s *FileSink) Log(_ context.Context, detection models.Detection) error {
	return s.writeLine(models.NewUnrecognizedRecord(detection))
}

func (s *FileSink) writeLine(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.out.Filename, err)
	}
	return nil
}

// Path returns the active file path
func (s *FileSink) Path() string { return s.out.Filename }

// Name implements Named
func (s *FileSink) Name() string { return s.name }

// Close flushes and closes the current file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
