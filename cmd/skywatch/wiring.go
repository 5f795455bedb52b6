package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/skywatch/internal/alert"
	"github.com/RMahshie/skywatch/internal/api/handlers"
	"github.com/RMahshie/skywatch/internal/config"
	"github.com/RMahshie/skywatch/internal/metrics"
	"github.com/RMahshie/skywatch/internal/radio"
	"github.com/RMahshie/skywatch/internal/repository"
	"github.com/RMahshie/skywatch/internal/repository/postgres"
	"github.com/RMahshie/skywatch/internal/repository/sqlite"
	"github.com/RMahshie/skywatch/internal/signature"
	"github.com/RMahshie/skywatch/internal/spectrum"
	"github.com/RMahshie/skywatch/internal/storage"
)

// loadCatalog reads the signature source from disk or from S3
func loadCatalog(ctx context.Context, cfg *config.Config) (*signature.Catalog, error) {
	src := cfg.Signature.Source
	if !storage.IsS3URL(src) {
		return signature.Load(src)
	}

	bucket, key, err := storage.ParseS3URL(src)
	if err != nil {
		return nil, err
	}
	store, err := newS3(cfg, bucket)
	if err != nil {
		return nil, err
	}
	return signature.LoadFromStore(ctx, store, key)
}

func newS3(cfg *config.Config, bucket string) (storage.S3Service, error) {
	return storage.NewS3Service(storage.S3Config{
		Bucket:    bucket,
		Endpoint:  cfg.AWS.S3Endpoint,
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKeyID,
		SecretKey: cfg.AWS.SecretAccessKey,
	})
}

// openRepository picks the backend from the URL scheme and applies the schema
func openRepository(ctx context.Context, url string) (repository.DetectionRepository, error) {
	var (
		repo repository.DetectionRepository
		err  error
	)

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		repo, err = postgres.Open(ctx, url)
	case strings.HasPrefix(url, "sqlite://"):
		repo, err = sqlite.Open(url)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", url)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

// openDevices returns one device per rtl_tcp address, or one simulator per
// worker when the simulated driver is selected
func openDevices(ctx context.Context, cfg *config.Config) ([]radio.Device, error) {
	if cfg.Radio.Driver == "simulated" {
		return simulatedDevices(cfg), nil
	}

	devices := make([]radio.Device, 0, len(cfg.Radio.Addrs))
	for _, addr := range cfg.Radio.Addrs {
		dev, err := radio.DialRTLTCP(ctx, radio.RTLTCPConfig{
			Addr:         addr,
			SampleRateHz: cfg.Scanner.SampleRateHz,
			Gain:         cfg.Scanner.Gain,
			DialTimeout:  cfg.Radio.DialTimeout,
			Settle:       cfg.Radio.Settle,
		})
		if err != nil {
			closeDevices(devices)
			return nil, fmt.Errorf("failed to open rtl_tcp device %s: %w", addr, err)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// simulatedDevices places a single tone 300 kHz above the first band so a
// dry run produces traffic
func simulatedDevices(cfg *config.Config) []radio.Device {
	var emitters []radio.Emitter
	if len(cfg.Scanner.BandsMHz) > 0 {
		emitters = append(emitters, radio.Emitter{
			FrequencyHz: cfg.Scanner.BandsMHz[0]*1e6 + 300e3,
			Amplitude:   1,
		})
	}

	devices := make([]radio.Device, cfg.Scanner.Workers)
	for i := range devices {
		devices[i] = radio.NewSimulator(radio.SimulatorConfig{
			SampleRateHz: cfg.Scanner.SampleRateHz,
			Seed:         uint64(i + 1),
			NoiseStdDev:  0.01,
			Emitters:     emitters,
		})
	}
	return devices
}

func closeDevices(devices []radio.Device) {
	for _, dev := range devices {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close radio device")
		}
	}
}

// newCapturer binds a sampler to each device. Several devices are shared
// through a pool.
func newCapturer(devices []radio.Device, cfg *config.Config) spectrum.Capturer {
	scfg := spectrum.Config{
		SampleRateHz:    cfg.Scanner.SampleRateHz,
		PeakThresholdDb: cfg.Scanner.PeakThresholdDb,
	}

	samplers := make([]spectrum.Capturer, len(devices))
	for i, dev := range devices {
		samplers[i] = spectrum.NewSampler(dev, scfg)
	}
	if len(samplers) == 1 {
		return samplers[0]
	}
	return spectrum.NewPool(samplers...)
}

// sinkSet is everything the scan command dispatches to, plus what must be
// closed on shutdown
type sinkSet struct {
	fanout  *alert.Fanout
	recent  *alert.RecentAlerts
	repo    repository.DetectionRepository
	closers []io.Closer
}

func (s *sinkSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildSinks opens every configured destination
func buildSinks(ctx context.Context, cfg *config.Config, m *metrics.ScannerMetrics, stdout io.Writer) (*sinkSet, error) {
	set := &sinkSet{
		fanout: alert.NewFanout().OnError(func(sink string, err error) {
			m.RecordSinkError(sink)
		}),
	}

	fail := func(err error) (*sinkSet, error) {
		set.Close()
		return nil, err
	}

	alerts, err := alert.NewFileSink(alert.FileConfig{
		Path:       cfg.Alerts.AlertOutput,
		MaxSizeMB:  cfg.Alerts.MaxSizeMB,
		MaxBackups: cfg.Alerts.Backups,
		MaxAgeDays: cfg.Alerts.MaxAgeDays,
		Compress:   cfg.Alerts.Compress,
	})
	if err != nil {
		return fail(err)
	}
	set.closers = append(set.closers, alerts)
	set.fanout.AddAlertSink(alerts)

	unrecognized, err := alert.NewFileSink(alert.FileConfig{
		Path:       cfg.Alerts.UnrecognizedOutput,
		MaxSizeMB:  cfg.Alerts.MaxSizeMB,
		MaxBackups: cfg.Alerts.Backups,
		MaxAgeDays: cfg.Alerts.MaxAgeDays,
		Compress:   cfg.Alerts.Compress,
	})
	if err != nil {
		return fail(err)
	}
	set.closers = append(set.closers, unrecognized)
	set.fanout.AddUnrecognizedSink(unrecognized)

	mode, err := alert.ParseColorMode(cfg.Alerts.ConsoleColor)
	if err != nil {
		return fail(err)
	}
	set.fanout.AddAlertSink(alert.NewConsoleSink(stdout, mode))

	set.recent = alert.NewRecentAlerts(cfg.Alerts.RecentTTL)
	set.fanout.AddAlertSink(set.recent)

	if cfg.MQTT.Broker != "" {
		mq, err := alert.NewMQTTSink(alert.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            1,
			PublishTimeout: cfg.MQTT.PublishTimeout,
		})
		if err != nil {
			return fail(err)
		}
		set.closers = append(set.closers, mq)
		set.fanout.AddAlertSink(mq).AddUnrecognizedSink(mq)
	}

	if cfg.Database.URL != "" {
		repo, err := openRepository(ctx, cfg.Database.URL)
		if err != nil {
			return fail(err)
		}
		set.repo = repo
		set.closers = append(set.closers, repo)
		rs := alert.NewRepositorySink(repo)
		set.fanout.AddAlertSink(rs).AddUnrecognizedSink(rs)
	}

	return set, nil
}

// alertSource serves the HTTP listing from the database when one is
// configured, otherwise from the in-memory cache
func (s *sinkSet) alertSource() handlers.AlertSource {
	if s.repo != nil {
		return s.repo
	}
	return s.recent
}

// archiveLogs uploads the alert logs to the archive bucket
func archiveLogs(ctx context.Context, cfg *config.Config, store storage.S3Service, prefix string) {
	for _, path := range []string{cfg.Alerts.AlertOutput, cfg.Alerts.UnrecognizedOutput} {
		key, err := store.ArchiveFile(ctx, path, prefix)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to archive log")
			continue
		}
		if key != "" {
			log.Info().Str("path", path).Str("key", key).Msg("Archived log")
		}
	}
}
