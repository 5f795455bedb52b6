package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/skywatch/internal/api"
	"github.com/RMahshie/skywatch/internal/api/handlers"
	"github.com/RMahshie/skywatch/internal/matching"
	"github.com/RMahshie/skywatch/internal/metrics"
	"github.com/RMahshie/skywatch/internal/pipeline"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the configured bands until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runScan(ctx, cmd)
		},
	}
}

func (a *app) runScan(ctx context.Context, cmd *cobra.Command) error {
	cfg := a.cfg

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load signatures from %s: %w", cfg.Signature.Source, err)
	}
	if catalog.Len() == 0 {
		log.Warn().Str("source", cfg.Signature.Source).Msg("Signature catalog is empty, every detection will be unrecognized")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewScannerMetrics(registry)
	if err != nil {
		return err
	}

	devices, err := openDevices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDevices(devices)

	sinks, err := buildSinks(ctx, cfg, m, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sinks")
		}
	}()

	engine := matching.NewEngine(catalog, cfg.Scanner.MinRSSIThreshold)
	p, err := pipeline.New(pipeline.Config{
		BandsMHz:     cfg.Scanner.BandsMHz,
		ChunkSamples: cfg.Scanner.ChunkSamples,
		Workers:      cfg.Scanner.Workers,
	}, newCapturer(devices, cfg), engine,
		pipeline.WithAlertSink(sinks.fanout),
		pipeline.WithUnrecognizedSink(sinks.fanout),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	log.Info().
		Str("driver", cfg.Radio.Driver).
		Int("devices", len(devices)).
		Float64("sample_rate_hz", cfg.Scanner.SampleRateHz).
		Str("gain", cfg.Scanner.Gain.String()).
		Float64("threshold_db", cfg.Scanner.PeakThresholdDb).
		Int("signatures", catalog.Len()).
		Msg("Scanner configured")

	var srv *http.Server
	if cfg.Server.Addr != "" {
		handler := handlers.NewStatusHandler(p, catalog, sinks.alertSource())
		router := api.NewRouter(api.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Gatherer:       registry,
		}, handler)

		srv = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("addr", cfg.Server.Addr).Msg("Starting Skywatch API server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("API server failed")
			}
		}()
	}

	totals := p.RunForever(ctx, cfg.Scanner.Interval)
	fmt.Fprintf(cmd.OutOrStdout(), "matches: %d  unknown: %d\n", totals.Matches, totals.Unknown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		log.Info().Msg("Shutting down server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}

	if cfg.AWS.ArchiveBucket != "" {
		// Rotated files flush on close
		if err := sinks.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sinks")
		}
		sinks.closers = nil

		store, err := newS3(cfg, cfg.AWS.ArchiveBucket)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open archive bucket")
		} else {
			archiveLogs(shutdownCtx, cfg, store, "logs/"+time.Now().UTC().Format("2006-01-02T150405Z"))
		}
	}

	log.Info().Msg("Scanner exited")
	return nil
}
