package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/skywatch/internal/alert"
	"github.com/RMahshie/skywatch/internal/config"
	"github.com/RMahshie/skywatch/internal/spectrum"
	"github.com/RMahshie/skywatch/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadWith(viper.New(), "")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Alerts.AlertOutput = filepath.Join(dir, "alerts.jsonl")
	cfg.Alerts.UnrecognizedOutput = filepath.Join(dir, "unrecognized.jsonl")
	cfg.Alerts.ConsoleColor = "never"
	return cfg
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "skywatch.db")
		repo, err := openRepository(ctx, "sqlite://"+path)
		require.NoError(t, err)
		defer repo.Close()

		alerts, err := repo.RecentAlerts(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		assert.FileExists(t, path)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := openRepository(ctx, "mysql://localhost/skywatch")
		assert.ErrorContains(t, err, "unsupported DATABASE_URL scheme")
	})
}

func TestSimulatedDevicesAndCapturer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Radio.Driver = "simulated"

	cfg.Scanner.Workers = 1
	devices, err := openDevices(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	_, isSampler := newCapturer(devices, cfg).(*spectrum.Sampler)
	assert.True(t, isSampler)

	cfg.Scanner.Workers = 3
	devices, err = openDevices(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	pool, ok := newCapturer(devices, cfg).(*spectrum.Pool)
	require.True(t, ok)
	assert.Equal(t, 3, pool.Size())
	closeDevices(devices)
}

func TestSimulatedDevices_EmitInFirstBand(t *testing.T) {
	cfg := testConfig(t)
	cfg.Radio.Driver = "simulated"
	cfg.Scanner.ChunkSamples = 4096

	devices, err := openDevices(context.Background(), cfg)
	require.NoError(t, err)
	defer closeDevices(devices)

	capturer := newCapturer(devices, cfg)
	d, err := capturer.Capture(context.Background(), cfg.Scanner.BandsMHz[0], cfg.Scanner.ChunkSamples)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.InDelta(t, cfg.Scanner.BandsMHz[0]+0.3, d.FrequencyMHz, 0.01)

	d, err = capturer.Capture(context.Background(), cfg.Scanner.BandsMHz[2], cfg.Scanner.ChunkSamples)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestOpenDevices_RTLTCPUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Radio.Addrs = []string{"127.0.0.1:1"}
	cfg.Radio.DialTimeout = 200 * time.Millisecond

	_, err := openDevices(context.Background(), cfg)
	assert.ErrorContains(t, err, "127.0.0.1:1")
}

func TestBuildSinks(t *testing.T) {
	cfg := testConfig(t)
	var stdout bytes.Buffer

	sinks, err := buildSinks(context.Background(), cfg, nil, &stdout)
	require.NoError(t, err)

	result := &models.MatchResult{
		ID:         "5b0f7c36-3f7e-4a0e-9f59-1f7f3e0d2a11",
		Detection:  models.Detection{FrequencyMHz: 2450.3, RSSIDb: 40, BurstPattern: "100Hz", DurationMs: 500},
		Pattern:    models.SignaturePattern{DroneName: "DJI OcuSync"},
		Confidence: 1,
		MatchedAt:  time.Now(),
	}
	require.NoError(t, sinks.fanout.Send(context.Background(), result))
	require.NoError(t, sinks.fanout.Log(context.Background(), models.Detection{FrequencyMHz: 915.1, RSSIDb: 33}))

	assert.Contains(t, stdout.String(), "ALERT   DJI OcuSync")

	recent, err := sinks.alertSource().RecentAlerts(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	_, fromCache := sinks.alertSource().(*alert.RecentAlerts)
	assert.True(t, fromCache)

	require.NoError(t, sinks.Close())

	data, err := os.ReadFile(cfg.Alerts.AlertOutput)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	data, err = os.ReadFile(cfg.Alerts.UnrecognizedOutput)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"frequency_mhz":915.1`)
}

func TestBuildSinks_RepositoryBacksAlertSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = "sqlite://" + filepath.Join(t.TempDir(), "skywatch.db")

	sinks, err := buildSinks(context.Background(), cfg, nil, &bytes.Buffer{})
	require.NoError(t, err)
	defer sinks.Close()

	assert.NotNil(t, sinks.repo)
	_, fromCache := sinks.alertSource().(*alert.RecentAlerts)
	assert.False(t, fromCache)
}
