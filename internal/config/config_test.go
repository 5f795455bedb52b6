package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/skywatch/internal/radio"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 2.4e6, cfg.Scanner.SampleRateHz)
	assert.Equal(t, radio.AutoGain, cfg.Scanner.Gain)
	assert.Equal(t, 30.0, cfg.Scanner.PeakThresholdDb)
	assert.Equal(t, 262144, cfg.Scanner.ChunkSamples)
	assert.Equal(t, []float64{2400, 2425, 2450, 2475}, cfg.Scanner.BandsMHz)
	assert.Equal(t, time.Second, cfg.Scanner.Interval)
	assert.Equal(t, 0.0, cfg.Scanner.MinRSSIThreshold)
	assert.Equal(t, 1, cfg.Scanner.Workers)

	assert.Equal(t, "rtltcp", cfg.Radio.Driver)
	assert.Equal(t, 20*time.Millisecond, cfg.Radio.Settle)
	assert.Equal(t, 10*time.Second, cfg.MQTT.PublishTimeout)
	assert.Equal(t, []string{"127.0.0.1:1234"}, cfg.Radio.Addrs)
	assert.Equal(t, "signatures/patterns.json", cfg.Signature.Source)
	assert.Equal(t, "alerts.jsonl", cfg.Alerts.AlertOutput)
	assert.Equal(t, 2, cfg.Alerts.MaxSizeMB)
	assert.Equal(t, 3, cfg.Alerts.Backups)
	assert.Equal(t, "unrecognized_signals.jsonl", cfg.Alerts.UnrecognizedOutput)
	assert.Equal(t, "auto", cfg.Alerts.ConsoleColor)
	assert.Equal(t, time.Hour, cfg.Alerts.RecentTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "skywatch", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SCAN_BANDS_MHZ", "5740, 5800 ,5860")
	t.Setenv("GAIN", "49.6")
	t.Setenv("SCAN_INTERVAL_SEC", "0.25")
	t.Setenv("MIN_RSSI_THRESHOLD", "20")
	t.Setenv("RADIO_DRIVER", "SIMULATED")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("DATABASE_URL", "sqlite://data/skywatch.db")

	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, []float64{5740, 5800, 5860}, cfg.Scanner.BandsMHz)
	assert.Equal(t, radio.Gain{DB: 49.6}, cfg.Scanner.Gain)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.Interval)
	assert.Equal(t, 20.0, cfg.Scanner.MinRSSIThreshold)
	assert.Equal(t, "simulated", cfg.Radio.Driver)
	assert.Equal(t, 3, cfg.Scanner.Workers)
	assert.Equal(t, "sqlite://data/skywatch.db", cfg.Database.URL)
}

func TestLoad_SettingsFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"scan_bands_mhz": [915, 868],
			"peak_threshold_db": 25,
			"alert_output": "/var/log/skywatch/alerts.jsonl",
			"gain": 32.8
		}`), 0o644))

		cfg, err := LoadWith(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, []float64{915, 868}, cfg.Scanner.BandsMHz)
		assert.Equal(t, 25.0, cfg.Scanner.PeakThresholdDb)
		assert.Equal(t, "/var/log/skywatch/alerts.jsonl", cfg.Alerts.AlertOutput)
		assert.Equal(t, radio.Gain{DB: 32.8}, cfg.Scanner.Gain)
	})

	t.Run("yaml via CONFIG_FILE", func(t *testing.T) {
		path := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan_interval_sec: 2.5\nsignatures_source: s3://sigs/patterns.yaml\n"), 0o644))
		t.Setenv("CONFIG_FILE", path)

		cfg, err := LoadWith(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, cfg.Scanner.Interval)
		assert.Equal(t, "s3://sigs/patterns.yaml", cfg.Signature.Source)
	})

	t.Run("environment beats file", func(t *testing.T) {
		path := filepath.Join(dir, "override.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"peak_threshold_db": 25}`), 0o644))
		t.Setenv("PEAK_THRESHOLD_DB", "40")

		cfg, err := LoadWith(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, 40.0, cfg.Scanner.PeakThresholdDb)
	})

	t.Run("env file beats settings file", func(t *testing.T) {
		work := t.TempDir()
		t.Chdir(work)
		t.Setenv("ENVIRONMENT", "staging")

		require.NoError(t, os.WriteFile(filepath.Join(work, ".env.staging"),
			[]byte("PEAK_THRESHOLD_DB=33\nMQTT_TOPIC_PREFIX=site-b\n"), 0o644))
		path := filepath.Join(work, "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"peak_threshold_db": 25, "chunk_samples": 4096}`), 0o644))

		cfg, err := LoadWith(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, 33.0, cfg.Scanner.PeakThresholdDb)
		assert.Equal(t, "site-b", cfg.MQTT.TopicPrefix)
		assert.Equal(t, 4096, cfg.Scanner.ChunkSamples)

		t.Setenv("PEAK_THRESHOLD_DB", "41")
		cfg, err = LoadWith(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, 41.0, cfg.Scanner.PeakThresholdDb)
	})

	t.Run("settings file named in env file", func(t *testing.T) {
		work := t.TempDir()
		t.Chdir(work)
		t.Setenv("ENVIRONMENT", "field")
		t.Setenv("CONFIG_FILE", "")

		path := filepath.Join(work, "site.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan_workers: 2\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(work, ".env.field"), []byte("CONFIG_FILE="+path+"\n"), 0o644))

		cfg, err := LoadWith(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Scanner.Workers)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWith(viper.New(), filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad gain", "GAIN", "loud"},
		{"bad band", "SCAN_BANDS_MHZ", "2400,abc"},
		{"negative band", "SCAN_BANDS_MHZ", "-5"},
		{"no bands", "SCAN_BANDS_MHZ", " , "},
		{"unknown driver", "RADIO_DRIVER", "hackrf"},
		{"tiny chunk", "CHUNK_SAMPLES", "1"},
		{"zero workers", "SCAN_WORKERS", "0"},
		{"zero sample rate", "SAMPLE_RATE_HZ", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadWith(viper.New(), "")
			assert.Error(t, err)
		})
	}
}

func TestParseBands(t *testing.T) {
	bands, err := ParseBands("2400,2483.5")
	require.NoError(t, err)
	assert.Equal(t, []float64{2400, 2483.5}, bands)

	bands, err = ParseBands("")
	require.NoError(t, err)
	assert.Empty(t, bands)
}
