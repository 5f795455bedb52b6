package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/RMahshie/skywatch/internal/radio"
)

// Config holds all configuration for the application
type Config struct {
	Scanner   ScannerConfig
	Radio     RadioConfig
	Alerts    AlertsConfig
	Signature SignatureConfig
	Server    ServerConfig
	Database  DatabaseConfig
	MQTT      MQTTConfig
	AWS       AWSConfig
	Logging   LoggingConfig
}

// ScannerConfig holds the sweep and detection parameters
type ScannerConfig struct {
	SampleRateHz     float64
	Gain             radio.Gain
	PeakThresholdDb  float64
	ChunkSamples     int
	BandsMHz         []float64
	Interval         time.Duration
	MinRSSIThreshold float64
	Workers          int
}

// RadioConfig selects the SDR backend
type RadioConfig struct {
	Driver string // rtltcp or simulated
	// Addrs lists rtl_tcp servers; one device per address
	Addrs       []string
	DialTimeout time.Duration
	// Settle is the stream time discarded after each retune
	Settle time.Duration
}

// AlertsConfig holds sink configuration
type AlertsConfig struct {
	AlertOutput        string
	MaxSizeMB          int
	Backups            int
	MaxAgeDays         int
	Compress           bool
	UnrecognizedOutput string
	ConsoleColor       string
	RecentTTL          time.Duration
}

// SignatureConfig holds the catalog location
type SignatureConfig struct {
	Source string // local path or s3://bucket/key
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr           string // empty disables the server
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string // postgres://... or sqlite://path; empty disables persistence
}

// MQTTConfig holds broker configuration
type MQTTConfig struct {
	Broker         string
	TopicPrefix    string
	Username       string
	Password       string
	PublishTimeout time.Duration
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Endpoint      string
	ArchiveBucket   string
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string
}

var keys = []string{
	"SAMPLE_RATE_HZ", "GAIN", "PEAK_THRESHOLD_DB", "CHUNK_SAMPLES", "SCAN_BANDS_MHZ",
	"SCAN_INTERVAL_SEC", "MIN_RSSI_THRESHOLD", "SCAN_WORKERS",
	"RADIO_DRIVER", "RTL_TCP_ADDR", "RTL_TCP_DIAL_TIMEOUT_SEC", "RTL_TCP_SETTLE_SEC",
	"SIGNATURES_SOURCE",
	"ALERT_OUTPUT", "ALERT_MAX_MB", "ALERT_BACKUPS", "ALERT_MAX_AGE_DAYS", "ALERT_COMPRESS",
	"UNRECOGNIZED_OUTPUT", "CONSOLE_COLOR", "RECENT_ALERTS_TTL_SEC",
	"HTTP_ADDR", "ENVIRONMENT", "ALLOWED_ORIGINS",
	"DATABASE_URL",
	"MQTT_BROKER", "MQTT_TOPIC_PREFIX", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_PUBLISH_TIMEOUT_SEC",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "S3_ENDPOINT", "ARCHIVE_BUCKET",
	"LOG_LEVEL", "CONFIG_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SAMPLE_RATE_HZ", 2.4e6)
	v.SetDefault("GAIN", "auto")
	v.SetDefault("PEAK_THRESHOLD_DB", 30.0)
	v.SetDefault("CHUNK_SAMPLES", 262144)
	v.SetDefault("SCAN_BANDS_MHZ", "2400,2425,2450,2475")
	v.SetDefault("SCAN_INTERVAL_SEC", 1.0)
	v.SetDefault("MIN_RSSI_THRESHOLD", 0.0)
	v.SetDefault("SCAN_WORKERS", 1)
	v.SetDefault("RADIO_DRIVER", "rtltcp")
	v.SetDefault("RTL_TCP_ADDR", "127.0.0.1:1234")
	v.SetDefault("RTL_TCP_DIAL_TIMEOUT_SEC", 5.0)
	v.SetDefault("RTL_TCP_SETTLE_SEC", 0.02)
	v.SetDefault("SIGNATURES_SOURCE", "signatures/patterns.json")
	v.SetDefault("ALERT_OUTPUT", "alerts.jsonl")
	v.SetDefault("ALERT_MAX_MB", 2)
	v.SetDefault("ALERT_BACKUPS", 3)
	v.SetDefault("ALERT_MAX_AGE_DAYS", 0)
	v.SetDefault("ALERT_COMPRESS", false)
	v.SetDefault("UNRECOGNIZED_OUTPUT", "unrecognized_signals.jsonl")
	v.SetDefault("CONSOLE_COLOR", "auto")
	v.SetDefault("RECENT_ALERTS_TTL_SEC", 3600)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_TOPIC_PREFIX", "skywatch")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_PUBLISH_TIMEOUT_SEC", 10.0)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("ARCHIVE_BUCKET", "")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load loads configuration from the settings file, .env files and environment
// variables, in increasing order of precedence
func Load() (*Config, error) {
	return LoadWith(viper.New(), "")
}

// LoadWith loads into v. A non-empty settingsFile overrides CONFIG_FILE.
func LoadWith(v *viper.Viper, settingsFile string) (*Config, error) {
	setDefaults(v)

	// Environment variables override file values
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev" // Use "dev" to match .env.dev filename
	}

	// Read .env file for the current environment (ignore error if file doesn't exist)
	envFile := viper.New()
	envFile.SetConfigName(".env." + env)
	envFile.SetConfigType("env")
	envFile.AddConfigPath(".")
	envLoaded := envFile.ReadInConfig() == nil

	if settingsFile == "" {
		settingsFile = v.GetString("CONFIG_FILE")
	}
	if settingsFile == "" && envLoaded {
		settingsFile = envFile.GetString("CONFIG_FILE")
	}

	// Later merges win, so the settings file goes in before the .env file
	if settingsFile != "" {
		if err := mergeSettingsFile(v, settingsFile); err != nil {
			return nil, err
		}
	}
	if envLoaded {
		if err := v.MergeConfigMap(envFile.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", envFile.ConfigFileUsed(), err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("driver", cfg.Radio.Driver).
		Floats64("bands_mhz", cfg.Scanner.BandsMHz).
		Str("signatures", cfg.Signature.Source).
		Msg("Configuration loaded")

	return cfg, nil
}

// mergeSettingsFile reads a JSON or YAML settings file with lower-case keys
func mergeSettingsFile(v *viper.Viper, path string) error {
	file := viper.New()
	file.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file.SetConfigType("yaml")
	default:
		file.SetConfigType("json")
	}
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return v.MergeConfigMap(file.AllSettings())
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	gain, err := radio.ParseGain(v.GetString("GAIN"))
	if err != nil {
		return nil, err
	}
	bands, err := ParseBands(listValue(v, "SCAN_BANDS_MHZ"))
	if err != nil {
		return nil, err
	}

	cfg.Scanner = ScannerConfig{
		SampleRateHz:     v.GetFloat64("SAMPLE_RATE_HZ"),
		Gain:             gain,
		PeakThresholdDb:  v.GetFloat64("PEAK_THRESHOLD_DB"),
		ChunkSamples:     v.GetInt("CHUNK_SAMPLES"),
		BandsMHz:         bands,
		Interval:         seconds(v.GetFloat64("SCAN_INTERVAL_SEC")),
		MinRSSIThreshold: v.GetFloat64("MIN_RSSI_THRESHOLD"),
		Workers:          v.GetInt("SCAN_WORKERS"),
	}
	cfg.Radio = RadioConfig{
		Driver:      strings.ToLower(v.GetString("RADIO_DRIVER")),
		Addrs:       splitList(listValue(v, "RTL_TCP_ADDR")),
		DialTimeout: seconds(v.GetFloat64("RTL_TCP_DIAL_TIMEOUT_SEC")),
		Settle:      seconds(v.GetFloat64("RTL_TCP_SETTLE_SEC")),
	}
	cfg.Signature.Source = v.GetString("SIGNATURES_SOURCE")
	cfg.Alerts = AlertsConfig{
		AlertOutput:        v.GetString("ALERT_OUTPUT"),
		MaxSizeMB:          v.GetInt("ALERT_MAX_MB"),
		Backups:            v.GetInt("ALERT_BACKUPS"),
		MaxAgeDays:         v.GetInt("ALERT_MAX_AGE_DAYS"),
		Compress:           v.GetBool("ALERT_COMPRESS"),
		UnrecognizedOutput: v.GetString("UNRECOGNIZED_OUTPUT"),
		ConsoleColor:       v.GetString("CONSOLE_COLOR"),
		RecentTTL:          seconds(v.GetFloat64("RECENT_ALERTS_TTL_SEC")),
	}
	cfg.Server = ServerConfig{
		Addr:           v.GetString("HTTP_ADDR"),
		Env:            v.GetString("ENVIRONMENT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
	}
	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.MQTT = MQTTConfig{
		Broker:         v.GetString("MQTT_BROKER"),
		TopicPrefix:    v.GetString("MQTT_TOPIC_PREFIX"),
		Username:       v.GetString("MQTT_USERNAME"),
		Password:       v.GetString("MQTT_PASSWORD"),
		PublishTimeout: seconds(v.GetFloat64("MQTT_PUBLISH_TIMEOUT_SEC")),
	}
	cfg.AWS = AWSConfig{
		Region:          v.GetString("AWS_REGION"),
		AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		S3Endpoint:      v.GetString("S3_ENDPOINT"),
		ArchiveBucket:   v.GetString("ARCHIVE_BUCKET"),
	}
	cfg.Logging.Level = v.GetString("LOG_LEVEL")

	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Scanner.SampleRateHz <= 0 {
		errs = append(errs, errors.New("SAMPLE_RATE_HZ must be positive"))
	}
	if c.Scanner.ChunkSamples < 2 {
		errs = append(errs, errors.New("CHUNK_SAMPLES must be at least 2"))
	}
	if len(c.Scanner.BandsMHz) == 0 {
		errs = append(errs, errors.New("SCAN_BANDS_MHZ must list at least one band"))
	}
	if c.Scanner.Interval < 0 {
		errs = append(errs, errors.New("SCAN_INTERVAL_SEC must not be negative"))
	}
	if c.Scanner.Workers < 1 {
		errs = append(errs, errors.New("SCAN_WORKERS must be at least 1"))
	}
	switch c.Radio.Driver {
	case "rtltcp":
		if len(c.Radio.Addrs) == 0 {
			errs = append(errs, errors.New("RTL_TCP_ADDR is required for the rtltcp driver"))
		}
	case "simulated":
	default:
		errs = append(errs, fmt.Errorf("unknown RADIO_DRIVER %q: want rtltcp or simulated", c.Radio.Driver))
	}
	if c.Alerts.MaxSizeMB < 0 || c.Alerts.Backups < 0 {
		errs = append(errs, errors.New("ALERT_MAX_MB and ALERT_BACKUPS must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParseBands parses a comma separated list of band centres in MHz
func ParseBands(s string) ([]float64, error) {
	var bands []float64
	for _, part := range splitList(s) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid band %q in SCAN_BANDS_MHZ: %w", part, err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("invalid band %q in SCAN_BANDS_MHZ: must be positive", part)
		}
		bands = append(bands, f)
	}
	return bands, nil
}

// listValue reads key as a comma separated string; settings files may also
// give it as a list
func listValue(v *viper.Viper, key string) string {
	if list, ok := v.Get(key).([]interface{}); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	}
	return v.GetString(key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
