package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/skywatch/pkg/models"
)

// DefaultPublishTimeout bounds a single publish when none is configured
const DefaultPublishTimeout = 10 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge in time
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the subset of mqtt.Client the sink needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig holds broker settings
type MQTTConfig struct {
	Broker      string
	TopicPrefix string
	Username    string
	Password    string
	ClientID    string
	QoS         byte

	// ConnectTimeout bounds the initial connect; the client keeps retrying afterwards
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTSink publishes alerts to <prefix>/alerts and unrecognized detections
// to <prefix>/unrecognized
type MQTTSink struct {
	pub     Publisher
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMQTTSink connects to the broker. The client reconnects on its own after
// the first successful connect.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker is required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = fmt.Sprintf("skywatch-%s-%d", host, time.Now().UnixNano()%100000)
	}

	logger := log.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("Connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("Connection lost")
	})

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn().
			Str("broker", cfg.Broker).
			Dur("timeout", connectTimeout).
			Msg("Initial connect timed out, retrying in background; publishes fail until connected")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	sink := NewMQTTSinkWithPublisher(client, cfg.TopicPrefix, cfg.QoS).WithPublishTimeout(cfg.PublishTimeout)
	sink.client = client
	sink.logger = logger
	return sink, nil
}

// NewMQTTSinkWithPublisher wraps an existing publisher
func NewMQTTSinkWithPublisher(pub Publisher, prefix string, qos byte) *MQTTSink {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = "skywatch"
	}
	return &MQTTSink{
		pub:     pub,
		prefix:  prefix,
		qos:     qos,
		timeout: DefaultPublishTimeout,
		logger:  log.With().Str("component", "mqtt").Logger(),
	}
}

// WithPublishTimeout bounds how long a publish waits for the broker.
// A non-positive value keeps the default.
func (s *MQTTSink) WithPublishTimeout(d time.Duration) *MQTTSink {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Send publishes the alert payload
func (s *MQTTSink) Send(ctx context.Context, result *models.MatchResult) error {
	return s.publish(ctx, s.AlertTopic(), models.NewAlertPayload(result))
}

// Log publishes the unrecognized record
func (s *MQTTSink) Log(ctx context.Context, detection models.Detection) error {
	return s.publish(ctx, s.UnrecognizedTopic(), models.NewUnrecognizedRecord(detection))
}

// AlertTopic returns the topic alerts are published on
func (s *MQTTSink) AlertTopic() string { return s.prefix + "/alerts" }

// UnrecognizedTopic returns the topic unmatched detections are published on
func (s *MQTTSink) UnrecognizedTopic() string { return s.prefix + "/unrecognized" }

// Name implements Named
func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) publish(ctx context.Context, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	token := s.pub.Publish(topic, s.qos, false, data)
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrPublishTimeout, topic, s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	s.logger.Debug().Str("topic", topic).Int("bytes", len(data)).Msg("Published")
	return nil
}

// Close disconnects the owned client, if any. This also stops a pending
// connect retry loop.
func (s *MQTTSink) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
