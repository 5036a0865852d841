package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the edge link service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Link      LinkConfig      `yaml:"link"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the device to the coordinator.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LinkConfig contains the coordinator connection settings.
type LinkConfig struct {
	// Host is the coordinator WebSocket URL (ws:// or wss://).
	Host string `yaml:"host"`

	// TransportID tags this device in connection attempts.
	// A random id is generated when empty.
	TransportID string `yaml:"transport_id"`

	// EnableHeartbeat sends {"t":"hb"} while connected.
	// Default: true
	EnableHeartbeat bool `yaml:"enable_heartbeat"`

	// HeartbeatInterval is the gap between heartbeats.
	// Default: 2s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// MessageTimeout is the volatile request reaper interval.
	// Default: 5s
	MessageTimeout time.Duration `yaml:"message_timeout"`

	// WriteTimeout bounds each socket write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// HandshakeTimeout bounds each connection attempt.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// EventQueueSize bounds undelivered inbound events.
	// Default: 256
	EventQueueSize int `yaml:"event_queue_size"`

	// ReadLimit caps inbound frame size in bytes. 0 means unlimited.
	ReadLimit int64 `yaml:"read_limit"`

	// Headers are sent with every connection attempt.
	Headers map[string]string `yaml:"headers"`

	Backoff BackoffConfig  `yaml:"backoff"`
	Auth    LinkAuthConfig `yaml:"auth"`
}

// BackoffConfig contains the reconnect schedule.
type BackoffConfig struct {
	Factor   float64       `yaml:"factor"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	Jitter   bool          `yaml:"jitter"`
}

// LinkAuthConfig contains device token settings for the connection headers.
type LinkAuthConfig struct {
	Enabled     bool          `yaml:"enabled"`
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// MQTTConfig contains MQTT broker connection settings for the local bus.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig contains link statistics reporting settings.
type TelemetryConfig struct {
	// Interval between statistics snapshots.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`
}

// APIConfig contains admin HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EDGELINK_SECTION_KEY
// For example: EDGELINK_LINK_HOST, EDGELINK_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Edge Device",
		},
		Link: LinkConfig{
			EnableHeartbeat:   true,
			HeartbeatInterval: 2 * time.Second,
			MessageTimeout:    5 * time.Second,
			WriteTimeout:      5 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			EventQueueSize:    256,
			Backoff: BackoffConfig{
				Factor:   1.5,
				MinDelay: 500 * time.Millisecond,
				MaxDelay: 5 * time.Second,
				Jitter:   true,
			},
			Auth: LinkAuthConfig{
				TokenTTL: 15 * time.Minute,
			},
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "edgelink",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "edgelink",
		},
		Telemetry: TelemetryConfig{
			Interval: 30 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EDGELINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("EDGELINK_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}

	// Link
	if v := os.Getenv("EDGELINK_LINK_HOST"); v != "" {
		cfg.Link.Host = v
	}
	if v := os.Getenv("EDGELINK_LINK_TRANSPORT_ID"); v != "" {
		cfg.Link.TransportID = v
	}
	if v := os.Getenv("EDGELINK_LINK_ENABLE_HEARTBEAT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Link.EnableHeartbeat = b
		}
	}
	// Token secret (IMPORTANT: always set via environment in production)
	if v := os.Getenv("EDGELINK_LINK_TOKEN_SECRET"); v != "" {
		cfg.Link.Auth.TokenSecret = v
	}

	// MQTT
	if v := os.Getenv("EDGELINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EDGELINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EDGELINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("EDGELINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("EDGELINK_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}

	// InfluxDB
	if v := os.Getenv("EDGELINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("EDGELINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Link validation
	errs = append(errs, c.Link.validate()...)

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && strings.Trim(c.MQTT.TopicPrefix, "/") == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (l *LinkConfig) validate() []string {
	var errs []string

	if l.Host == "" {
		errs = append(errs, "link.host is required (set EDGELINK_LINK_HOST environment variable)")
	} else if u, err := url.Parse(l.Host); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "link.host must be a ws:// or wss:// URL")
	}

	if l.MessageTimeout <= 0 {
		errs = append(errs, "link.message_timeout must be positive")
	}
	if l.EnableHeartbeat && l.HeartbeatInterval <= 0 {
		errs = append(errs, "link.heartbeat_interval must be positive when heartbeats are enabled")
	}
	if l.Backoff.Factor < 1 {
		errs = append(errs, "link.backoff.factor must be at least 1")
	}
	if l.Backoff.MinDelay <= 0 || l.Backoff.MaxDelay < l.Backoff.MinDelay {
		errs = append(errs, "link.backoff delays must satisfy 0 < min_delay <= max_delay")
	}

	// Device tokens are HS256; the secret must resist brute force.
	const minTokenSecretLength = 32
	if l.Auth.Enabled {
		if l.Auth.TokenSecret == "" {
			errs = append(errs, "link.auth.token_secret is required (set EDGELINK_LINK_TOKEN_SECRET environment variable)")
		} else if len(l.Auth.TokenSecret) < minTokenSecretLength {
			errs = append(errs, "link.auth.token_secret must be at least 32 characters for adequate security")
		}
		if l.Auth.TokenTTL <= 0 {
			errs = append(errs, "link.auth.token_ttl must be positive")
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
