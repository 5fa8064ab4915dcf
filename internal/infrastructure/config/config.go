package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the robovac service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service    ServiceConfig   `yaml:"service"`
	Database   DatabaseConfig  `yaml:"database"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Gateway    GatewayConfig   `yaml:"gateway"`
	API        APIConfig       `yaml:"api"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
	InfluxDB   InfluxDBConfig  `yaml:"influxdb"`
	Logging    LoggingConfig   `yaml:"logging"`
	Polling    PollingConfig   `yaml:"polling"`
	ModelsFile string          `yaml:"models_file"`
	Vacuums    []VacuumConfig  `yaml:"vacuums"`
}

// ServiceConfig identifies this service instance.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// String returns a string representation with the password masked.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// GatewayConfig configures the MQTT request/response gateway that speaks
// the local device protocol on our behalf.
type GatewayConfig struct {
	// TopicPrefix is the root of the gateway request/response topics.
	// Default: "robovac/gateway"
	TopicPrefix string `yaml:"topic_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PollingConfig holds the availability and scheduling policy shared by all
// vacuums unless a vacuum overrides it.
type PollingConfig struct {
	// Interval is the fixed delay between scheduled polls.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds a single fetch from the transport.
	Timeout time.Duration `yaml:"timeout"`

	// CommandTimeout bounds a single command write.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// WarmupPolls is how many failed polls a freshly registered device may
	// absorb before it leaves the warm-up phase.
	WarmupPolls int `yaml:"warmup_polls"`

	// FailureThreshold is the number of consecutive failures after which a
	// device is reported unreachable.
	FailureThreshold int `yaml:"failure_threshold"`
}

// VacuumConfig describes one vacuum to synchronise.
type VacuumConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
	IPAddress   string `yaml:"ip_address"`
	MAC         string `yaml:"mac"`

	// AccessToken is the device local key.
	// WARNING: Never log this value. Use String() for safe logging.
	AccessToken string `yaml:"access_token"`

	// Polling overrides the global polling policy where fields are non-zero.
	Polling PollingConfig `yaml:"polling"`
}

// String returns a string representation with the access token masked.
func (v VacuumConfig) String() string {
	token := ""
	if v.AccessToken != "" {
		token = "[REDACTED]"
	}
	return fmt.Sprintf("VacuumConfig{ID:%q, Name:%q, Model:%q, IPAddress:%q, AccessToken:%s}",
		v.ID, v.Name, v.Model, v.IPAddress, token)
}

// MarshalJSON implements json.Marshaler to redact the access token.
func (v VacuumConfig) MarshalJSON() ([]byte, error) {
	type redacted VacuumConfig
	safe := redacted(v)
	if safe.AccessToken != "" {
		safe.AccessToken = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// EffectivePolling merges the vacuum's overrides onto the global policy.
func (v VacuumConfig) EffectivePolling(global PollingConfig) PollingConfig {
	p := global
	if v.Polling.Interval > 0 {
		p.Interval = v.Polling.Interval
	}
	if v.Polling.Timeout > 0 {
		p.Timeout = v.Polling.Timeout
	}
	if v.Polling.CommandTimeout > 0 {
		p.CommandTimeout = v.Polling.CommandTimeout
	}
	if v.Polling.WarmupPolls > 0 {
		p.WarmupPolls = v.Polling.WarmupPolls
	}
	if v.Polling.FailureThreshold > 0 {
		p.FailureThreshold = v.Polling.FailureThreshold
	}
	return p
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ROBOVAC_SECTION_KEY
// For example: ROBOVAC_DATABASE_PATH, ROBOVAC_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "robovac-01",
			Name: "Robovac",
		},
		Database: DatabaseConfig{
			Path:        "./data/robovac.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "robovac-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Gateway: GatewayConfig{
			TopicPrefix: "robovac/gateway",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8085,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Polling: PollingConfig{
			Interval:         15 * time.Second,
			Timeout:          5 * time.Second,
			CommandTimeout:   5 * time.Second,
			WarmupPolls:      5,
			FailureThreshold: 3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROBOVAC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ROBOVAC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROBOVAC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("ROBOVAC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROBOVAC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ROBOVAC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("ROBOVAC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("ROBOVAC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Polling.Interval <= 0 {
		errs = append(errs, "polling.interval must be positive")
	}
	if c.Polling.Timeout <= 0 {
		errs = append(errs, "polling.timeout must be positive")
	}
	if c.Polling.WarmupPolls < 0 {
		errs = append(errs, "polling.warmup_polls must not be negative")
	}
	if c.Polling.FailureThreshold < 1 {
		errs = append(errs, "polling.failure_threshold must be at least 1")
	}

	seen := make(map[string]bool, len(c.Vacuums))
	for i, v := range c.Vacuums {
		if v.ID == "" {
			errs = append(errs, fmt.Sprintf("vacuums[%d].id is required", i))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("vacuums[%d].id %q is duplicated", i, v.ID))
		}
		seen[v.ID] = true
		if v.Model == "" {
			errs = append(errs, fmt.Sprintf("vacuums[%d].model is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
