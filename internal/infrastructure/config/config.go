package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root settings structure for wsn-deviceutils.
// All settings have defaults, can be loaded from YAML and overridden by environment variables.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Observer ObserverConfig `yaml:"observer"`
	Listener ListenerConfig `yaml:"listener"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Drivers  DriversConfig  `yaml:"drivers"`

	// levelSet records whether the settings file or environment chose a level.
	levelSet bool
}

// LogLevels lists the accepted logging levels in increasing severity.
// "warning" is accepted as an alias of "warn".
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ValidLogLevel reports whether level is one of LogLevels (case-insensitive).
func ValidLogLevel(level string) bool {
	level = strings.ToLower(level)
	if level == "warning" {
		return true
	}
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}

// LevelSet reports whether the logging level came from the settings file or
// WSN_LOG_LEVEL rather than from Default.
func (c *Config) LevelSet() bool {
	return c.levelSet
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ObserverConfig contains device observer settings.
type ObserverConfig struct {
	// PollInterval is the period between two presence polls.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// ResolveTimeout bounds a single MAC read attempt.
	// Default: 5s
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`

	// ResolveConcurrency limits parallel MAC reads within one poll cycle.
	// Default: 4
	ResolveConcurrency int `yaml:"resolve_concurrency"`
}

// ListenerConfig contains capture pipeline settings.
type ListenerConfig struct {
	// ReadBufferSize is the size of a single raw read from the device.
	ReadBufferSize int `yaml:"read_buffer_size"`

	// MaxFrameSize is the largest decoded frame accepted before it is discarded.
	MaxFrameSize int `yaml:"max_frame_size"`

	// ShutdownGrace is how long a writer may take to flush on shutdown before it is abandoned.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DriversConfig contains serial driver settings.
type DriversConfig struct {
	// DefaultBaudRate is used when the device configuration has no "baudrate" key.
	DefaultBaudRate int `yaml:"default_baud_rate"`

	// USBTypes maps "vid:pid" (lowercase hex) to a device type name. A table
	// in the settings file replaces the built-in one.
	USBTypes map[string]string `yaml:"usb_types"`

	// ReferenceMACTypes lists device types whose MAC is assigned through the
	// reference map (the reference being the USB serial number).
	ReferenceMACTypes []string `yaml:"reference_mac_types"`
}

// Load reads settings from a YAML file and applies environment variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WSN_SECTION_KEY
// For example: WSN_MQTT_HOST, WSN_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML settings file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()
	defaults := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading settings file: %w", err)
		}

		// yaml.v3 merges maps into existing ones; a usb_types table in the
		// file replaces the built-in one instead.
		cfg.Logging.Level = ""
		cfg.Drivers.USBTypes = nil

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing settings file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	} else if path != "" || os.Getenv("WSN_LOG_LEVEL") != "" {
		cfg.levelSet = true
	}
	if cfg.Drivers.USBTypes == nil {
		cfg.Drivers.USBTypes = defaults.Drivers.USBTypes
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		Observer: ObserverConfig{
			PollInterval:       time.Second,
			ResolveTimeout:     5 * time.Second,
			ResolveConcurrency: 4,
		},
		Listener: ListenerConfig{
			ReadBufferSize: 1024,
			MaxFrameSize:   2048,
			ShutdownGrace:  5 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wsn-deviceutils",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
		Drivers: DriversConfig{
			DefaultBaudRate: 115200,
			USBTypes: map[string]string{
				"0403:6001": "telosb",
				"0403:6010": "isense",
				"10c4:ea60": "pacemate",
			},
			ReferenceMACTypes: []string{"telosb"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WSN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("WSN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WSN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WSN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("WSN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if !ValidLogLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(LogLevels, ", ")))
	}

	if c.Observer.PollInterval <= 0 {
		errs = append(errs, "observer.poll_interval must be positive")
	}
	if c.Observer.ResolveTimeout <= 0 {
		errs = append(errs, "observer.resolve_timeout must be positive")
	}
	if c.Observer.ResolveConcurrency < 1 {
		errs = append(errs, "observer.resolve_concurrency must be at least 1")
	}

	if c.Listener.ReadBufferSize < 1 {
		errs = append(errs, "listener.read_buffer_size must be at least 1")
	}
	if c.Listener.MaxFrameSize < 1 {
		errs = append(errs, "listener.max_frame_size must be at least 1")
	}
	if c.Listener.ShutdownGrace <= 0 {
		errs = append(errs, "listener.shutdown_grace must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if c.Drivers.DefaultBaudRate < 1 {
		errs = append(errs, "drivers.default_baud_rate must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
