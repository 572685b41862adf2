package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the OneHUD registrar.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains serial port and esptool settings.
type DeviceConfig struct {
	// Port is a fixed serial port (e.g. "/dev/ttyUSB0", "COM3").
	// When empty the port is chosen per attempt.
	Port string `yaml:"port"`

	// BaudRate is the rate used to open the port and talk to the ROM loader.
	// Default: 115200
	BaudRate int `yaml:"baud_rate"`

	// Esptool is the esptool executable (name on PATH or absolute path).
	// Default: "esptool"
	Esptool string `yaml:"esptool"`

	// WaitTimeout is how long to wait for a device to be plugged in when no
	// candidate port is present. 0 disables waiting.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// ReadTimeout bounds a single identifier read. 0 means no timeout.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// NotifierConfig contains the chat-bot delivery settings.
type NotifierConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	ParseMode  string `yaml:"parse_mode"`

	// Timezone is used to render the timestamp in the message text.
	Timezone string `yaml:"timezone"`

	// Timeout is the HTTP client timeout in seconds. 0 means no timeout.
	Timeout int `yaml:"timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// APIConfig contains the local HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// Write must outlast a full registration run, since POST /register answers
// only after the device read and the delivery complete.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains status push settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, applies environment variable
// overrides and validates the result.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error when optional is true: the CLI can run
// from defaults plus ONEHUD_* variables alone.
//
// Parameters:
//   - path: Path to the YAML configuration file
//   - optional: Whether a missing file is tolerated
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string, optional bool) (*Config, error) {
	cfg, err := Read(path, optional)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Read is Load without validation. Commands that never deliver a
// registration (listing ports or receipts) use it so they work without
// notifier credentials.
func Read(path string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			BaudRate: 115200,
			Esptool:  "esptool",
		},
		Notifier: NotifierConfig{
			APIBaseURL: "https://api.telegram.org",
			ParseMode:  "HTML",
			Timezone:   "Asia/Ho_Chi_Minh",
			Timeout:    30,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/registrar.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "onehud-registrar",
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
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8088,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 300,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ONEHUD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("ONEHUD_DEVICE_PORT"); v != "" {
		cfg.Device.Port = v
	}
	if v := os.Getenv("ONEHUD_DEVICE_ESPTOOL"); v != "" {
		cfg.Device.Esptool = v
	}
	if v := os.Getenv("ONEHUD_DEVICE_BAUD_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Device.BaudRate = n
		}
	}

	// Notifier - credentials belong here, not in the config file
	if v := os.Getenv("ONEHUD_NOTIFIER_BOT_TOKEN"); v != "" {
		cfg.Notifier.BotToken = v
	}
	if v := os.Getenv("ONEHUD_NOTIFIER_CHAT_ID"); v != "" {
		cfg.Notifier.ChatID = v
	}
	if v := os.Getenv("ONEHUD_NOTIFIER_API_BASE_URL"); v != "" {
		cfg.Notifier.APIBaseURL = v
	}

	// Database
	if v := os.Getenv("ONEHUD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ONEHUD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ONEHUD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ONEHUD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ONEHUD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("ONEHUD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Logging
	if v := os.Getenv("ONEHUD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.BaudRate <= 0 {
		errs = append(errs, "device.baud_rate must be positive")
	}
	if c.Device.Esptool == "" {
		errs = append(errs, "device.esptool is required")
	}
	if c.Device.WaitTimeout < 0 || c.Device.ReadTimeout < 0 {
		errs = append(errs, "device timeouts must not be negative")
	}

	// Notifier validation - the bot token is a credential and is never
	// compiled in, so it must arrive through the file or the environment.
	if c.Notifier.APIBaseURL == "" {
		errs = append(errs, "notifier.api_base_url is required")
	}
	if c.Notifier.BotToken == "" {
		errs = append(errs, "notifier.bot_token is required (set ONEHUD_NOTIFIER_BOT_TOKEN environment variable)")
	}
	if c.Notifier.ChatID == "" {
		errs = append(errs, "notifier.chat_id is required (set ONEHUD_NOTIFIER_CHAT_ID environment variable)")
	}
	if c.Notifier.Timeout < 0 {
		errs = append(errs, "notifier.timeout must not be negative")
	}
	if c.Notifier.Timezone != "" {
		if _, err := time.LoadLocation(c.Notifier.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("notifier.timezone %q is not a known zone", c.Notifier.Timezone))
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the ledger is enabled")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 || c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, "websocket ping_interval, pong_timeout and max_message_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the notifier's time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Notifier.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Notifier.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetNotifierTimeout returns the notifier HTTP timeout as a Duration.
func (c *Config) GetNotifierTimeout() time.Duration {
	return time.Duration(c.Notifier.Timeout) * time.Second
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
