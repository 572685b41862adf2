package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a config that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Notifier.BotToken = "123456:test-token"
	cfg.Notifier.ChatID = "42"
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  port: "/dev/ttyUSB0"
  baud_rate: 115200
  wait_timeout: 30s
notifier:
  bot_token: "123456:file-token"
  chat_id: "7158"
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "127.0.0.1"
  port: 8088
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Port != "/dev/ttyUSB0" {
		t.Errorf("Device.Port = %q, want %q", cfg.Device.Port, "/dev/ttyUSB0")
	}

	if cfg.Device.WaitTimeout != 30*time.Second {
		t.Errorf("Device.WaitTimeout = %v, want 30s", cfg.Device.WaitTimeout)
	}

	if cfg.Notifier.ChatID != "7158" {
		t.Errorf("Notifier.ChatID = %q, want %q", cfg.Notifier.ChatID, "7158")
	}

	// Defaults survive a partial file
	if cfg.Notifier.ParseMode != "HTML" {
		t.Errorf("Notifier.ParseMode = %q, want HTML", cfg.Notifier.ParseMode)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml", false)
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MissingOptionalFileUsesEnv(t *testing.T) {
	t.Setenv("ONEHUD_NOTIFIER_BOT_TOKEN", "env-token")
	t.Setenv("ONEHUD_NOTIFIER_CHAT_ID", "99")

	cfg, err := Load("/nonexistent/path/config.yaml", true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Notifier.BotToken != "env-token" {
		t.Errorf("Notifier.BotToken = %q, want env-token", cfg.Notifier.BotToken)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath, true)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  baud_rate: 115200
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath, false)
	if err == nil {
		t.Fatal("Load() expected validation error for missing bot token, got nil")
	}
	if !strings.Contains(err.Error(), "notifier.bot_token") {
		t.Errorf("error %q should mention notifier.bot_token", err)
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("database:\n  path: /tmp/ledger.db\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Read(configPath, false)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/ledger.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Validate() == nil {
		t.Error("config without credentials should not validate")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "zero baud rate",
			mutate:  func(c *Config) { c.Device.BaudRate = 0 },
			wantErr: true,
		},
		{
			name:    "missing esptool",
			mutate:  func(c *Config) { c.Device.Esptool = "" },
			wantErr: true,
		},
		{
			name:    "negative wait timeout",
			mutate:  func(c *Config) { c.Device.WaitTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "missing chat id",
			mutate:  func(c *Config) { c.Notifier.ChatID = "" },
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Notifier.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "ledger enabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "ledger disabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
			wantErr: false,
		},
		{
			name: "invalid QoS only checked when enabled",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
			wantErr: false,
		},
		{
			name: "invalid QoS",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name: "influx enabled without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "zero websocket ping interval",
			mutate:  func(c *Config) { c.WebSocket.PingInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Notifier: NotifierConfig{Timeout: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetNotifierTimeout().Seconds(); got != 15 {
		t.Errorf("GetNotifierTimeout() = %v, want 15", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Location().String(); got != "Asia/Ho_Chi_Minh" {
		t.Errorf("Location() = %q, want Asia/Ho_Chi_Minh", got)
	}

	cfg.Notifier.Timezone = ""
	if got := cfg.Location(); got != time.UTC {
		t.Errorf("Location() = %v, want UTC", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ONEHUD_DEVICE_PORT", "COM7")
	t.Setenv("ONEHUD_DEVICE_BAUD_RATE", "460800")
	t.Setenv("ONEHUD_DEVICE_ESPTOOL", "/opt/esptool/esptool")
	t.Setenv("ONEHUD_NOTIFIER_BOT_TOKEN", "secret-token")
	t.Setenv("ONEHUD_NOTIFIER_CHAT_ID", "1234")
	t.Setenv("ONEHUD_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ONEHUD_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ONEHUD_MQTT_USERNAME", "testuser")
	t.Setenv("ONEHUD_MQTT_PASSWORD", "testpass")
	t.Setenv("ONEHUD_INFLUXDB_TOKEN", "influx-token")
	t.Setenv("ONEHUD_API_HOST", "0.0.0.0")
	t.Setenv("ONEHUD_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Device.Port", cfg.Device.Port, "COM7"},
		{"Device.Esptool", cfg.Device.Esptool, "/opt/esptool/esptool"},
		{"Notifier.BotToken", cfg.Notifier.BotToken, "secret-token"},
		{"Notifier.ChatID", cfg.Notifier.ChatID, "1234"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "influx-token"},
		{"API.Host", cfg.API.Host, "0.0.0.0"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if cfg.Device.BaudRate != 460800 {
		t.Errorf("Device.BaudRate = %d, want 460800", cfg.Device.BaudRate)
	}
}

func TestApplyEnvOverrides_BadBaudIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("ONEHUD_DEVICE_BAUD_RATE", "fast")

	applyEnvOverrides(cfg)

	if cfg.Device.BaudRate != 115200 {
		t.Errorf("Device.BaudRate = %d, want default 115200", cfg.Device.BaudRate)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.BaudRate != 115200 {
		t.Errorf("defaultConfig Device.BaudRate = %d, want 115200", cfg.Device.BaudRate)
	}

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("defaultConfig API.Host = %q, want loopback", cfg.API.Host)
	}

	if cfg.Notifier.BotToken != "" {
		t.Error("defaultConfig must not carry a bot token")
	}
}
