package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Relay Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Passwords PasswordsConfig `yaml:"passwords"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Devices   DevicesConfig   `yaml:"devices"`
}

// TelegramConfig contains Telegram bot settings.
type TelegramConfig struct {
	// Token is the bot API token issued by BotFather.
	Token string `yaml:"token"`

	// AdminID is the operator id shown with the admin marker in /users.
	// It grants no extra capability beyond display.
	AdminID string `yaml:"admin_id"`

	// PollTimeout is the long-polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout"`
}

// PasswordsConfig contains the shared secrets gating registration and approval.
type PasswordsConfig struct {
	// User is the shared password required for /register and /approveuser.
	User string `yaml:"user"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains dashboard HTTP server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	StaticDir string           `yaml:"static_dir"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket push channel settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite snapshot store settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains optional telemetry settings.
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

// DevicesConfig contains fleet limits and the engine's timing windows.
//
// The *Ms fields are milliseconds; OfflineTimeout and SweepInterval are
// seconds. The timing defaults reflect the relay firmware's behaviour: a
// freshly (re)connected device needs roughly half a second to settle its
// command-topic subscription before it can see a sync request, and a
// command round-trip completes well inside two seconds on a LAN.
type DevicesConfig struct {
	// Max is the registry capacity.
	Max int `yaml:"max"`

	// WarningThreshold is the count at which listings show a capacity warning.
	WarningThreshold int `yaml:"warning_threshold"`

	// OfflineTimeout is how stale last-seen may be before the watchdog
	// demotes an online device (seconds).
	OfflineTimeout int `yaml:"offline_timeout"`

	// SweepInterval is the watchdog period (seconds).
	SweepInterval int `yaml:"sweep_interval"`

	// SyncDelayMs is the wait between a device announcing online and the
	// sync request being published.
	SyncDelayMs int `yaml:"sync_delay_ms"`

	// SyncWindowMs is how long switch echoes are treated as sync replies
	// (notification suppressed) after a sync request.
	SyncWindowMs int `yaml:"sync_window_ms"`

	// ControlWindowMs is how long an operator-issued command suppresses
	// the notification for its expected echo.
	ControlWindowMs int `yaml:"control_window_ms"`

	// RefreshWaitMs is how long the control view waits for sync replies
	// before rendering the switch keyboard.
	RefreshWaitMs int `yaml:"refresh_wait_ms"`

	// PageSize is the number of devices per control-keyboard page.
	PageSize int `yaml:"page_size"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RELAYBRIDGE_SECTION_KEY
// For example: RELAYBRIDGE_TELEGRAM_TOKEN, RELAYBRIDGE_MQTT_HOST
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
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "relay-bridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host:      "0.0.0.0",
			Port:      3000,
			StaticDir: "./public",
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
		Database: DatabaseConfig{
			Path:        "./data/relaybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Devices: DevicesConfig{
			Max:              25,
			WarningThreshold: 20,
			OfflineTimeout:   60,
			SweepInterval:    30,
			SyncDelayMs:      500,
			SyncWindowMs:     1000,
			ControlWindowMs:  2000,
			RefreshWaitMs:    600,
			PageSize:         10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYBRIDGE_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("RELAYBRIDGE_TELEGRAM_ADMIN_ID"); v != "" {
		cfg.Telegram.AdminID = v
	}
	if v := os.Getenv("RELAYBRIDGE_USER_PASSWORD"); v != "" {
		cfg.Passwords.User = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("RELAYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RELAYBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RELAYBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required (set RELAYBRIDGE_TELEGRAM_TOKEN environment variable)")
	}
	if c.Passwords.User == "" {
		errs = append(errs, "passwords.user is required (set RELAYBRIDGE_USER_PASSWORD environment variable)")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Devices.Max < 1 {
		errs = append(errs, "devices.max must be at least 1")
	}
	if c.Devices.WarningThreshold > c.Devices.Max {
		errs = append(errs, "devices.warning_threshold cannot exceed devices.max")
	}
	if c.Devices.PageSize < 1 {
		errs = append(errs, "devices.page_size must be at least 1")
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

// GetOfflineTimeout returns the watchdog demotion threshold as a Duration.
func (d DevicesConfig) GetOfflineTimeout() time.Duration {
	return time.Duration(d.OfflineTimeout) * time.Second
}

// GetSweepInterval returns the watchdog period as a Duration.
func (d DevicesConfig) GetSweepInterval() time.Duration {
	return time.Duration(d.SweepInterval) * time.Second
}

// GetSyncDelay returns the pre-sync settle delay as a Duration.
func (d DevicesConfig) GetSyncDelay() time.Duration {
	return time.Duration(d.SyncDelayMs) * time.Millisecond
}

// GetSyncWindow returns the post-sync suppression window as a Duration.
func (d DevicesConfig) GetSyncWindow() time.Duration {
	return time.Duration(d.SyncWindowMs) * time.Millisecond
}

// GetControlWindow returns the user-control suppression window as a Duration.
func (d DevicesConfig) GetControlWindow() time.Duration {
	return time.Duration(d.ControlWindowMs) * time.Millisecond
}

// GetRefreshWait returns the control-view sync wait as a Duration.
func (d DevicesConfig) GetRefreshWait() time.Duration {
	return time.Duration(d.RefreshWaitMs) * time.Millisecond
}
