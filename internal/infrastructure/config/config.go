package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zones resolve on hosts without a zoneinfo database

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Retry scheduler modes.
const (
	RetryModeTimer = "timer"
	RetryModePoll  = "poll"
)

// Timestamp styles for serialised readings.
const (
	TimestampLocal = "local"
	TimestampUTC   = "utc"
)

// clientIDPrefix is used when no MQTT client ID is configured.
const clientIDPrefix = "weatherstation-"

// Config is the root configuration structure for the weather station.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station  StationConfig  `yaml:"station"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Publish  PublishConfig  `yaml:"publish"`
	Clock    ClockConfig    `yaml:"clock"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StationConfig identifies the station and where it is installed.
type StationConfig struct {
	SensorID string         `yaml:"sensor_id"`
	StreetID string         `yaml:"street_id"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains the fixed geographic placement of the station.
type LocationConfig struct {
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	AltitudeMeters float64 `yaml:"altitude_meters"`
	District       string  `yaml:"district"`
	Neighborhood   string  `yaml:"neighborhood"`
}

// NetworkConfig controls how the link is watched and rejoined.
type NetworkConfig struct {
	// Interface is the interface to watch. Empty watches any non-loopback interface.
	Interface string `yaml:"interface"`

	// Static reports the link as permanently up (the OS owns the link).
	Static bool `yaml:"static"`

	// PollInterval is how often the interface state is sampled (milliseconds).
	PollInterval int `yaml:"poll_interval"`

	// RetryDelay is the delay before a rejoin attempt after link loss (milliseconds).
	RetryDelay int `yaml:"retry_delay"`

	// RejoinCommand is run on every rejoin attempt, e.g. ["wpa_cli", "reconnect"].
	// Empty only re-probes the interface.
	RejoinCommand []string `yaml:"rejoin_command"`

	// RejoinTimeout bounds one run of RejoinCommand (seconds).
	RejoinTimeout int `yaml:"rejoin_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	Topics MQTTTopicsConfig `yaml:"topics"`
	QoS    int              `yaml:"qos"`
	Retain bool             `yaml:"retain"`
	Retry  MQTTRetryConfig  `yaml:"retry"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
// Host may be an IP literal or a DNS name.
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

// MQTTTopicsConfig names the topics the station uses.
type MQTTTopicsConfig struct {
	// Base is the station's base topic; the command topic hangs off it.
	Base string `yaml:"base"`

	// CommandSuffix is appended to Base to form the command topic.
	CommandSuffix string `yaml:"command_suffix"`

	// Data is the topic readings are published to. Defaults to Base.
	Data string `yaml:"data"`

	// Status carries liveness and last-will payloads. Empty disables them.
	Status string `yaml:"status"`
}

// MQTTRetryConfig controls broker reconnection.
type MQTTRetryConfig struct {
	// Mode is "timer" (single-shot timer) or "poll" (checked every tick).
	Mode string `yaml:"mode"`

	// Delay is the single-shot timer delay (milliseconds).
	Delay int `yaml:"delay"`

	// PollThreshold is the minimum gap between attempts in poll mode (milliseconds).
	PollThreshold int `yaml:"poll_threshold"`

	// PollTick is the loop tick in poll mode (milliseconds).
	PollTick int `yaml:"poll_tick"`
}

// PublishConfig controls the reading publication cycle.
type PublishConfig struct {
	// Interval between readings (seconds).
	Interval int `yaml:"interval"`

	// Liveness publishes an online payload on every session.
	Liveness bool `yaml:"liveness"`

	// Pretty indents the JSON document.
	Pretty bool `yaml:"pretty"`
}

// ClockConfig controls timestamp rendering.
type ClockConfig struct {
	Timezone string `yaml:"timezone"`
	Style    string `yaml:"style"`
}

// SensorsConfig holds the values served by the static sensor source.
type SensorsConfig struct {
	TemperatureCelsius     float64 `yaml:"temperature_celsius"`
	HumidityPercentage     float64 `yaml:"humidity_percentage"`
	WindSpeed              float64 `yaml:"wind_speed"`
	LightLux               float64 `yaml:"light_lux"`
	AtmosphericPressureHPa float64 `yaml:"atmospheric_pressure_hpa"`
	AirQualityIndex        float64 `yaml:"air_quality_index"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	Retention   int    `yaml:"retention_days"`
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

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
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
// Environment variables follow the pattern: WEATHERSTATION_SECTION_KEY
// For example: WEATHERSTATION_MQTT_HOST, WEATHERSTATION_MQTT_PASSWORD
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
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the station's stock settings.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			SensorID: "WT_001",
			StreetID: "street_1253",
			Location: LocationConfig{
				Latitude:       40.4168,
				Longitude:      -3.7038,
				AltitudeMeters: 650,
				District:       "Centro",
				Neighborhood:   "Universidad",
			},
		},
		Network: NetworkConfig{
			PollInterval:  1000,
			RetryDelay:    5000,
			RejoinTimeout: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			Topics: MQTTTopicsConfig{
				Base:          "sensors/street_1253/WT_001",
				CommandSuffix: "comandos",
			},
			QoS:    1,
			Retain: true,
			Retry: MQTTRetryConfig{
				Mode:          RetryModeTimer,
				Delay:         2000,
				PollThreshold: 5000,
				PollTick:      1000,
			},
		},
		Publish: PublishConfig{
			Interval: 60,
			Liveness: true,
		},
		Clock: ClockConfig{
			Timezone: "Europe/Madrid",
			Style:    TimestampLocal,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/weatherstation.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30,
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WEATHERSTATION_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("WEATHERSTATION_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WEATHERSTATION_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("WEATHERSTATION_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WEATHERSTATION_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("WEATHERSTATION_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}

	// Network
	if v := os.Getenv("WEATHERSTATION_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}

	// Database
	if v := os.Getenv("WEATHERSTATION_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("WEATHERSTATION_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	if c.MQTT.Broker.ClientID == "" {
		c.MQTT.Broker.ClientID = GenerateClientID()
	}
	if c.MQTT.Topics.Data == "" {
		c.MQTT.Topics.Data = c.MQTT.Topics.Base
	}
}

// GenerateClientID returns a unique client ID for stations without a fixed one.
func GenerateClientID() string {
	return clientIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Station
	if c.Station.SensorID == "" {
		errs = append(errs, "station.sensor_id is required")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Base == "" {
		errs = append(errs, "mqtt.topics.base is required")
	}
	switch c.MQTT.Retry.Mode {
	case RetryModeTimer:
		if c.MQTT.Retry.Delay <= 0 {
			errs = append(errs, "mqtt.retry.delay must be positive")
		}
	case RetryModePoll:
		if c.MQTT.Retry.PollThreshold <= 0 || c.MQTT.Retry.PollTick <= 0 {
			errs = append(errs, "mqtt.retry.poll_threshold and poll_tick must be positive")
		}
	default:
		errs = append(errs, `mqtt.retry.mode must be "timer" or "poll"`)
	}

	// Network
	if c.Network.RetryDelay <= 0 {
		errs = append(errs, "network.retry_delay must be positive")
	}
	if !c.Network.Static && c.Network.PollInterval <= 0 {
		errs = append(errs, "network.poll_interval must be positive")
	}

	// Publish
	if c.Publish.Interval <= 0 {
		errs = append(errs, "publish.interval must be positive")
	}

	// Clock
	if c.Clock.Style != TimestampLocal && c.Clock.Style != TimestampUTC {
		errs = append(errs, `clock.style must be "local" or "utc"`)
	}
	if _, err := time.LoadLocation(c.Clock.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("clock.timezone %q is not a valid zone", c.Clock.Timezone))
	}

	// Database
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerRetryDelay returns the timer-mode retry delay as a Duration.
func (c *Config) BrokerRetryDelay() time.Duration {
	return time.Duration(c.MQTT.Retry.Delay) * time.Millisecond
}

// PollThreshold returns the poll-mode attempt gap as a Duration.
func (c *Config) PollThreshold() time.Duration {
	return time.Duration(c.MQTT.Retry.PollThreshold) * time.Millisecond
}

// PollTick returns the poll-mode loop tick as a Duration.
func (c *Config) PollTick() time.Duration {
	return time.Duration(c.MQTT.Retry.PollTick) * time.Millisecond
}

// NetworkRetryDelay returns the link rejoin delay as a Duration.
func (c *Config) NetworkRetryDelay() time.Duration {
	return time.Duration(c.Network.RetryDelay) * time.Millisecond
}

// NetworkPollInterval returns the interface sampling interval as a Duration.
func (c *Config) NetworkPollInterval() time.Duration {
	return time.Duration(c.Network.PollInterval) * time.Millisecond
}

// PublishInterval returns the reading cycle as a Duration.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.Publish.Interval) * time.Second
}
