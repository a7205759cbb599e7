package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
station:
  sensor_id: "WT_042"
  street_id: "street_9"
  location:
    latitude: 40.0
    longitude: -3.0
    district: "Retiro"
mqtt:
  broker:
    host: "192.168.1.131"
    port: 1883
    client_id: "ESP32_METEO_001"
  topics:
    base: "estacion"
  qos: 0
  retry:
    mode: "poll"
    poll_threshold: 5000
    poll_tick: 500
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Station.SensorID != "WT_042" {
		t.Errorf("Station.SensorID = %q, want %q", cfg.Station.SensorID, "WT_042")
	}
	if cfg.Station.Location.District != "Retiro" {
		t.Errorf("Location.District = %q, want %q", cfg.Station.Location.District, "Retiro")
	}
	// Unset fields keep their defaults.
	if cfg.Station.Location.Neighborhood != "Universidad" {
		t.Errorf("Location.Neighborhood = %q, want default %q", cfg.Station.Location.Neighborhood, "Universidad")
	}
	if cfg.MQTT.QoS != 0 {
		t.Errorf("MQTT.QoS = %d, want 0", cfg.MQTT.QoS)
	}
	if cfg.MQTT.Retry.Mode != RetryModePoll {
		t.Errorf("MQTT.Retry.Mode = %q, want %q", cfg.MQTT.Retry.Mode, RetryModePoll)
	}
	if cfg.MQTT.Topics.CommandSuffix != "comandos" {
		t.Errorf("Topics.CommandSuffix = %q, want default %q", cfg.MQTT.Topics.CommandSuffix, "comandos")
	}
	if cfg.MQTT.Topics.Data != "estacion" {
		t.Errorf("Topics.Data = %q, want base topic %q", cfg.MQTT.Topics.Data, "estacion")
	}
	if cfg.PollTick() != 500*time.Millisecond {
		t.Errorf("PollTick() = %v, want 500ms", cfg.PollTick())
	}
}

func TestLoad_GeneratesClientID(t *testing.T) {
	cfg, err := Load(writeConfig(t, "station:\n  sensor_id: \"WT_001\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !strings.HasPrefix(cfg.MQTT.Broker.ClientID, clientIDPrefix) {
		t.Errorf("ClientID = %q, want prefix %q", cfg.MQTT.Broker.ClientID, clientIDPrefix)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
station:
  sensor_id: ""
mqtt:
  retry:
    mode: "exponential"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "station.sensor_id") || !strings.Contains(err.Error(), "mqtt.retry.mode") {
		t.Errorf("Load() error = %v, want both sensor_id and retry.mode reported", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero timer delay",
			mutate:  func(c *Config) { c.MQTT.Retry.Delay = 0 },
			wantErr: true,
		},
		{
			name: "poll mode ignores timer delay",
			mutate: func(c *Config) {
				c.MQTT.Retry.Mode = RetryModePoll
				c.MQTT.Retry.Delay = 0
			},
			wantErr: false,
		},
		{
			name:    "unknown timestamp style",
			mutate:  func(c *Config) { c.Clock.Style = "epoch" },
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Clock.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name: "journal enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "static link needs no poll interval",
			mutate: func(c *Config) {
				c.Network.Static = true
				c.Network.PollInterval = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := Default()

	if got := cfg.BrokerRetryDelay(); got != 2*time.Second {
		t.Errorf("BrokerRetryDelay() = %v, want 2s", got)
	}
	if got := cfg.NetworkRetryDelay(); got != 5*time.Second {
		t.Errorf("NetworkRetryDelay() = %v, want 5s", got)
	}
	if got := cfg.PollThreshold(); got != 5*time.Second {
		t.Errorf("PollThreshold() = %v, want 5s", got)
	}
	if got := cfg.PublishInterval(); got != time.Minute {
		t.Errorf("PublishInterval() = %v, want 1m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("WEATHERSTATION_MQTT_HOST", "mqtt.example.com")
	t.Setenv("WEATHERSTATION_MQTT_PORT", "8883")
	t.Setenv("WEATHERSTATION_MQTT_USERNAME", "testuser")
	t.Setenv("WEATHERSTATION_MQTT_PASSWORD", "testpass")
	t.Setenv("WEATHERSTATION_NETWORK_INTERFACE", "wlan0")
	t.Setenv("WEATHERSTATION_DATABASE_PATH", "/custom/path.db")
	t.Setenv("WEATHERSTATION_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Network.Interface != "wlan0" {
		t.Errorf("Network.Interface = %q, want %q", cfg.Network.Interface, "wlan0")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := Default()
	t.Setenv("WEATHERSTATION_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want unchanged 1883", cfg.MQTT.Broker.Port)
	}
}

func TestGenerateClientID_Unique(t *testing.T) {
	a := GenerateClientID()
	b := GenerateClientID()
	if a == b {
		t.Errorf("GenerateClientID() returned %q twice", a)
	}
	if len(a) != len(clientIDPrefix)+12 {
		t.Errorf("GenerateClientID() = %q, want %d chars", a, len(clientIDPrefix)+12)
	}
}
