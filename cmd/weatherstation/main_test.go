package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/infrastructure/database"
	"github.com/nerrad567/weatherstation/internal/infrastructure/logging"
	"github.com/nerrad567/weatherstation/internal/infrastructure/mqtt"
	"github.com/nerrad567/weatherstation/internal/link"
	"github.com/nerrad567/weatherstation/internal/metrics"
)

var (
	_ metrics.LinkStatus    = (*link.InterfaceWatcher)(nil)
	_ metrics.RejoinCounter = (*link.CommandRejoiner)(nil)
)

// writeConfig writes a minimal config for a station that never reaches a
// broker: static link, refused port, journal in dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := `
station:
  sensor_id: "WT_TEST"
  street_id: "street_1"

network:
  static: true
  retry_delay: 50

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "test-client"
  topics:
    base: "sensors/street_1/WT_TEST"
    status: "sensors/street_1/WT_TEST/status"
  qos: 0
  retry:
    mode: "timer"
    delay: 50

publish:
  interval: 1

clock:
  timezone: "UTC"
  style: "utc"

database:
  enabled: true
  path: "` + filepath.Join(dir, "journal.db") + `"
  busy_timeout: 5

metrics:
  enabled: false

logging:
  level: "error"
  format: "text"
  output: "stderr"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_StopsOnCancel runs the daemon against a refused broker port and
// checks that it keeps going until cancelled, then shuts down cleanly.
func TestRun_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if time.Since(start) < time.Second {
		t.Error("run() returned before the context was cancelled")
	}

	if _, err := os.Stat(filepath.Join(dir, "journal.db")); err != nil {
		t.Errorf("journal not created: %v", err)
	}

	out, err := execute(t, "journal", "recent", "--config", path)
	if err != nil {
		t.Fatalf("journal recent error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		t.Fatalf("journal recent printed %d lines, want entries and totals:\n%s", len(lines), out)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["published"] != false {
		t.Errorf("published = %v, want false without a broker", entry["published"])
	}
	if entry["topic"] != "sensors/street_1/WT_TEST" {
		t.Errorf("topic = %v", entry["topic"])
	}
}

func TestPayloadCommand(t *testing.T) {
	path := writeConfig(t, t.TempDir())

	out, err := execute(t, "payload", "--config", path)
	if err != nil {
		t.Fatalf("payload error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, out)
	}
	if doc["sensor_id"] != "WT_TEST" {
		t.Errorf("sensor_id = %v, want WT_TEST", doc["sensor_id"])
	}
	if doc["sensor_type"] != "weather" {
		t.Errorf("sensor_type = %v, want weather", doc["sensor_type"])
	}
	if !strings.HasSuffix(doc["timestamp"].(string), ".000Z") {
		t.Errorf("timestamp = %v, want utc style", doc["timestamp"])
	}
}

func TestPayloadCommand_DefaultsWhenConfigMissing(t *testing.T) {
	out, err := execute(t, "payload", "--pretty", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("payload error = %v", err)
	}
	if !strings.Contains(out, "\n  \"sensor_id\": \"WT_001\"") {
		t.Errorf("expected pretty default document, got:\n%s", out)
	}
}

func TestJournalPrune(t *testing.T) {
	path := writeConfig(t, t.TempDir())

	out, err := execute(t, "journal", "prune", "--days", "1", "--config", path)
	if err != nil {
		t.Fatalf("journal prune error = %v", err)
	}
	if !strings.Contains(out, "pruned 0 entries") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "journal", "prune", "--days", "0", "--config", path); err == nil {
		t.Error("prune with --days 0 should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "weatherstation "+version) {
		t.Errorf("output = %q", out)
	}
}

// TestGetConfigPath verifies config path resolution.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("WEATHERSTATION_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	t.Setenv("WEATHERSTATION_CONFIG", "/custom/config.yaml")
	if path := getConfigPath(); path != "/custom/config.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", path, "/custom/config.yaml")
	}
}

func TestNewRejoiner(t *testing.T) {
	log := logging.Discard()

	cfg := config.Default()
	netLink := newLink(cfg, log, func(bool) {})
	if _, ok := netLink.(*link.InterfaceWatcher); !ok {
		t.Fatalf("newLink() = %T, want *link.InterfaceWatcher", netLink)
	}

	r, err := newRejoiner(cfg, log, netLink)
	if err != nil {
		t.Fatalf("newRejoiner() error = %v", err)
	}
	if r != netLink {
		t.Error("without a rejoin command the link re-probes itself")
	}

	cfg.Network.RejoinCommand = []string{"true"}
	r, err = newRejoiner(cfg, log, netLink)
	if err != nil {
		t.Fatalf("newRejoiner() error = %v", err)
	}
	if _, ok := r.(*link.CommandRejoiner); !ok {
		t.Errorf("newRejoiner() = %T, want *link.CommandRejoiner", r)
	}

	cfg.Network.Static = true
	staticLink := newLink(cfg, log, func(bool) {})
	if _, ok := staticLink.(link.StaticLink); !ok {
		t.Fatalf("newLink() = %T, want link.StaticLink", staticLink)
	}
	r, err = newRejoiner(cfg, log, staticLink)
	if err != nil {
		t.Fatalf("newRejoiner() error = %v", err)
	}
	if _, ok := r.(link.StaticLink); !ok {
		t.Errorf("static links ignore the rejoin command, got %T", r)
	}
}

func TestHealthChecks(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	mqttClient := mqtt.New(cfg.MQTT, mqtt.Handlers{})

	checks := healthChecks(nil, mqttClient, nil)
	if len(checks) != 1 || checks[0].Name != "mqtt" {
		t.Fatalf("healthChecks() = %+v, want only mqtt", checks)
	}
	if err := checks[0].Checker.HealthCheck(ctx); err == nil {
		t.Error("mqtt check passed without a session")
	}

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	checks = healthChecks(db, mqttClient, nil)
	if len(checks) != 2 || checks[0].Name != "database" || checks[1].Name != "mqtt" {
		t.Fatalf("healthChecks() = %+v, want database then mqtt", checks)
	}
	if err := checks[0].Checker.HealthCheck(ctx); err != nil {
		t.Errorf("database check error = %v", err)
	}
}
