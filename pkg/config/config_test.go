package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
environment: test
logging:
  level: debug
  format: json
  output: stdout
server:
  port: 8090
  read_timeout: 5s
  write_timeout: 5s
  shutdown_timeout: 10s
stream:
  url: ws://localhost:8000/ws
  monitor_url: ws://localhost:8000/ws/monitor
  channels: [signals, metrics]
  reconnect_delay: 1s
  max_reconnects: 5
relay:
  enabled: true
  brokers: [localhost:9092]
  topic: signalwatch.envelopes
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Fatalf("environment %q", cfg.Environment)
	}
	if cfg.Stream.URL != "ws://localhost:8000/ws" {
		t.Fatalf("stream url %q", cfg.Stream.URL)
	}
	if cfg.Stream.MonitorURL != "ws://localhost:8000/ws/monitor" {
		t.Fatalf("monitor url %q", cfg.Stream.MonitorURL)
	}
	if len(cfg.Stream.Channels) != 2 || cfg.Stream.Channels[0] != "signals" {
		t.Fatalf("channels %v", cfg.Stream.Channels)
	}
	if cfg.Stream.ReconnectDelay != time.Second || cfg.Stream.MaxReconnects != 5 {
		t.Fatalf("reconnect settings %v %d", cfg.Stream.ReconnectDelay, cfg.Stream.MaxReconnects)
	}
	if !cfg.Relay.Enabled || cfg.Relay.Topic != "signalwatch.envelopes" {
		t.Fatalf("relay %+v", cfg.Relay)
	}
}

func TestValidateRequiresStreamURL(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	if err == nil {
		t.Fatal("expected error for missing stream.url")
	}
}

func TestValidateRejectsNonWebsocketURL(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\nstream:\n  url: http://localhost:8000/ws\n"))
	if err == nil {
		t.Fatal("expected error for http scheme")
	}
}

func TestValidateRelayNeedsBrokers(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
stream:
  url: ws://localhost:8000/ws
relay:
  enabled: true
  topic: t
`))
	if err == nil {
		t.Fatal("expected error for relay without brokers")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALWATCH_WS_URL", "ws://backend:8000/ws")
	t.Setenv("SIGNALWATCH_CHANNELS", "signals,stats")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.URL != "ws://backend:8000/ws" {
		t.Fatalf("env override missed, url %q", cfg.Stream.URL)
	}
	if len(cfg.Stream.Channels) != 2 || cfg.Stream.Channels[1] != "stats" {
		t.Fatalf("channels %v", cfg.Stream.Channels)
	}
	if len(cfg.Relay.Brokers) != 2 {
		t.Fatalf("brokers %v", cfg.Relay.Brokers)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("log level %q", cfg.Logging.Level)
	}
}
