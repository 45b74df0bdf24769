package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Stream struct {
		URL              string        `yaml:"url"`
		MonitorURL       string        `yaml:"monitor_url"`
		Channels         []string      `yaml:"channels"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
		MaxReconnects    int           `yaml:"max_reconnects"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
	} `yaml:"stream"`
	Relay struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		LogTopic     string        `yaml:"log_topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Linger       time.Duration `yaml:"linger"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"relay"`
	Archive struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		Table        string        `yaml:"table"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"archive"`
	Snapshot struct {
		Enabled  bool          `yaml:"enabled"`
		TTL      time.Duration `yaml:"ttl"`
		Interval time.Duration `yaml:"interval"`
		Redis    struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"snapshot"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SIGNALWATCH_WS_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("SIGNALWATCH_MONITOR_URL"); v != "" {
		c.Stream.MonitorURL = v
	}
	if v := os.Getenv("SIGNALWATCH_CHANNELS"); v != "" {
		c.Stream.Channels = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Relay.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Relay.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Archive.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Snapshot.Redis.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream.url must be a ws:// or wss:// endpoint, got '%s'", c.Stream.URL)
	}
	if c.Stream.MaxReconnects < 0 {
		return fmt.Errorf("stream.max_reconnects cannot be negative")
	}
	if c.Relay.Enabled {
		if len(c.Relay.Brokers) == 0 {
			return fmt.Errorf("relay.brokers cannot be empty when relay is enabled")
		}
		if c.Relay.Topic == "" {
			return fmt.Errorf("relay.topic is required when relay is enabled")
		}
	}
	if c.Archive.Enabled && c.Archive.Host == "" {
		return fmt.Errorf("archive.host is required when archive is enabled")
	}
	if c.Snapshot.Enabled && c.Snapshot.Redis.Host == "" {
		return fmt.Errorf("snapshot.redis.host is required when snapshot is enabled")
	}
	return nil
}
