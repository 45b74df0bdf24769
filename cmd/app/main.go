package main

import (
	"flag"
	"log"
	"os"

	"SignalWatch/internal/di"
	"SignalWatch/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s stream=%s", cfg.Environment, cfg.Stream.URL)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Archive.Enabled {
		log.Printf("clickhouse: connected and schema ready - db: %s", cfg.Archive.Database)
	}
	if cfg.Relay.Enabled {
		log.Printf("kafka: connected brokers=%v topic=%s", cfg.Relay.Brokers, cfg.Relay.Topic)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
