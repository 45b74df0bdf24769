package di

import (
	"context"
	"fmt"
	"time"

	"SignalWatch/internal/domain/repository"
	"SignalWatch/internal/handler/api"
	mid "SignalWatch/internal/middleware"
	internalrepo "SignalWatch/internal/repository"
	"SignalWatch/internal/service/stream"
	"SignalWatch/internal/usecase"
	pkgcache "SignalWatch/pkg/cache"
	pkgch "SignalWatch/pkg/clickhouse"
	"SignalWatch/pkg/config"
	xhttp "SignalWatch/pkg/http"
	pkgkafka "SignalWatch/pkg/kafka"
	applogger "SignalWatch/pkg/logger"
	"SignalWatch/pkg/metrics"
	"SignalWatch/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "console"
	}
	output := cfg.Logging.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when the archive is
// enabled, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.Archive.Host),
		pkgch.WithPort(cfg.Archive.Port),
		pkgch.WithDatabase(cfg.Archive.Database),
		pkgch.WithCredentials(cfg.Archive.User, cfg.Archive.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.Archive.UseHTTP),
		pkgch.WithAsyncInsert(cfg.Archive.AsyncInsert, cfg.Archive.WaitForAsync),
		pkgch.WithTimeouts(cfg.Archive.DialTimeout, cfg.Archive.ReadTimeout, cfg.Archive.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.Archive.Database
	table := cfg.Archive.Table
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + "." + table + " (" +
			"observed_at DateTime64(3), id Int64, symbol String, direction String, " +
			"entry_price Float64, current_price Float64, target_price Float64, stop_loss Float64, " +
			"accuracy Float64, confidence Float64, market_phase String, created_at DateTime64(3), " +
			"validation_count Int32" +
			") ENGINE=MergeTree ORDER BY (id, observed_at)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the relay is enabled,
// nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Relay.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Relay.Brokers),
		pkgkafka.WithCompression(cfg.Relay.Compression),
		pkgkafka.WithRequiredAcks(cfg.Relay.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Relay.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Relay.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Relay.Linger),
		pkgkafka.WithTimeouts(cfg.Relay.WriteTimeout, cfg.Relay.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Relay.MaxAttempts),
		pkgkafka.WithAsync(cfg.Relay.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideSnapshotCache creates the Redis snapshot cache when enabled,
// nil otherwise.
func ProvideSnapshotCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Snapshot.Enabled {
		return nil, nil
	}

	opts := []pkgcache.RedisOption{
		pkgcache.WithRedisHost(cfg.Snapshot.Redis.Host),
		pkgcache.WithRedisPort(cfg.Snapshot.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Snapshot.Redis.Password),
		pkgcache.WithRedisDB(cfg.Snapshot.Redis.DB),
	}
	if cfg.Snapshot.Redis.Prefix != "" {
		opts = append(opts, pkgcache.WithRedisPrefix(cfg.Snapshot.Redis.Prefix))
	}

	c, err := pkgcache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	return c, nil
}

// ProvideDashboardState creates the view-state reducer.
func ProvideDashboardState(log *applogger.Logger, m repository.Metrics) *usecase.DashboardState {
	return usecase.NewDashboardState(log, m)
}

// ProvideMonitor wires streams, reducer, and the optional sinks together.
func ProvideMonitor(
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
	state *usecase.DashboardState,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	snaps *pkgcache.RedisCache,
) *usecase.Monitor {
	primary := stream.New(stream.Config{
		Name:             "primary",
		URL:              cfg.Stream.URL,
		Channels:         cfg.Stream.Channels,
		BaseDelay:        cfg.Stream.ReconnectDelay,
		MaxAttempts:      cfg.Stream.MaxReconnects,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		WriteTimeout:     cfg.Stream.WriteTimeout,
	}, log, m)

	opts := []usecase.MonitorOption{}

	if cfg.Stream.MonitorURL != "" {
		monitor := stream.New(stream.Config{
			Name:             "monitor",
			URL:              cfg.Stream.MonitorURL,
			BaseDelay:        cfg.Stream.ReconnectDelay,
			MaxAttempts:      cfg.Stream.MaxReconnects,
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
		}, log, m)
		opts = append(opts, usecase.WithMonitorStream(monitor))
	}

	var sinks []mid.Sink
	if producer != nil {
		relay := internalrepo.NewKafkaRelay(producer, cfg.Relay.Topic)
		if s, ok := relay.(mid.Sink); ok {
			sinks = append(sinks, s)
		}
	}
	if chClient != nil {
		archive := internalrepo.NewClickHouseArchive(chClient.DB(), cfg.Archive.Database+"."+cfg.Archive.Table)
		if s, ok := archive.(mid.Sink); ok {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) > 0 {
		pipe := mid.NewSinkPipeline(m, sinks...).Apply(mid.WithBufferSize(2000))
		opts = append(opts, usecase.WithSinkPipeline(pipe))
	}

	if snaps != nil {
		// Memory-fronted so the periodic snapshot read path stays cheap.
		layered := pkgcache.NewLayeredCache(snaps, pkgcache.WithLayeredMemorySize(16))
		opts = append(opts, usecase.WithSnapshotCache(layered, cfg.Snapshot.TTL, cfg.Snapshot.Interval))
	}

	return usecase.NewMonitor(primary, state, log, opts...)
}

// ProvideHTTPHandler creates the dashboard API handler.
func ProvideHTTPHandler(log *applogger.Logger, monitor *usecase.Monitor) xhttp.Handler {
	return api.NewDashboardEchoHandler(log, monitor)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.Monitor,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	snaps *pkgcache.RedisCache,
) *server.App {
	// Ship aggregated error logs over the relay when a log topic is set.
	if producer != nil && cfg.Relay.LogTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Relay.LogTopic,
			Publisher:      internalrepo.NewLogPublisher(producer),
		})
	}

	return server.New(cfg, log, monitor, handler, chClient, producer, snaps)
}
