package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SignalWatch/internal/usecase"
	pkgcache "SignalWatch/pkg/cache"
	pkgch "SignalWatch/pkg/clickhouse"
	"SignalWatch/pkg/config"
	xhttp "SignalWatch/pkg/http"
	pkgkafka "SignalWatch/pkg/kafka"
	applogger "SignalWatch/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	monitor     *usecase.Monitor
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	chClient    *pkgch.Client        // may be nil
	producer    *pkgkafka.Producer   // may be nil
	snapCache   *pkgcache.RedisCache // may be nil
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.Monitor,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	snapCache *pkgcache.RedisCache,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		monitor:     monitor,
		httpHandler: httpHandler,
		chClient:    chClient,
		producer:    producer,
		snapCache:   snapCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.monitor.Start(ctx); err != nil {
		a.log.Error("monitor start error", applogger.Error(err))
		return err
	}
	a.log.Info("monitor started",
		applogger.String("stream_url", a.cfg.Stream.URL),
		applogger.Strings("channels", a.cfg.Stream.Channels),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// Streams first so no new updates flow into the sinks.
	if err := a.monitor.Shutdown(ctx); err != nil {
		a.log.Warn("monitor stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.snapCache != nil {
		if err := a.snapCache.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.RemoveCollector()
	a.log.Info("shutdown complete")
	return nil
}
