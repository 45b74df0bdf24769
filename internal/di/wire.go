//go:build wireinject
// +build wireinject

package di

import (
	"SignalWatch/pkg/config"
	"SignalWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideSnapshotCache,

		// Use cases
		ProvideDashboardState,
		ProvideMonitor,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
