package repository

import (
	"context"

	"SignalWatch/internal/domain/models"
)

// MessageHandler receives every successfully decoded envelope, in the
// order frames arrived on the wire.
type MessageHandler interface {
	OnMessage(env *models.Envelope)
}

// SignalStream owns a single persistent connection to the backend and
// fans decoded envelopes out to registered handlers. Connection failures
// are absorbed internally; none of these operations report them.
type SignalStream interface {
	// Connect opens the connection if none is active. Idempotent.
	Connect(ctx context.Context)
	// Disconnect closes the connection and suppresses automatic
	// reconnection until Connect is called again.
	Disconnect()
	AddHandler(h MessageHandler)
	RemoveHandler(h MessageHandler)
	State() models.ConnState
}

// Publisher relays decoded envelopes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, env *models.Envelope) error
	Close() error
}

// Archive persists signal history for later accuracy review.
type Archive interface {
	StoreSignal(ctx context.Context, s *models.TradingSignal) error
	StoreSignals(ctx context.Context, signals []models.TradingSignal) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordMessage(stream string, msgType string)
	RecordError(kind string)
	RecordReconnect(stream string)
	RecordLatency(op string, seconds float64)
	SetTrackedSignals(count int)
}
