package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SignalWatch/internal/domain/models"
	drepo "SignalWatch/internal/domain/repository"
	mid "SignalWatch/internal/middleware"
	"SignalWatch/pkg/cache"
	applogger "SignalWatch/pkg/logger"
)

const snapshotKey = "dashboard:snapshot"

// Monitor ties the streams to the view state and the optional sinks. It
// registers the reducer (and, when configured, the sink pipeline) as
// stream handlers, warm-starts the reducer from the snapshot cache, and
// persists snapshots on an interval.
type Monitor struct {
	primary drepo.SignalStream
	monitor drepo.SignalStream // companion /ws/monitor stream, may be nil
	state   *DashboardState
	pipe    *mid.SinkPipeline // may be nil
	snaps   cache.Service     // may be nil
	snapTTL time.Duration
	snapInt time.Duration
	log     *applogger.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	started bool
	wg      sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorStream attaches the companion monitor stream.
func WithMonitorStream(s drepo.SignalStream) MonitorOption {
	return func(m *Monitor) { m.monitor = s }
}

// WithSinkPipeline attaches the downstream sink pipeline.
func WithSinkPipeline(p *mid.SinkPipeline) MonitorOption {
	return func(m *Monitor) { m.pipe = p }
}

// WithSnapshotCache attaches the snapshot cache.
func WithSnapshotCache(c cache.Service, ttl, interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.snaps = c
		m.snapTTL = ttl
		m.snapInt = interval
	}
}

// NewMonitor creates a monitor over the primary stream and reducer.
func NewMonitor(primary drepo.SignalStream, state *DashboardState, log *applogger.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		primary: primary,
		state:   state,
		log:     log,
		snapTTL: 24 * time.Hour,
		snapInt: 15 * time.Second,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State exposes the reducer for the HTTP layer.
func (m *Monitor) State() *DashboardState { return m.state }

// Start registers handlers and opens the streams.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.warmStart(ctx)

	m.primary.AddHandler(m.state)
	if m.monitor != nil {
		m.monitor.AddHandler(m.state)
	}
	if m.pipe != nil {
		m.pipe.Start(ctx)
		m.primary.AddHandler(m.pipe)
		if m.monitor != nil {
			m.monitor.AddHandler(m.pipe)
		}
	}

	m.primary.Connect(ctx)
	if m.monitor != nil {
		m.monitor.Connect(ctx)
	}

	if m.snaps != nil {
		m.wg.Add(1)
		go m.persistLoop(ctx)
	}
	return nil
}

// Shutdown disconnects the streams and flushes a final snapshot.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	m.primary.Disconnect()
	if m.monitor != nil {
		m.monitor.Disconnect()
	}
	if m.pipe != nil {
		m.pipe.Stop()
	}
	if m.snaps != nil {
		m.persist(ctx)
	}
	return nil
}

// Status reports per-stream connection state for the API.
func (m *Monitor) Status() map[string]models.ConnState {
	out := map[string]models.ConnState{"primary": m.primary.State()}
	if m.monitor != nil {
		out["monitor"] = m.monitor.State()
	}
	return out
}

func (m *Monitor) warmStart(ctx context.Context) {
	if m.snaps == nil {
		return
	}
	var snap models.DashboardSnapshot
	err := m.snaps.Get(ctx, snapshotKey, &snap)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && m.log != nil {
			m.log.Warn("snapshot warm-start failed", applogger.Error(err))
		}
		return
	}
	m.state.Restore(&snap)
	if m.log != nil {
		m.log.Info("view state restored from snapshot",
			applogger.Int("signals", len(snap.Signals)),
		)
	}
}

func (m *Monitor) persistLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.snapInt)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.persist(ctx)
		}
	}
}

func (m *Monitor) persist(ctx context.Context) {
	snap := m.state.Snapshot()
	if err := m.snaps.Set(ctx, snapshotKey, snap, m.snapTTL); err != nil && m.log != nil {
		m.log.Warn("snapshot persist failed", applogger.Error(err))
	}
}
