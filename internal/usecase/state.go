package usecase

import (
	"sync"
	"time"

	"SignalWatch/internal/domain/models"
	drepo "SignalWatch/internal/domain/repository"
	applogger "SignalWatch/pkg/logger"
)

// DashboardState is the view-state reducer. It consumes decoded envelopes
// and maintains the in-memory state the presentation layer reads: the
// active-signal set (insertion ordered, keyed by id), the latest metrics
// snapshot, the per-symbol market-data map, and the latest stats.
//
// Every apply is a wholesale replacement of the addressed piece of state;
// there is no field-level merging and no range validation. Signals are
// never expired or deleted.
type DashboardState struct {
	log     *applogger.Logger
	metrics drepo.Metrics

	mu        sync.RWMutex
	order     []int64
	signals   map[int64]models.TradingSignal
	sysStats  *models.SystemMetrics
	market    map[string]models.MarketData
	monStats  *models.MonitoringStats
	updatedAt time.Time
}

// NewDashboardState creates an empty reducer.
func NewDashboardState(log *applogger.Logger, metrics drepo.Metrics) *DashboardState {
	return &DashboardState{
		log:     log,
		metrics: metrics,
		signals: make(map[int64]models.TradingSignal),
		market:  make(map[string]models.MarketData),
	}
}

// OnMessage implements repository.MessageHandler.
func (d *DashboardState) OnMessage(env *models.Envelope) {
	switch env.Type {
	case models.TypeSignalUpdate:
		s, err := env.Signal()
		if err != nil {
			d.logWarn("signal_update payload", err)
			return
		}
		d.applySignal(*s)

	case models.TypeMetricsUpdate:
		m, err := env.SystemMetrics()
		if err != nil {
			d.logWarn("metrics_update payload", err)
			return
		}
		d.applyMetrics(m)

	case models.TypeMarketData:
		md, err := env.MarketData()
		if err != nil {
			d.logWarn("market_data payload", err)
			return
		}
		d.applyMarket(md)

	case models.TypeSignalsUpdate:
		list, err := env.SignalList()
		if err != nil {
			d.logWarn("signals_update payload", err)
			return
		}
		d.applySignalList(list)

	case models.TypeStatsUpdate:
		st, err := env.MonitoringStats()
		if err != nil {
			d.logWarn("stats_update payload", err)
			return
		}
		d.applyStats(st)
	}
}

// applySignal upserts by id: a matching id is replaced wholesale and
// keeps its position; a new id is appended.
func (d *DashboardState) applySignal(s models.TradingSignal) {
	d.mu.Lock()
	if _, ok := d.signals[s.ID]; !ok {
		d.order = append(d.order, s.ID)
	}
	d.signals[s.ID] = s
	d.updatedAt = time.Now()
	count := len(d.signals)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetTrackedSignals(count)
	}
}

func (d *DashboardState) applyMetrics(m *models.SystemMetrics) {
	d.mu.Lock()
	d.sysStats = m
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

func (d *DashboardState) applyMarket(md map[string]models.MarketData) {
	d.mu.Lock()
	d.market = md
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

func (d *DashboardState) applySignalList(list []models.TradingSignal) {
	d.mu.Lock()
	d.order = d.order[:0]
	d.signals = make(map[int64]models.TradingSignal, len(list))
	for _, s := range list {
		if _, ok := d.signals[s.ID]; !ok {
			d.order = append(d.order, s.ID)
		}
		d.signals[s.ID] = s
	}
	d.updatedAt = time.Now()
	count := len(d.signals)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetTrackedSignals(count)
	}
}

func (d *DashboardState) applyStats(st *models.MonitoringStats) {
	d.mu.Lock()
	d.monStats = st
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// Signals returns the active signals in insertion order.
func (d *DashboardState) Signals() []models.TradingSignal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.TradingSignal, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.signals[id])
	}
	return out
}

// Signal returns the signal for an id, if tracked.
func (d *DashboardState) Signal(id int64) (models.TradingSignal, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.signals[id]
	return s, ok
}

// Metrics returns a copy of the latest metrics snapshot, nil if none seen.
func (d *DashboardState) Metrics() *models.SystemMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sysStats == nil {
		return nil
	}
	m := *d.sysStats
	return &m
}

// Market returns a copy of the per-symbol market-data map.
func (d *DashboardState) Market() map[string]models.MarketData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]models.MarketData, len(d.market))
	for k, v := range d.market {
		out[k] = v
	}
	return out
}

// Stats returns a copy of the latest monitoring stats, nil if none seen.
func (d *DashboardState) Stats() *models.MonitoringStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.monStats == nil {
		return nil
	}
	s := *d.monStats
	return &s
}

// Snapshot copies the full view state.
func (d *DashboardState) Snapshot() *models.DashboardSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := &models.DashboardSnapshot{
		Signals:   make([]models.TradingSignal, 0, len(d.order)),
		UpdatedAt: d.updatedAt,
	}
	for _, id := range d.order {
		snap.Signals = append(snap.Signals, d.signals[id])
	}
	if d.sysStats != nil {
		m := *d.sysStats
		snap.Metrics = &m
	}
	if len(d.market) > 0 {
		snap.Market = make(map[string]models.MarketData, len(d.market))
		for k, v := range d.market {
			snap.Market[k] = v
		}
	}
	if d.monStats != nil {
		s := *d.monStats
		snap.Stats = &s
	}
	return snap
}

// Restore seeds the reducer from a cached snapshot. Live updates arriving
// afterwards overwrite the restored entries as usual.
func (d *DashboardState) Restore(snap *models.DashboardSnapshot) {
	if snap == nil {
		return
	}
	d.mu.Lock()
	d.order = d.order[:0]
	d.signals = make(map[int64]models.TradingSignal, len(snap.Signals))
	for _, s := range snap.Signals {
		if _, ok := d.signals[s.ID]; !ok {
			d.order = append(d.order, s.ID)
		}
		d.signals[s.ID] = s
	}
	d.sysStats = snap.Metrics
	d.monStats = snap.Stats
	if snap.Market != nil {
		d.market = snap.Market
	}
	d.updatedAt = snap.UpdatedAt
	count := len(d.signals)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetTrackedSignals(count)
	}
}

// UpdatedAt reports when state last changed.
func (d *DashboardState) UpdatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updatedAt
}

func (d *DashboardState) logWarn(what string, err error) {
	if d.log != nil {
		d.log.Warn("dropping message with bad payload",
			applogger.String("payload", what),
			applogger.Error(err),
		)
	}
	if d.metrics != nil {
		d.metrics.RecordError("payload")
	}
}
