package models

import "time"

// DashboardSnapshot is a point-in-time copy of the full view state. It is
// what the HTTP layer serves and what gets written through to the
// snapshot cache so a restarted instance can warm-start.
type DashboardSnapshot struct {
	Signals   []TradingSignal       `json:"signals"`
	Metrics   *SystemMetrics        `json:"metrics,omitempty"`
	Market    map[string]MarketData `json:"market,omitempty"`
	Stats     *MonitoringStats      `json:"stats,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}
