package models

// Direction of a trading signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// MarginMode for leveraged signals.
type MarginMode string

const (
	MarginIsolated MarginMode = "ISOLATED"
	MarginCross    MarginMode = "CROSS"
)

// TradingSignal is a single trading recommendation pushed by the backend.
// ID is the unique key within the active-signal set; a later message with
// the same id replaces the stored record wholesale.
type TradingSignal struct {
	ID              int64     `json:"id"`
	Symbol          string    `json:"symbol"`
	Direction       Direction `json:"direction"`
	EntryPrice      float64   `json:"entry_price"`
	CurrentPrice    float64   `json:"current_price"`
	TargetPrice     float64   `json:"target_price"`
	StopLoss        float64   `json:"stop_loss"`
	Accuracy        float64   `json:"accuracy"`
	Confidence      float64   `json:"confidence"`
	MarketPhase     string    `json:"market_phase,omitempty"`
	CreatedAt       string    `json:"created_at"` // ISO-8601
	ValidationCount int       `json:"validation_count"`

	// Futures extension, present only for leveraged signals.
	Leverage         int        `json:"leverage,omitempty"`
	MarginMode       MarginMode `json:"margin_mode,omitempty"`
	PositionSize     float64    `json:"position_size,omitempty"`
	Fees             float64    `json:"fees,omitempty"`
	ExpectedProfit   float64    `json:"expected_profit,omitempty"`
	LiquidationPrice float64    `json:"liquidation_price,omitempty"`
	FundingRate      float64    `json:"funding_rate,omitempty"`
}

// SystemMetrics is the aggregate accuracy snapshot. Each metrics_update
// replaces the previous snapshot wholesale; no history is retained.
type SystemMetrics struct {
	OverallAccuracy       float64 `json:"overall_accuracy"`
	TotalSignals          int     `json:"total_signals"`
	SuccessfulPredictions int     `json:"successful_predictions"`
	AverageConfidence     float64 `json:"average_confidence"`
	MarketSentiment       string  `json:"market_sentiment"` // bullish, bearish, neutral
}

// MarketData is the per-symbol market context sent on the monitor channel.
type MarketData struct {
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	Sentiment  string  `json:"sentiment"`
}

// MonitoringStats is the companion monitor's aggregate counters.
type MonitoringStats struct {
	TotalSignals      int     `json:"total_signals"`
	ActiveSignals     int     `json:"active_signals"`
	SuccessfulSignals int     `json:"successful_signals"`
	FailedSignals     int     `json:"failed_signals"`
	AccuracyRate      float64 `json:"accuracy_rate"`
	AverageConfidence float64 `json:"average_confidence"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
}

// ConnState describes the stream connection lifecycle.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)
