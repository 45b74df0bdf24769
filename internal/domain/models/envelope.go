package models

import (
	"encoding/json"
	"fmt"
)

// MessageType tags the wire envelope. The payload shape is fully
// determined by the tag; no cross-tag payload reuse.
type MessageType string

const (
	TypeSignalUpdate  MessageType = "signal_update"
	TypeMetricsUpdate MessageType = "metrics_update"
	TypeMarketData    MessageType = "market_data"
	TypeSignalsUpdate MessageType = "signals_update"
	TypeStatsUpdate   MessageType = "stats_update"
	TypeError         MessageType = "error"
)

// Envelope is the discriminated union carried on the wire. Payloads stay
// raw until a consumer asks for the typed form, so one bad payload does
// not poison the rest of the frame stream.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Signals json.RawMessage `json:"signals,omitempty"`
	Stats   json.RawMessage `json:"stats,omitempty"`
	Message string          `json:"message,omitempty"` // error frames only
}

// DecodeEnvelope parses a raw frame into an envelope.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type tag")
	}
	return &env, nil
}

// Signal decodes the payload of a signal_update envelope.
func (e *Envelope) Signal() (*TradingSignal, error) {
	var s TradingSignal
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, fmt.Errorf("signal payload: %w", err)
	}
	return &s, nil
}

// SystemMetrics decodes the payload of a metrics_update envelope.
func (e *Envelope) SystemMetrics() (*SystemMetrics, error) {
	var m SystemMetrics
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, fmt.Errorf("metrics payload: %w", err)
	}
	return &m, nil
}

// MarketData decodes the payload of a market_data envelope.
func (e *Envelope) MarketData() (map[string]MarketData, error) {
	md := make(map[string]MarketData)
	if err := json.Unmarshal(e.Data, &md); err != nil {
		return nil, fmt.Errorf("market_data payload: %w", err)
	}
	return md, nil
}

// SignalList decodes the payload of a signals_update envelope.
func (e *Envelope) SignalList() ([]TradingSignal, error) {
	var signals []TradingSignal
	if err := json.Unmarshal(e.Signals, &signals); err != nil {
		return nil, fmt.Errorf("signals payload: %w", err)
	}
	return signals, nil
}

// MonitoringStats decodes the payload of a stats_update envelope.
func (e *Envelope) MonitoringStats() (*MonitoringStats, error) {
	var s MonitoringStats
	if err := json.Unmarshal(e.Stats, &s); err != nil {
		return nil, fmt.Errorf("stats payload: %w", err)
	}
	return &s, nil
}
