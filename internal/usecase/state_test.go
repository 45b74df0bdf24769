package usecase

import (
	"testing"

	"SignalWatch/internal/domain/models"
)

func mustEnv(t *testing.T, frame string) *models.Envelope {
	t.Helper()
	env, err := models.DecodeEnvelope([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestMetricsReplacedWholesale(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"metrics_update","data":{"overall_accuracy":50.0,"total_signals":10,"successful_predictions":5,"average_confidence":60.0,"market_sentiment":"neutral"}}`))
	st.OnMessage(mustEnv(t, `{"type":"metrics_update","data":{"overall_accuracy":87.0,"total_signals":100,"successful_predictions":87,"average_confidence":92.0,"market_sentiment":"bullish"}}`))

	m := st.Metrics()
	if m == nil {
		t.Fatal("expected metrics snapshot")
	}
	if m.OverallAccuracy != 87.0 || m.TotalSignals != 100 || m.SuccessfulPredictions != 87 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.AverageConfidence != 92.0 || m.MarketSentiment != "bullish" {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestSignalUpsertKeepsPosition(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long","current_price":46000}}`))
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT","direction":"short","current_price":3200}}`))
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long","current_price":47000}}`))

	signals := st.Signals()
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].ID != 1 || signals[1].ID != 2 {
		t.Fatalf("insertion order broken: %d, %d", signals[0].ID, signals[1].ID)
	}
	if signals[0].CurrentPrice != 47000 {
		t.Fatalf("upsert did not replace, price %v", signals[0].CurrentPrice)
	}
}

func TestSignalUpsertReplacesWholesale(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":7,"symbol":"BTCUSDT","direction":"long","current_price":46000,"leverage":10,"margin_mode":"ISOLATED"}}`))
	// Replacement without the futures fields clears them.
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":7,"symbol":"BTCUSDT","direction":"long","current_price":46500}}`))

	s, ok := st.Signal(7)
	if !ok {
		t.Fatal("signal 7 not tracked")
	}
	if s.Leverage != 0 || s.MarginMode != "" {
		t.Fatalf("expected wholesale replacement, got %+v", s)
	}
}

func TestSignalsUpdateResetsSet(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT"}}`))
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT"}}`))
	st.OnMessage(mustEnv(t, `{"type":"signals_update","signals":[{"id":3,"symbol":"SOLUSDT"},{"id":4,"symbol":"XRPUSDT"}]}`))

	signals := st.Signals()
	if len(signals) != 2 || signals[0].ID != 3 || signals[1].ID != 4 {
		t.Fatalf("expected wholesale reset to [3 4], got %+v", signals)
	}
	if _, ok := st.Signal(1); ok {
		t.Fatal("signal 1 survived signals_update")
	}
}

func TestMarketDataReplaced(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"market_data","data":{"BTCUSDT":{"volatility":0.5,"volume":100,"sentiment":"bullish"},"ETHUSDT":{"volatility":0.7,"volume":50,"sentiment":"neutral"}}}`))
	st.OnMessage(mustEnv(t, `{"type":"market_data","data":{"BTCUSDT":{"volatility":0.6,"volume":120,"sentiment":"bullish"}}}`))

	market := st.Market()
	if len(market) != 1 {
		t.Fatalf("expected previous map dropped, got %d entries", len(market))
	}
	if market["BTCUSDT"].Volatility != 0.6 {
		t.Fatalf("unexpected market data %+v", market["BTCUSDT"])
	}
}

func TestStatsReplaced(t *testing.T) {
	st := NewDashboardState(nil, nil)

	if st.Stats() != nil {
		t.Fatal("expected nil stats before first update")
	}
	st.OnMessage(mustEnv(t, `{"type":"stats_update","stats":{"total_signals":10,"active_signals":4,"accuracy_rate":71.5}}`))

	s := st.Stats()
	if s == nil || s.TotalSignals != 10 || s.ActiveSignals != 4 || s.AccuracyRate != 71.5 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBadPayloadLeavesStateUntouched(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT"}}`))
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":"not an object"}`))
	st.OnMessage(mustEnv(t, `{"type":"metrics_update","data":[1,2,3]}`))

	if len(st.Signals()) != 1 {
		t.Fatalf("bad payload altered signal set: %+v", st.Signals())
	}
	if st.Metrics() != nil {
		t.Fatal("bad payload produced a metrics snapshot")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	st := NewDashboardState(nil, nil)

	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT","current_price":3200}}`))
	st.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","current_price":46000}}`))
	st.OnMessage(mustEnv(t, `{"type":"stats_update","stats":{"total_signals":2}}`))

	snap := st.Snapshot()

	restored := NewDashboardState(nil, nil)
	restored.Restore(snap)

	signals := restored.Signals()
	if len(signals) != 2 || signals[0].ID != 2 || signals[1].ID != 1 {
		t.Fatalf("restore lost insertion order: %+v", signals)
	}
	if restored.Stats() == nil || restored.Stats().TotalSignals != 2 {
		t.Fatalf("restore lost stats: %+v", restored.Stats())
	}

	// Live updates after restore overwrite as usual.
	restored.OnMessage(mustEnv(t, `{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT","current_price":3300}}`))
	s, _ := restored.Signal(2)
	if s.CurrentPrice != 3300 {
		t.Fatalf("update after restore not applied: %+v", s)
	}
}
