package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalWatch/internal/domain/models"
)

type fakeSink struct {
	name string
	mu   sync.Mutex
	envs []*models.Envelope
	fail int // fail this many consumes before succeeding
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Consume(_ context.Context, env *models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("transient")
	}
	s.envs = append(s.envs, env)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordMessage(string, string)  {}
func (m *countingMetrics) RecordReconnect(string)        {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) SetTrackedSignals(int)         {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *countingMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func env(t *testing.T, frame string) *models.Envelope {
	t.Helper()
	e, err := models.DecodeEnvelope([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return e
}

func TestPipelineFansOutToAllSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	p := NewSinkPipeline(nil, a, b)
	p.Start(context.Background())
	defer p.Stop()

	p.OnMessage(env(t, `{"type":"signal_update","data":{"id":1}}`))
	p.OnMessage(env(t, `{"type":"stats_update","stats":{"total_signals":1}}`))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.count() == 2 && b.count() == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fan-out incomplete: a=%d b=%d", a.count(), b.count())
}

func TestPipelineDropsWhenBufferFull(t *testing.T) {
	m := &countingMetrics{}
	p := NewSinkPipeline(m, &fakeSink{name: "slow"}).Apply(WithBufferSize(1))
	// Not started: nothing drains, second message must drop.

	p.OnMessage(env(t, `{"type":"stats_update","stats":{}}`))
	p.OnMessage(env(t, `{"type":"stats_update","stats":{}}`))

	if got := m.errCount("sink_buffer_full"); got != 1 {
		t.Fatalf("expected 1 drop, got %d", got)
	}
}

func TestPipelineDropsFailedEnvelopeAndBacksOff(t *testing.T) {
	m := &countingMetrics{}
	s := &fakeSink{name: "flaky", fail: 1}
	p := NewSinkPipeline(m, s)
	p.Start(context.Background())
	defer p.Stop()

	p.OnMessage(env(t, `{"type":"signal_update","data":{"id":1}}`))
	p.OnMessage(env(t, `{"type":"signal_update","data":{"id":2}}`))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() == 1 && m.errCount("sink_flaky") == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected one failed and one delivered consume: delivered=%d errors=%d",
		s.count(), m.errCount("sink_flaky"))
}

func TestPipelineStartStopIdempotent(t *testing.T) {
	p := NewSinkPipeline(nil, &fakeSink{name: "x"})
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
