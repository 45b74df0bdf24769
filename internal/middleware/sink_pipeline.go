package middleware

import (
	"context"
	"sync"
	"time"

	"SignalWatch/internal/domain/models"
	drepo "SignalWatch/internal/domain/repository"
)

// Sink consumes decoded envelopes downstream of the view state (Kafka
// relay, signal archive). Sinks may fail transiently; the pipeline drops
// the failed envelope for that sink and backs off before draining more,
// and drops on sustained pressure rather than stalling delivery to the
// reducer.
type Sink interface {
	Name() string
	Consume(ctx context.Context, env *models.Envelope) error
}

// SinkPipeline sits between the stream and the optional sinks. It
// implements repository.MessageHandler so it can be registered on the
// stream alongside the reducer, and hands envelopes to sinks from its
// own goroutine so a slow sink never blocks dispatch.
type SinkPipeline struct {
	sinks   []Sink
	metrics drepo.Metrics
	bufCh   chan *models.Envelope
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type PipelineOption func(*SinkPipeline)

// WithBufferSize sets the envelope buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *SinkPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Envelope, n)
		}
	}
}

// NewSinkPipeline creates a pipeline over the given sinks.
func NewSinkPipeline(metrics drepo.Metrics, sinks ...Sink) *SinkPipeline {
	p := &SinkPipeline{
		sinks:   sinks,
		metrics: metrics,
		bufCh:   make(chan *models.Envelope, 1000),
		stopCh:  make(chan struct{}),
	}
	return p
}

// Apply applies options; separate from the constructor so DI providers
// can configure a shared instance.
func (p *SinkPipeline) Apply(opts ...PipelineOption) *SinkPipeline {
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnMessage implements repository.MessageHandler. Non-blocking: drops
// with an error count when the buffer is full.
func (p *SinkPipeline) OnMessage(env *models.Envelope) {
	select {
	case p.bufCh <- env:
	default:
		p.recordError("sink_buffer_full")
	}
}

// Start launches the background drain goroutine.
func (p *SinkPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.drain(ctx)
}

// Stop stops the drain goroutine and waits for it to exit.
func (p *SinkPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}

func (p *SinkPipeline) drain(ctx context.Context) {
	defer p.wg.Done()

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case env := <-p.bufCh:
			if env == nil {
				continue
			}
			failed := false
			for _, s := range p.sinks {
				start := time.Now()
				if err := s.Consume(ctx, env); err != nil {
					failed = true
					p.recordError("sink_" + s.Name())
					continue
				}
				p.recordLatency("sink_"+s.Name(), time.Since(start).Seconds())
			}
			if failed {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				}
			} else {
				backoff = 50 * time.Millisecond
			}
		}
	}
}

func (p *SinkPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func (p *SinkPipeline) recordLatency(op string, seconds float64) {
	if p.metrics != nil {
		p.metrics.RecordLatency(op, seconds)
	}
}
