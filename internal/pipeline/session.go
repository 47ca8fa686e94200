package pipeline

import (
	"context"
	"sync"

	"PriceLens/internal/metrics"
	"PriceLens/internal/model"
)

// Runner executes one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, in Input) model.Views
}

var _ Runner = (*Controller)(nil)

// Sink receives each applied triple.
type Sink func(model.Views)

// Session applies the results of overlapping triggers for a single consumer.
// A result is applied only if it was triggered after the last applied one;
// superseded results are discarded.
type Session struct {
	runner  Runner
	sink    Sink
	metrics *metrics.Metrics

	mu          sync.Mutex
	next        uint64
	lastApplied uint64
}

func NewSession(runner Runner, sink Sink, m *metrics.Metrics) *Session {
	return &Session{runner: runner, sink: sink, metrics: m}
}

// Begin reserves the next trigger position. Callers that run the pipeline
// asynchronously must call Begin in trigger order and pass the result to Complete.
func (s *Session) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Complete runs the pipeline for a trigger reserved with Begin and reports
// whether its result reached the sink.
func (s *Session) Complete(ctx context.Context, seq uint64, in Input) bool {
	v := s.runner.Run(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.lastApplied {
		s.metrics.IncStale()
		return false
	}
	s.lastApplied = seq
	s.sink(v)
	return true
}

// Trigger runs the pipeline for in and reports whether its result reached the sink.
func (s *Session) Trigger(ctx context.Context, in Input) bool {
	return s.Complete(ctx, s.Begin(), in)
}
