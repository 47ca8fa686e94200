package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PriceLens/internal/collector"
	"PriceLens/internal/metrics"
	"PriceLens/internal/model"
	"PriceLens/internal/recorder"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan(day int) model.Date { return model.NewDate(2024, time.January, day) }

func twoBars() []model.Bar {
	return []model.Bar{
		{Date: jan(2), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Date: jan(3), Open: 11, High: 13, Low: 10, Close: 12, Volume: 150},
	}
}

type memRecorder struct {
	mu   sync.Mutex
	runs []recorder.RunRecord
}

func (m *memRecorder) RecordRun(rec *recorder.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *rec)
	return nil
}

func (m *memRecorder) RecentRuns(int) ([]recorder.RunRecord, error) { return m.runs, nil }
func (m *memRecorder) Close() error                                 { return nil }

func newController(src collector.Source) *Controller {
	return NewController(Config{Source: src, FetchTimeout: time.Second})
}

func assertWellFormed(t *testing.T, v model.Views) {
	t.Helper()
	assert.NotEmpty(t, v.RunID)
	assert.False(t, v.GeneratedAt.IsZero())
	assert.NotNil(t, v.Candlestick.Points)
	assert.NotNil(t, v.Volume.Points)
	assert.NotNil(t, v.Scatter.Points)
	assert.NotEmpty(t, v.Candlestick.Title)
	assert.Equal(t, model.ClosingPriceLabel, v.Scatter.YLabel)
}

func TestRun_TwoBarScenario(t *testing.T) {
	src := &collector.MockSource{Bars: twoBars()}
	v := newController(src).Run(context.Background(), Input{Symbol: "aapl ", Start: jan(1), End: jan(5)})

	assertWellFormed(t, v)
	assert.Equal(t, model.StatusReady, v.Status)
	assert.Nil(t, v.Error)
	assert.Equal(t, "AAPL", v.Symbol, "symbol is trimmed and upper-cased")
	assert.Equal(t, "AAPL Trends", v.Candlestick.Title)
	assert.Equal(t, "AAPL Volume", v.Volume.Title)
	assert.Equal(t, "AAPL Closing Price", v.Scatter.Title)
	assert.Len(t, v.Candlestick.Points, 2)
	assert.Len(t, v.Volume.Points, 2)

	require.NotNil(t, v.Scatter.Line)
	assert.InDelta(t, 1.0, v.Scatter.Line.Slope, 1e-12)
	assert.InDelta(t, 11.0, v.Scatter.Line.At(jan(2)), 1e-9)
	assert.InDelta(t, 12.0, v.Scatter.Line.At(jan(3)), 1e-9)
}

func TestRun_InvalidInputNeverCallsSource(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"empty symbol", Input{Symbol: "", Start: jan(1), End: jan(5)}},
		{"blank symbol", Input{Symbol: "   ", Start: jan(1), End: jan(5)}},
		{"malformed symbol", Input{Symbol: "AA PL", Start: jan(1), End: jan(5)}},
		{"symbol too long", Input{Symbol: "ABCDEFGHIJKLMNOP", Start: jan(1), End: jan(5)}},
		{"start after end", Input{Symbol: "AAPL", Start: jan(5), End: jan(1)}},
		{"missing start", Input{Symbol: "AAPL", End: jan(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &collector.MockSource{Bars: twoBars()}
			v := newController(src).Run(context.Background(), tt.in)

			assertWellFormed(t, v)
			assert.Equal(t, model.StatusFailed, v.Status)
			require.NotNil(t, v.Error)
			assert.Equal(t, model.KindInvalidInput, v.Error.Kind)
			assert.Equal(t, 0, src.Calls())
		})
	}
}

func TestRun_StartEqualsEnd(t *testing.T) {
	src := &collector.MockSource{}
	v := newController(src).Run(context.Background(), Input{Symbol: "AAPL", Start: jan(2), End: jan(2)})

	assertWellFormed(t, v)
	assert.Equal(t, model.StatusReady, v.Status)
	assert.Len(t, v.Scatter.Points, 1)
	assert.Nil(t, v.Scatter.Line)
}

func TestRun_NoTradingDaysIsEmpty(t *testing.T) {
	src := &collector.MockSource{Bars: []model.Bar{}}
	v := newController(src).Run(context.Background(), Input{Symbol: "AAPL", Start: jan(6), End: jan(7)})

	assertWellFormed(t, v)
	assert.Equal(t, model.StatusEmpty, v.Status)
	require.NotNil(t, v.Error)
	assert.Equal(t, model.KindEmptySeries, v.Error.Kind)
	assert.Empty(t, v.Candlestick.Points)
	assert.Nil(t, v.Scatter.Line)
	assert.Equal(t, 1, src.Calls())
}

func TestRun_SourceFailure(t *testing.T) {
	src := &collector.MockSource{Err: errors.New("connection refused")}
	v := newController(src).Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})

	assertWellFormed(t, v)
	assert.Equal(t, model.StatusFailed, v.Status)
	require.NotNil(t, v.Error)
	assert.Equal(t, model.KindRetrievalFailure, v.Error.Kind)
	assert.Contains(t, v.Error.Message, "connection refused")
}

type stuckSource struct{ release chan struct{} }

func (s *stuckSource) Name() string { return "stuck" }

// FetchDaily ignores its context.
func (s *stuckSource) FetchDaily(context.Context, string, model.DateRange) ([]model.Bar, error) {
	<-s.release
	return twoBars(), nil
}

func TestRun_FetchTimeout(t *testing.T) {
	src := &stuckSource{release: make(chan struct{})}
	defer close(src.release)
	c := NewController(Config{Source: src, FetchTimeout: 20 * time.Millisecond})

	v := c.Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})
	assert.Equal(t, model.StatusFailed, v.Status)
	require.NotNil(t, v.Error)
	assert.Equal(t, model.KindRetrievalFailure, v.Error.Kind)
}

type panicSource struct{}

func (panicSource) Name() string { return "panic" }
func (panicSource) FetchDaily(context.Context, string, model.DateRange) ([]model.Bar, error) {
	panic("boom")
}

func TestRun_SourcePanicIsRecovered(t *testing.T) {
	var v model.Views
	assert.NotPanics(t, func() {
		v = newController(panicSource{}).Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})
	})
	assertWellFormed(t, v)
	assert.Equal(t, model.StatusFailed, v.Status)
}

func TestRun_NilSourceFailsRetrieval(t *testing.T) {
	var v model.Views
	assert.NotPanics(t, func() {
		v = NewController(Config{}).Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})
	})
	assertWellFormed(t, v)
	assert.Equal(t, model.StatusFailed, v.Status)
	require.NotNil(t, v.Error)
	assert.Equal(t, model.KindRetrievalFailure, v.Error.Kind)
}

func TestRun_BuilderPanicFails(t *testing.T) {
	c := newController(&collector.MockSource{Bars: twoBars()})
	c.build.scatter = func(string, model.Series) model.AnnotatedScatterView { panic("bad fit") }

	v := c.Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})
	assertWellFormed(t, v)
	assert.Equal(t, model.StatusFailed, v.Status)
	require.NotNil(t, v.Error)
	assert.Equal(t, model.KindInternal, v.Error.Kind)
	assert.Empty(t, v.Candlestick.Points, "partial results are never emitted")
}

func TestRun_Idempotent(t *testing.T) {
	src := &collector.MockSource{Price: 150}
	c := newController(src)
	in := Input{Symbol: "MSFT", Start: model.NewDate(2023, time.June, 1), End: model.NewDate(2023, time.December, 31)}

	a := c.Run(context.Background(), in)
	b := c.Run(context.Background(), in)

	require.Equal(t, model.StatusReady, a.Status)
	assert.NotEqual(t, a.RunID, b.RunID)
	ignore := cmpopts.IgnoreFields(model.Views{}, "RunID", "GeneratedAt")
	if diff := cmp.Diff(a, b, ignore); diff != "" {
		t.Errorf("repeated run differs (-first +second):\n%s", diff)
	}
}

func TestRun_TransitionsAndSideEffects(t *testing.T) {
	var mu sync.Mutex
	var states []State
	observer := func(_ string, _, to State) {
		mu.Lock()
		states = append(states, to)
		mu.Unlock()
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := &memRecorder{}

	bad := twoBars()[0]
	bad.Date = jan(4)
	bad.Close = math.NaN()
	src := &collector.MockSource{Bars: append(twoBars(), bad)}
	c := NewController(Config{Source: src, Metrics: m, Recorder: rec, Observer: observer})

	v := c.Run(context.Background(), Input{Symbol: "AAPL", Start: jan(1), End: jan(5)})
	require.Equal(t, model.StatusReady, v.Status)

	assert.Equal(t, []State{StateFetching, StateValidating, StateAggregating, StateReady}, states)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("READY")))

	require.Len(t, rec.runs, 1)
	got := rec.runs[0]
	assert.Equal(t, v.RunID, got.RunID)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "READY", got.Status)
	assert.Equal(t, "", got.ErrorKind)
	assert.Equal(t, 2, got.Bars)
	assert.Equal(t, 1, got.Dropped)
	require.NotNil(t, got.Slope)
	assert.InDelta(t, 1.0, *got.Slope, 1e-12)
}

func TestRun_FailedTransition(t *testing.T) {
	var states []State
	c := NewController(Config{
		Source:   &collector.MockSource{},
		Observer: func(_ string, _, to State) { states = append(states, to) },
	})
	c.Run(context.Background(), Input{Symbol: "", Start: jan(1), End: jan(5)})
	assert.Equal(t, []State{StateFailed}, states)
}
