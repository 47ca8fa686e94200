// Package pipeline runs the fetch, validate and aggregate sequence that turns
// a symbol and date range into the three presentation views.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"PriceLens/internal/collector"
	"PriceLens/internal/metrics"
	"PriceLens/internal/model"
	"PriceLens/internal/recorder"
	"PriceLens/internal/series"
	"PriceLens/internal/views"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is a pipeline run's position in its state machine.
type State string

const (
	StateIdle        State = "IDLE"
	StateFetching    State = "FETCHING"
	StateValidating  State = "VALIDATING"
	StateAggregating State = "AGGREGATING"
	StateReady       State = "READY"
	StateFailed      State = "FAILED"
)

const defaultFetchTimeout = 30 * time.Second

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^=\-]{1,15}$`)

// Input is one snapshot of the user's selection.
type Input struct {
	Symbol string     `json:"symbol"`
	Start  model.Date `json:"start"`
	End    model.Date `json:"end"`
}

// Observer is told about every state transition of every run.
type Observer func(runID string, from, to State)

// Config wires a Controller. Only Source is required.
type Config struct {
	Source       collector.Source
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Recorder     recorder.Recorder
	FetchTimeout time.Duration
	Observer     Observer
	Now          func() time.Time
}

type builders struct {
	candlestick func(string, model.Series) model.CandlestickView
	volume      func(string, model.Series) model.VolumeView
	scatter     func(string, model.Series) model.AnnotatedScatterView
}

// Controller executes pipeline runs. It is safe for concurrent use.
type Controller struct {
	source       collector.Source
	logger       *zap.Logger
	metrics      *metrics.Metrics
	recorder     recorder.Recorder
	fetchTimeout time.Duration
	observer     Observer
	now          func() time.Time
	build        builders
}

func NewController(cfg Config) *Controller {
	c := &Controller{
		source:       cfg.Source,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		recorder:     cfg.Recorder,
		fetchTimeout: cfg.FetchTimeout,
		observer:     cfg.Observer,
		now:          cfg.Now,
		build: builders{
			candlestick: views.BuildCandlestick,
			volume:      views.BuildVolume,
			scatter:     views.BuildScatter,
		},
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.recorder == nil {
		c.recorder = recorder.NewNoopRecorder()
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// run tracks one invocation.
type run struct {
	c       *Controller
	id      string
	state   State
	started time.Time
	result  series.Result
}

func (r *run) transition(to State) {
	r.c.logger.Debug("pipeline transition",
		zap.String("run_id", r.id),
		zap.String("from", string(r.state)),
		zap.String("to", string(to)))
	if r.c.observer != nil {
		r.c.observer(r.id, r.state, to)
	}
	r.state = to
}

// Run executes one invocation. It never panics and never returns an error:
// every outcome is described by the returned triple's Status and Error.
func (c *Controller) Run(ctx context.Context, in Input) model.Views {
	r := &run{c: c, id: uuid.NewString(), state: StateIdle, started: c.now()}

	symbol, dr, err := normalize(in)
	if err != nil {
		return c.finish(r, symbol, dr, model.Views{}, err)
	}

	r.transition(StateFetching)
	fetchStart := time.Now()
	raw, err := c.fetch(ctx, symbol, dr)
	c.metrics.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		return c.finish(r, symbol, dr, model.Views{}, err)
	}

	r.transition(StateValidating)
	res, err := series.Validate(raw)
	r.result = res
	c.metrics.AddDropped(res.Dropped)
	if res.Dropped > 0 {
		c.logger.Warn("dropped malformed rows",
			zap.String("run_id", r.id),
			zap.String("symbol", symbol),
			zap.Int("dropped", res.Dropped))
	}
	if err != nil {
		return c.finish(r, symbol, dr, model.Views{}, err)
	}

	r.transition(StateAggregating)
	v, err := c.aggregate(symbol, res.Series)
	if err != nil {
		return c.finish(r, symbol, dr, model.Views{}, err)
	}
	v.Symbol = symbol
	v.Range = dr
	v.Status = model.StatusReady
	return c.finish(r, symbol, dr, v, nil)
}

func normalize(in Input) (string, model.DateRange, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	dr := model.DateRange{Start: in.Start, End: in.End}
	if symbol == "" {
		return symbol, dr, fmt.Errorf("%w: symbol is required", model.ErrInvalidInput)
	}
	if !symbolPattern.MatchString(symbol) {
		return symbol, dr, fmt.Errorf("%w: malformed symbol %q", model.ErrInvalidInput, symbol)
	}
	if err := dr.Validate(); err != nil {
		return symbol, dr, err
	}
	return symbol, dr, nil
}

type fetchResult struct {
	bars []model.Bar
	err  error
}

// fetch bounds the source call by the fetch timeout even if the source ignores its context.
func (c *Controller) fetch(ctx context.Context, symbol string, dr model.DateRange) ([]model.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchResult{err: fmt.Errorf("source panicked: %v", p)}
			}
		}()
		bars, err := c.source.FetchDaily(ctx, symbol, dr)
		done <- fetchResult{bars: bars, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && !errors.Is(res.err, model.ErrRetrievalFailure) {
			return nil, fmt.Errorf("%w: %w", model.ErrRetrievalFailure, res.err)
		}
		return res.bars, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: fetch %s: %w", model.ErrRetrievalFailure, symbol, ctx.Err())
	}
}

var errPanic = errors.New("panic")

func recoverInto(err *error, name string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%w in %s builder: %v", errPanic, name, p)
	}
}

// aggregate fans the three builders out and assembles the triple once all succeed.
func (c *Controller) aggregate(symbol string, s model.Series) (model.Views, error) {
	var (
		g       errgroup.Group
		candle  model.CandlestickView
		volume  model.VolumeView
		scatter model.AnnotatedScatterView
	)
	g.Go(func() (err error) {
		defer recoverInto(&err, "candlestick")
		candle = c.build.candlestick(symbol, s)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverInto(&err, "volume")
		volume = c.build.volume(symbol, s)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverInto(&err, "scatter")
		scatter = c.build.scatter(symbol, s)
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Views{}, err
	}
	return model.Views{Candlestick: candle, Volume: volume, Scatter: scatter}, nil
}

// finish stamps the triple, moves to a terminal state and emits side effects.
func (c *Controller) finish(r *run, symbol string, dr model.DateRange, v model.Views, err error) model.Views {
	if err != nil {
		v = model.FailedViews(symbol, dr, err)
	}
	v.RunID = r.id
	v.GeneratedAt = c.now().UTC()

	if v.Status == model.StatusFailed {
		r.transition(StateFailed)
	} else {
		r.transition(StateReady)
	}

	elapsed := c.now().Sub(r.started)
	c.metrics.ObserveRun(string(v.Status))

	fields := []zap.Field{
		zap.String("run_id", r.id),
		zap.String("symbol", symbol),
		zap.String("range", dr.String()),
		zap.String("status", string(v.Status)),
		zap.Int("bars", len(r.result.Series)),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case v.Status == model.StatusFailed && v.Error.Kind == model.KindRetrievalFailure:
		c.logger.Warn("pipeline run failed", append(fields, zap.Error(err))...)
	case v.Status == model.StatusFailed:
		c.logger.Info("pipeline run rejected", append(fields, zap.Error(err))...)
	default:
		c.logger.Info("pipeline run completed", fields...)
	}

	rec := &recorder.RunRecord{
		RunID:      r.id,
		Timestamp:  r.started,
		Symbol:     symbol,
		Start:      dr.Start.String(),
		End:        dr.End.String(),
		Status:     string(v.Status),
		ErrorKind:  string(model.KindOf(err)),
		Bars:       len(r.result.Series),
		Dropped:    r.result.Dropped,
		Duplicates: r.result.Duplicates,
		Duration:   elapsed,
	}
	if l := v.Scatter.Line; l != nil {
		slope, intercept := l.Slope, l.Intercept
		rec.Slope, rec.Intercept = &slope, &intercept
	}
	if rerr := c.recorder.RecordRun(rec); rerr != nil {
		c.logger.Warn("record run failed", zap.String("run_id", r.id), zap.Error(rerr))
	}
	return v
}
