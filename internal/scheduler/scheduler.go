package scheduler

import (
	"context"
	"fmt"
	"time"

	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the cache warm-up job on a cron schedule.
type Scheduler struct {
	Cron      *cron.Cron
	Runner    pipeline.Runner
	Watchlist []string
	Lookback  int // days
	Ctx       context.Context

	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner pipeline.Runner, watchlist []string, lookbackDays int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Runner:    runner,
		Watchlist: watchlist,
		Lookback:  lookbackDays,
		Ctx:       ctx,
		now:       time.Now,
		logger:    logger,
	}
}

// RegisterWarmup registers the warm-up task. Specs include a seconds field.
func (s *Scheduler) RegisterWarmup(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.warmupTask); err != nil {
		return fmt.Errorf("register warmup task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running warm-up to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the warm-up immediately and returns the triple for each watchlist symbol.
func (s *Scheduler) RunNow() []model.Views {
	return s.warmup()
}

func (s *Scheduler) warmupTask() {
	s.warmup()
}

func (s *Scheduler) warmup() []model.Views {
	end := model.DateOf(s.now())
	in := pipeline.Input{Start: end.AddDays(-s.Lookback), End: end}
	s.logger.Info("running warmup", zap.Int("symbols", len(s.Watchlist)), zap.String("range", in.Start.String()+".."+in.End.String()))

	results := make([]model.Views, 0, len(s.Watchlist))
	for _, symbol := range s.Watchlist {
		if err := s.Ctx.Err(); err != nil {
			s.logger.Warn("warmup interrupted", zap.Error(err))
			break
		}
		in.Symbol = symbol
		v := s.Runner.Run(s.Ctx, in)
		if v.Status == model.StatusFailed {
			s.logger.Warn("warmup failed",
				zap.String("symbol", symbol),
				zap.String("kind", string(v.Error.Kind)),
				zap.String("error", v.Error.Message))
		}
		results = append(results, v)
	}
	return results
}
