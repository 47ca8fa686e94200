package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"PriceLens/internal/scheduler"
	"PriceLens/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var warmOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the cache warm-up scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(root.configPath, warmOnStart)
		},
	}
	cmd.Flags().BoolVar(&warmOnStart, "warm", false, "Run the cache warm-up once at startup")
	return cmd
}

func runServe(configPath string, warmOnStart bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := createLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, a.controller, cfg.Schedule.Watchlist, cfg.Pipeline.DefaultLookbackDays, logger.Named("scheduler"))
	if cfg.Schedule.WarmupCron != "" {
		if err := sched.RegisterWarmup(cfg.Schedule.WarmupCron); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()
	if warmOnStart {
		go sched.RunNow()
	}

	s := server.New(server.Options{
		Runner:        a.controller,
		Recorder:      a.recorder,
		Metrics:       a.metrics,
		Gatherer:      a.registry,
		DefaultSymbol: cfg.Pipeline.DefaultSymbol,
		LookbackDays:  cfg.Pipeline.DefaultLookbackDays,
		Logger:        logger.Named("http"),
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		return err
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited properly")
	return nil
}
