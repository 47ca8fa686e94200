// Package server hosts the pipeline over HTTP and a websocket trigger stream.
package server

import (
	"net/http"
	"time"

	"PriceLens/internal/metrics"
	"PriceLens/internal/pipeline"
	"PriceLens/internal/recorder"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options wires a Server. Runner is required.
type Options struct {
	Runner        pipeline.Runner
	Recorder      recorder.Recorder
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	DefaultSymbol string
	LookbackDays  int
	Logger        *zap.Logger
	Now           func() time.Time
}

type Server struct {
	router *gin.Engine
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.DefaultSymbol == "" {
		opts.DefaultSymbol = "AAPL"
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts, logger: opts.Logger}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(Logger(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/views", s.getViews)
		api.GET("/runs", s.getRuns)
		api.GET("/stream", s.stream)
	}
	return router
}
