package server

import (
	"fmt"
	"net/http"
	"strconv"

	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// parseInput builds a pipeline input from raw request values. Empty dates
// fall back to a lookback window ending today. The symbol is passed through
// as given, so an empty one fails as invalid input.
func (s *Server) parseInput(symbol, start, end string) (pipeline.Input, error) {
	in := pipeline.Input{Symbol: symbol}

	var err error
	if end != "" {
		if in.End, err = model.ParseDate(end); err != nil {
			return in, fmt.Errorf("end: %w", err)
		}
	} else {
		in.End = model.DateOf(s.opts.Now())
	}
	if start != "" {
		if in.Start, err = model.ParseDate(start); err != nil {
			return in, fmt.Errorf("start: %w", err)
		}
	} else {
		in.Start = in.End.AddDays(-s.opts.LookbackDays)
	}
	return in, nil
}

// getViews handles GET /api/v1/views. Only malformed dates are rejected here;
// every other outcome is described by the returned triple. An omitted symbol
// parameter uses the default symbol.
func (s *Server) getViews(c *gin.Context) {
	symbol, ok := c.GetQuery("symbol")
	if !ok {
		symbol = s.opts.DefaultSymbol
	}
	in, err := s.parseInput(symbol, c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.opts.Runner.Run(c.Request.Context(), in))
}

type runResponse struct {
	RunID      string   `json:"run_id"`
	Timestamp  int64    `json:"timestamp"`
	Symbol     string   `json:"symbol"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Status     string   `json:"status"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Bars       int      `json:"bars"`
	Dropped    int      `json:"dropped"`
	Duplicates int      `json:"duplicates"`
	Slope      *float64 `json:"slope"`
	Intercept  *float64 `json:"intercept"`
	DurationMS int64    `json:"duration_ms"`
}

// getRuns handles GET /api/v1/runs and lists the most recent journal entries.
func (s *Server) getRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.opts.Recorder.RecentRuns(limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	out := make([]runResponse, len(runs))
	for i, r := range runs {
		out[i] = runResponse{
			RunID:      r.RunID,
			Timestamp:  r.Timestamp.Unix(),
			Symbol:     r.Symbol,
			Start:      r.Start,
			End:        r.End,
			Status:     r.Status,
			ErrorKind:  r.ErrorKind,
			Bars:       r.Bars,
			Dropped:    r.Dropped,
			Duplicates: r.Duplicates,
			Slope:      r.Slope,
			Intercept:  r.Intercept,
			DurationMS: r.Duration.Milliseconds(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}
