package recorder

import "time"

// RunRecord is one pipeline invocation in the run journal. It holds no price data.
type RunRecord struct {
	RunID      string
	Timestamp  time.Time
	Symbol     string
	Start      string
	End        string
	Status     string
	ErrorKind  string
	Bars       int
	Dropped    int
	Duplicates int
	Slope      *float64 // nil when no regression line was fitted
	Intercept  *float64
	Duration   time.Duration
}

// Recorder persists the run journal for later analysis.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecentRuns(limit int) ([]RunRecord, error)
	Close() error
}
