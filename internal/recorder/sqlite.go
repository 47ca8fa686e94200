package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the run journal to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers do not block the journal writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT,
			start_date  TEXT,
			end_date    TEXT,
			status      TEXT NOT NULL,
			error_kind  TEXT,
			bars        INTEGER,
			dropped     INTEGER,
			duplicates  INTEGER,
			slope       REAL,
			intercept   REAL,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON pipeline_runs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON pipeline_runs(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO pipeline_runs
		(run_id, timestamp, symbol, start_date, end_date, status, error_kind,
		 bars, dropped, duplicates, slope, intercept, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, ts.Unix(), rec.Symbol, rec.Start, rec.End, rec.Status, rec.ErrorKind,
		rec.Bars, rec.Dropped, rec.Duplicates,
		nullable(rec.Slope), nullable(rec.Intercept),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit journal entries, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT run_id, timestamp, symbol, start_date, end_date, status, error_kind,
		bars, dropped, duplicates, slope, intercept, duration_ms
		FROM pipeline_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			rec       RunRecord
			ts, durMs int64
			slope     sql.NullFloat64
			intercept sql.NullFloat64
		)
		if err := rows.Scan(&rec.RunID, &ts, &rec.Symbol, &rec.Start, &rec.End, &rec.Status, &rec.ErrorKind,
			&rec.Bars, &rec.Dropped, &rec.Duplicates, &slope, &intercept, &durMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.Duration = time.Duration(durMs) * time.Millisecond
		if slope.Valid {
			rec.Slope = &slope.Float64
		}
		if intercept.Valid {
			rec.Intercept = &intercept.Float64
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
