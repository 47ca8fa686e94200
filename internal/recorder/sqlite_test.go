package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	slope, intercept := 0.25, -4800.5
	base := time.Unix(1704200000, 0)
	require.NoError(t, r.RecordRun(&RunRecord{
		RunID: "a", Timestamp: base, Symbol: "AAPL", Start: "2024-01-01", End: "2024-02-01",
		Status: "READY", Bars: 21, Dropped: 1, Slope: &slope, Intercept: &intercept,
		Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, r.RecordRun(&RunRecord{
		RunID: "b", Timestamp: base.Add(time.Minute), Symbol: "NOSUCH", Start: "2024-01-01", End: "2024-02-01",
		Status: "FAILED", ErrorKind: "RETRIEVAL_FAILURE",
	}))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "b", runs[0].RunID, "newest first")
	assert.Equal(t, "RETRIEVAL_FAILURE", runs[0].ErrorKind)
	assert.Nil(t, runs[0].Slope)

	assert.Equal(t, "a", runs[1].RunID)
	assert.Equal(t, 21, runs[1].Bars)
	assert.Equal(t, 1, runs[1].Dropped)
	require.NotNil(t, runs[1].Slope)
	assert.Equal(t, slope, *runs[1].Slope)
	assert.Equal(t, intercept, *runs[1].Intercept)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, base.Unix(), runs[1].Timestamp.Unix())

	limited, err := r.RecentRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteRecorder_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	r, err := NewSQLiteRecorder(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.RecordRun(&RunRecord{RunID: "x", Status: "EMPTY", ErrorKind: "EMPTY_SERIES"}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()
	runs, err := r.RecentRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "EMPTY", runs[0].Status)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRun(&RunRecord{RunID: "x"}))
	runs, err := r.RecentRuns(5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, r.Close())
}
