package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/shared/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(startedAt time.Time, label string) *pipeline.Result {
	return &pipeline.Result{
		DataType:    pipeline.ParseDataType(label),
		Label:       label,
		Routine:     pipeline.ParseDataType(label).String(),
		Trigger:     pipeline.TriggerUpload,
		RawPath:     "/data/raw/" + label + "_x_1.csv",
		StampedPath: "/data/processed/" + label + "_20240101_x.csv",
		RowsIn:      4,
		RowsOut:     3,
		Stats:       pipeline.Stats{DuplicatesRemoved: 1, NullsFilled: 2},
		Warnings:    []string{"first", "second"},
		StartedAt:   startedAt,
		Duration:    1500 * time.Millisecond,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, pipeline.Record{Result: sampleResult(base, "financial")}))
	require.NoError(t, s.Record(ctx, pipeline.Record{Result: sampleResult(base.Add(time.Hour), "market")}))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, "market", newest.Label)
	assert.Equal(t, "market", newest.DataType)
	assert.Equal(t, "upload", newest.Trigger)
	assert.Equal(t, "market_x_1.csv", newest.RawFile)
	assert.Equal(t, "market_20240101_x.csv", newest.ProcessedFile)
	assert.Equal(t, 4, newest.RowsIn)
	assert.Equal(t, 3, newest.RowsOut)
	assert.Equal(t, 1, newest.DuplicatesRemoved)
	assert.Equal(t, 2, newest.NullsFilled)
	assert.Equal(t, "first; second", newest.Warnings)
	assert.Equal(t, "success", newest.Outcome)
	assert.EqualValues(t, 1500, newest.DurationMS)
	assert.NotEmpty(t, newest.IngestionID)
	assert.True(t, base.Add(time.Hour).Equal(newest.IngestedAt))
}

func TestRecordFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &pipeline.Result{Label: "market", Routine: "market", Trigger: pipeline.TriggerNightly, RawPath: "/raw/m.csv"}
	require.NoError(t, s.Record(ctx, pipeline.Record{Result: res, Err: errors.New("disk full")}))

	entries, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Outcome)
	assert.Equal(t, "disk full", entries[0].Error)
	assert.Empty(t, entries[0].ProcessedFile)
	assert.False(t, entries[0].IngestedAt.IsZero())

	counts, err := s.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"error": 1}, counts)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, pipeline.Record{Result: sampleResult(base.Add(time.Duration(i)*time.Minute), "forecast")}))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	empty := openTestStore(t)
	entries, err = empty.Recent(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), pipeline.Record{Result: sampleResult(time.Now(), "market")}))
}

func TestStoreImplementsRecorder(t *testing.T) {
	var _ pipeline.Recorder = (*Store)(nil)
}

func TestDispatcherWritesLedger(t *testing.T) {
	s := openTestStore(t)
	root := t.TempDir()
	raw := testutil.WriteFile(t, filepath.Join(root, "raw"), "financial_a_1.csv", "date,amount\n2024-01-01,5\n")

	env := pipeline.Env{Now: testutil.FixedClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))}
	d := pipeline.NewDispatcher(env, pipeline.NewPublisher(filepath.Join(root, "processed"), env), pipeline.WithRecorder(s))

	_, err := d.Dispatch(pipeline.WithTrigger(context.Background(), pipeline.TriggerCLI), raw, "financial")
	require.NoError(t, err)

	entries, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cli", entries[0].Trigger)
	assert.Equal(t, "financial_20240201_financial_a_1.csv", entries[0].ProcessedFile)
}
