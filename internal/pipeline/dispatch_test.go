package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/shared/testutil"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (m *memoryRecorder) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) (*Dispatcher, string, string, *testutil.BufferedSlogHandler) {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	processed := filepath.Join(root, "processed")

	logger, handler := testutil.NewTestLogger(t)
	env := Env{Logger: logger, Now: testutil.FixedClock(publishNow)}
	return NewDispatcher(env, NewPublisher(processed, env), opts...), raw, processed, handler
}

func TestDispatchFinancial(t *testing.T) {
	rec := &memoryRecorder{}
	d, raw, processed, _ := newTestDispatcher(t, WithRecorder(rec))
	path := testutil.WriteFile(t, raw, "financial_q1_2024.csv", "date,amount\n2024-01-01,10\n2024-01-02,20\n2024-01-03,-5\n")

	ctx := WithTrigger(context.Background(), TriggerUpload)
	res, err := d.Dispatch(ctx, path, "Financial")
	require.NoError(t, err)

	assert.Equal(t, Financial, res.DataType)
	assert.Equal(t, "financial", res.Label)
	assert.Equal(t, TriggerUpload, res.Trigger)
	assert.Equal(t, filepath.Join(processed, "financial_20240315_financial_q1_2024.csv"), res.StampedPath)
	assert.Equal(t, filepath.Join(processed, "latest.csv"), res.LatestPath)
	assert.Equal(t, 3, res.RowsIn)
	assert.Equal(t, 3, res.RowsOut)
	assert.False(t, res.Degraded)

	want := "date,amount,running_total\n2024-01-01,10,10\n2024-01-02,20,30\n2024-01-03,-5,25\n"
	assert.Equal(t, want, testutil.ReadFile(t, res.StampedPath))
	assert.Equal(t, want, testutil.ReadFile(t, res.LatestPath))

	require.Len(t, rec.records, 1)
	assert.NoError(t, rec.records[0].Err)
	assert.Same(t, res, rec.records[0].Result)
}

func TestDispatchUnknownLabelUsesDefault(t *testing.T) {
	d, raw, processed, handler := newTestDispatcher(t)
	path := testutil.WriteFile(t, raw, "inventory_x_1.csv", "sku,qty\na,1\na,1\n")

	res, err := d.Dispatch(context.Background(), path, "unknown")
	require.NoError(t, err)

	assert.Equal(t, Default, res.DataType)
	assert.Equal(t, "default", res.Routine)
	assert.Equal(t, "unknown", res.Label)
	assert.Equal(t, filepath.Join(processed, "unknown_20240315_inventory_x_1.csv"), res.StampedPath)
	assert.Equal(t, 1, res.Stats.DuplicatesRemoved)
	assert.True(t, handler.ContainsMessage("unrecognized type label, using default routine"))
}

func TestDispatchMissingFile(t *testing.T) {
	rec := &memoryRecorder{}
	d, raw, processed, _ := newTestDispatcher(t, WithRecorder(rec))

	_, err := d.Dispatch(context.Background(), filepath.Join(raw, "missing.csv"), "market")
	require.Error(t, err)

	assert.Nil(t, testutil.ListDir(t, processed))
	require.Len(t, rec.records, 1)
	assert.Error(t, rec.records[0].Err)
}

func TestDispatchMalformedCSV(t *testing.T) {
	d, raw, processed, _ := newTestDispatcher(t)
	path := testutil.WriteFile(t, raw, "market_bad.csv", "date,price\n\"unterminated,1\n")

	_, err := d.Dispatch(context.Background(), path, "market")
	require.Error(t, err)
	assert.Nil(t, testutil.ListDir(t, processed))
}

func TestDispatchRecorderFailureIsNotFatal(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("database is locked")}
	d, raw, _, handler := newTestDispatcher(t, WithRecorder(rec))
	path := testutil.WriteFile(t, raw, "market_a.csv", "date,price\n2024-01-01,1\n")

	_, err := d.Dispatch(context.Background(), path, "market")
	require.NoError(t, err)
	assert.True(t, handler.ContainsMessage("failed to record ingestion"))
}

func TestDispatchForecastReportsFutureRows(t *testing.T) {
	d, raw, _, _ := newTestDispatcher(t)
	path := testutil.WriteFile(t, raw, "forecast_a.csv", "date,prediction\n2024-03-14,1\n2024-03-16,2\n2024-04-01,3\n")

	res, err := d.Dispatch(context.Background(), path, "forecast")
	require.NoError(t, err)
	assert.Equal(t, 2, res.FutureRows)
}
