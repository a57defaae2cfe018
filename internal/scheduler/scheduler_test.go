package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/shared/testutil"
)

type mockRunner struct {
	mock.Mock
	calls atomic.Int32
}

func (m *mockRunner) RunLatest(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Outcome, error) {
	args := m.Called(ctx, trigger)
	defer m.calls.Add(1)
	outcome, _ := args.Get(0).(*pipeline.Outcome)
	return outcome, args.Error(1)
}

// manualTicks swaps the ticker for a channel driven by the test
func manualTicks(s *Scheduler) chan time.Time {
	ch := make(chan time.Time)
	s.tick = func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
	return ch
}

func TestScheduler_Disabled(t *testing.T) {
	runner := &mockRunner{}
	logger, handler := testutil.NewTestLogger(t)

	s := New(runner, 0, true, logger)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Run(context.Background()))

	runner.AssertNotCalled(t, "RunLatest", mock.Anything, mock.Anything)
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "nightly scheduler disabled")
}

func TestScheduler_RunsOnTicksWithNightlyTrigger(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunLatest", mock.Anything, pipeline.TriggerNightly).
		Return(&pipeline.Outcome{Status: pipeline.StatusSuccess, File: "/data/raw/market_a_b.csv"}, nil).
		Times(2)

	logger, handler := testutil.NewTestLogger(t)
	s := New(runner, time.Hour, false, logger)
	ticks := manualTicks(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ticks <- time.Now()
	ticks <- time.Now()
	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runner.AssertExpectations(t)
	testutil.AssertLogAttr(t, handler, "status", pipeline.StatusSuccess)
}

func TestScheduler_RunOnStart(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunLatest", mock.Anything, pipeline.TriggerNightly).
		Return(&pipeline.Outcome{Status: pipeline.StatusNoData}, nil).
		Once()

	s := New(runner, time.Hour, true, nil)
	manualTicks(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return runner.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runner.AssertExpectations(t)
}

func TestScheduler_FailureDoesNotStopSchedule(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunLatest", mock.Anything, pipeline.TriggerNightly).
		Return(nil, errors.New("disk full")).Once()
	runner.On("RunLatest", mock.Anything, pipeline.TriggerNightly).
		Return(&pipeline.Outcome{Status: pipeline.StatusSuccess}, nil).Once()

	logger, handler := testutil.NewTestLogger(t)
	s := New(runner, time.Hour, false, logger)
	ticks := manualTicks(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ticks <- time.Now()
	ticks <- time.Now()
	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runner.AssertExpectations(t)
	testutil.AssertLogContains(t, handler, slog.LevelError, "nightly run failed")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "nightly run finished")
}
