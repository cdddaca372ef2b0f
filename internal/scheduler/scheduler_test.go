package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nepal_jobs/internal/domain"
)

type runnerFunc func(ctx context.Context) (*domain.RunSummary, error)

func (f runnerFunc) Run(ctx context.Context) (*domain.RunSummary, error) {
	return f(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RunsImmediatelyThenOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	runner := runnerFunc(func(runCtx context.Context) (*domain.RunSummary, error) {
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		if runs.Add(1) == 3 {
			cancel()
		}
		return &domain.RunSummary{}, nil
	})

	err := NewScheduler(runner, 10*time.Millisecond, time.Second, testLogger()).Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), runs.Load())
}

func TestScheduler_FailedRunDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	runner := runnerFunc(func(runCtx context.Context) (*domain.RunSummary, error) {
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		if runs.Add(1) == 2 {
			cancel()
		}
		return &domain.RunSummary{}, errors.New("all sources failed")
	})

	err := NewScheduler(runner, 10*time.Millisecond, time.Second, testLogger()).Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_RunIsBoundedByTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deadlines := make(chan time.Duration, 1)
	runner := runnerFunc(func(runCtx context.Context) (*domain.RunSummary, error) {
		deadline, ok := runCtx.Deadline()
		require.True(t, ok)
		deadlines <- time.Until(deadline)
		cancel()
		return &domain.RunSummary{}, nil
	})

	_ = NewScheduler(runner, time.Hour, 2*time.Second, testLogger()).Start(ctx)

	left := <-deadlines
	assert.LessOrEqual(t, left, 2*time.Second)
	assert.Greater(t, left, time.Duration(0))
}

func TestScheduler_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	runner := runnerFunc(func(context.Context) (*domain.RunSummary, error) {
		runs.Add(1)
		return &domain.RunSummary{}, nil
	})

	done := make(chan error, 1)
	go func() {
		done <- NewScheduler(runner, time.Hour, 0, testLogger()).Start(ctx)
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}
