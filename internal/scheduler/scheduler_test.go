package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb-engine/internal/config"
)

func TestRunExecutesJobPerInterval(t *testing.T) {
	var runs atomic.Int32
	sched := New(config.SchedulerConfig{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx, func(context.Context, time.Time) error {
		runs.Add(1)
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestCycleContextExpiresAtBoundary(t *testing.T) {
	var sawDeadline atomic.Bool
	sched := New(config.SchedulerConfig{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	sched.Run(ctx, func(cycleCtx context.Context, _ time.Time) error {
		// Overrun deliberately; the per-cycle context must cut us off.
		select {
		case <-cycleCtx.Done():
			sawDeadline.Store(true)
			return cycleCtx.Err()
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	})
	assert.True(t, sawDeadline.Load())
}

func TestOverrunDoesNotStopFollowingCycles(t *testing.T) {
	var runs atomic.Int32
	sched := New(config.SchedulerConfig{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	sched.Run(ctx, func(cycleCtx context.Context, _ time.Time) error {
		if runs.Add(1) == 1 {
			<-cycleCtx.Done()
			return cycleCtx.Err()
		}
		return nil
	})
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestRunStopsOnCancellation(t *testing.T) {
	sched := New(config.SchedulerConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx, func(context.Context, time.Time) error { return nil })
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestAlignedCyclesFallOnBoundaries(t *testing.T) {
	var cycles []time.Time
	interval := 20 * time.Millisecond
	sched := New(config.SchedulerConfig{Interval: interval, AlignToBucket: true}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()

	sched.Run(ctx, func(_ context.Context, cycle time.Time) error {
		cycles = append(cycles, cycle)
		return nil
	})

	require.NotEmpty(t, cycles)
	for _, c := range cycles {
		assert.True(t, c.Equal(c.Truncate(interval)), "cycle %v not on a boundary", c)
	}
}
