package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_DrainsOnStartAndEachTick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	clock.Set(hour0.Add(3 * time.Hour))
	store, streamID := seededStore(t, clock)
	markHours(t, store, streamID)

	trap := clock.Trap().NewTicker("aggregation")
	defer trap.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	s := NewScheduler(time.Minute, store, BatchJobParameter{BatchSize: 10, WorkerCount: 2}, clock)
	go func() { done <- s.Start(runCtx) }()

	call := trap.MustWait(ctx)
	require.Equal(t, time.Minute, call.Duration)
	call.MustRelease(ctx)

	// The first drain recomputes the hours and leaves the day queued.
	require.Eventually(t, func() bool {
		return len(aggregates(t, store, aggregation.Hour)) == 2
	}, 5*time.Second, 10*time.Millisecond)

	clock.Advance(time.Minute).MustWait(ctx)
	require.Eventually(t, func() bool {
		return len(aggregates(t, store, aggregation.Day)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_StopsWhenCancelledBeforeStart(t *testing.T) {
	clock := quartz.NewMock(t)
	store, _ := seededStore(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(time.Minute, store, BatchJobParameter{}, clock)
	require.NoError(t, s.Start(ctx))
}
