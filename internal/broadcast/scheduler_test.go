package broadcast_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratefeed/internal/broadcast"
)

func TestScheduler_RunsAndReschedules(t *testing.T) {
	t.Parallel()

	s := broadcast.NewScheduler(nil)
	ticks := make(chan struct{}, 16)
	require.NoError(t, s.Add("tick", time.Hour, func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}))

	s.Start(t.Context())
	defer s.Stop()

	// an hourly job does not fire until rescheduled
	select {
	case <-ticks:
		t.Fatal("job fired before its interval")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, s.Reschedule("tick", 5*time.Millisecond))
	every, ok := s.Interval("tick")
	require.True(t, ok)
	require.Equal(t, 5*time.Millisecond, every)

	for range 2 {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not fire after reschedule")
		}
	}
}

func TestScheduler_Errors(t *testing.T) {
	t.Parallel()

	s := broadcast.NewScheduler(nil)
	require.ErrorIs(t, s.Add("x", 0, func(context.Context) {}), broadcast.ErrBadInterval)
	require.NoError(t, s.Add("x", time.Minute, func(context.Context) {}))
	require.ErrorIs(t, s.Add("x", time.Minute, func(context.Context) {}), broadcast.ErrJobExists)
	require.ErrorIs(t, s.Reschedule("y", time.Minute), broadcast.ErrJobNotFound)
	require.ErrorIs(t, s.Reschedule("x", -time.Minute), broadcast.ErrBadInterval)

	_, ok := s.Interval("y")
	require.False(t, ok)
}

func TestScheduler_StopWaitsAndSurvivesPanics(t *testing.T) {
	t.Parallel()

	s := broadcast.NewScheduler(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add("boom", 2*time.Millisecond, func(context.Context) {
		runs.Add(1)
		panic("boom")
	}))
	s.Start(context.Background())

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
	s.Stop()
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, after, runs.Load())

	// stopping twice is harmless
	s.Stop()
}

func TestScheduler_AddAfterStart(t *testing.T) {
	t.Parallel()

	s := broadcast.NewScheduler(nil)
	s.Start(t.Context())
	defer s.Stop()

	fired := make(chan struct{})
	var once atomic.Bool
	require.NoError(t, s.Add("late", 2*time.Millisecond, func(context.Context) {
		if once.CompareAndSwap(false, true) {
			close(fired)
		}
	}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("late job never ran")
	}
}
