package sched

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextDailyRun(t *testing.T) {
	loc := time.UTC

	now := time.Date(2025, 6, 1, 2, 0, 0, 0, loc)
	next := nextDailyRun(now, 3, 30)
	assert.Equal(t, time.Date(2025, 6, 1, 3, 30, 0, 0, loc), next, "later today")

	now = time.Date(2025, 6, 1, 4, 0, 0, 0, loc)
	next = nextDailyRun(now, 3, 30)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 30, 0, 0, loc), next, "rolls to tomorrow when already past")

	now = time.Date(2025, 6, 1, 3, 30, 0, 0, loc)
	next = nextDailyRun(now, 3, 30)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 30, 0, 0, loc), next, "exact tick time schedules the next day")

	now = time.Date(2025, 12, 31, 23, 59, 0, 0, loc)
	next = nextDailyRun(now, 0, 15)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 15, 0, 0, loc), next, "crosses year boundary")
}

func TestRunOnceExecutesJobUnderLock(t *testing.T) {
	s := New(NewLocalLocker(), discardLogger())

	ran := 0
	s.runOnce("job", 1, func(context.Context) error {
		ran++
		return nil
	})
	assert.Equal(t, 1, ran)

	// The lock was released; a second tick runs again.
	s.runOnce("job", 1, func(context.Context) error {
		ran++
		return nil
	})
	assert.Equal(t, 2, ran)
}

func TestSingleFlightAcrossSchedulers(t *testing.T) {
	// Two schedulers share one lock arbiter, standing in for two replicas.
	locker := NewLocalLocker()
	s1 := New(locker, discardLogger())
	s2 := New(locker, discardLogger())

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		total   int
	)
	job := func(context.Context) error {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		total++
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s1.runOnce("job", 42, job) }()
	go func() { defer wg.Done(); s2.runOnce("job", 42, job) }()
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "at most one concurrent executor")
	assert.Equal(t, 1, total, "the losing replica skips the tick entirely")
}

func TestRunOnceReleasesLockAfterFailure(t *testing.T) {
	locker := NewLocalLocker()
	s := New(locker, discardLogger())

	s.runOnce("job", 1, func(context.Context) error {
		return errors.New("boom")
	})

	release, ok, err := locker.TryLock(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok, "lock must be released even when the job fails")
	release()
}

func TestRunOnceContainsPanics(t *testing.T) {
	locker := NewLocalLocker()
	s := New(locker, discardLogger())

	require.NotPanics(t, func() {
		s.runOnce("job", 1, func(context.Context) error {
			panic("job exploded")
		})
	})

	// And the lock is free again afterwards.
	release, ok, err := locker.TryLock(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestLocalLockerKeysIndependent(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	rel1, ok, err := locker.TryLock(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "held key is not reacquirable")

	rel2, ok, err := locker.TryLock(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "a different key is free")

	rel1()
	rel2()

	rel1, ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok, "released key is reacquirable")
	rel1()
}
