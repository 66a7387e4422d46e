package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterBudget(t *testing.T) {
	l := NewLocalLimiter(3, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLocalLimiterWindowElapses(t *testing.T) {
	l := NewLocalLimiter(2, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)
	}

	l.now = func() time.Time { return base.Add(2 * time.Minute) }

	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
}

func TestLocalLimiterConcurrentBurst(t *testing.T) {
	const limit = 5
	l := NewLocalLimiter(limit, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "k")
			if err != nil {
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed)
}

func TestLocalLimiterDropsIdleKeys(t *testing.T) {
	l := NewLocalLimiter(5, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(5 * time.Minute) }
	l.dropIdle()

	l.mu.Lock()
	_, exists := l.windows["k"]
	l.mu.Unlock()
	assert.False(t, exists)
}
