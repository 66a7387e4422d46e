package rate

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is the single-process sliding window for non-clustered
// deployment. Same admission semantics as SlidingWindow, but counts live in
// process memory, so running it on multiple replicas silently multiplies the
// effective limit.
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	stopC   chan struct{}
	now     func() time.Time
}

// NewLocalLimiter creates an in-memory limiter and starts a background
// sweep that drops idle keys.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	l := &LocalLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		stopC:   make(chan struct{}),
		now:     time.Now,
	}
	go l.sweep()
	return l
}

// Allow records the request and admits it iff the trailing-window count
// stays within the limit.
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.windows[key] = kept

	return Decision{
		Allowed:    len(kept) <= l.limit,
		Count:      int64(len(kept)),
		RetryAfter: l.window,
	}, nil
}

// Stop terminates the sweep goroutine.
func (l *LocalLimiter) Stop() {
	close(l.stopC)
}

func (l *LocalLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.dropIdle()
		case <-l.stopC:
			return
		}
	}
}

func (l *LocalLimiter) dropIdle() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}
