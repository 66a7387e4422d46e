package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Locker is a named, non-blocking, process-external mutual-exclusion
// primitive. TryLock never waits: losing callers get ok=false and move on.
type Locker interface {
	TryLock(ctx context.Context, key int64) (release func(), ok bool, err error)
}

// PgLocker brokers advisory locks through PostgreSQL. The lock is
// session-scoped, so a pooled connection is held for the duration and
// released together with the lock.
type PgLocker struct {
	pool *pgxpool.Pool
}

// NewPgLocker constructs a locker over the pool.
func NewPgLocker(pool *pgxpool.Pool) *PgLocker {
	return &PgLocker{pool: pool}
}

// TryLock attempts pg_try_advisory_lock on a dedicated connection.
func (l *PgLocker) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock: acquire conn: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("advisory lock: try: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on a fresh context: the job's context may already be done.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, true, nil
}

// LocalLocker is an in-process Locker for single-replica deployment and
// tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

// NewLocalLocker constructs an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[int64]bool)}
}

// TryLock acquires the key if free.
func (l *LocalLocker) TryLock(_ context.Context, key int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}
