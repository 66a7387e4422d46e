// Package sched runs recurring background jobs on at most one replica per
// tick, using a non-blocking advisory lock as the fleet-wide arbiter.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Job is a scheduled job body. Failures are logged and swallowed; a missed
// tick is skipped, never retried.
type Job func(ctx context.Context) error

// Scheduler arms a self-rearming wall-clock timer per job. Rearming happens
// after the run completes, so a slow run can never overlap the next one.
type Scheduler struct {
	locker Locker
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Scheduler using the given lock arbiter.
func New(locker Locker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// ScheduleDaily runs job every day at the given local wall-clock time,
// rolling to the next day when the time has already passed. The loop runs
// until process shutdown; there is no external cancellation.
func (s *Scheduler) ScheduleDaily(name string, hour, minute int, lockKey int64, job Job) {
	go func() {
		for {
			now := s.now()
			next := nextDailyRun(now, hour, minute)
			timer := time.NewTimer(next.Sub(now))
			<-timer.C
			s.runOnce(name, lockKey, job)
		}
	}()
}

// runOnce executes one tick: try the lock, skip silently when another
// replica holds it, otherwise run the job and release in all paths.
func (s *Scheduler) runOnce(name string, lockKey int64, job Job) {
	ctx := context.Background()

	release, ok, err := s.locker.TryLock(ctx, lockKey)
	if err != nil {
		s.logger.Error("scheduler: lock attempt failed", "job", name, "error", err)
		return
	}
	if !ok {
		s.logger.Debug("scheduler: tick skipped, lock held elsewhere", "job", name)
		return
	}
	defer release()

	if err := s.safeRun(ctx, job); err != nil {
		s.logger.Error("scheduler: job failed", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduler: job completed", "job", name)
}

// safeRun contains job panics so a bad job body cannot kill the loop.
func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// nextDailyRun returns the next occurrence of hour:minute after now, in
// now's location.
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
