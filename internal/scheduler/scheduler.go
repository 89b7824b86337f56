package scheduler

import (
	"context"
	"time"

	"parity/internal/logger"
)

// IntervalScheduler runs a task on a fixed interval until its context is
// cancelled. Cancellation only stops future runs; a task already executing
// is never interrupted.
type IntervalScheduler struct {
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, driving task until the context is done. Callers run it in
// its own goroutine.
func (s *IntervalScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("IntervalScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("IntervalScheduler: started interval=%s run_immediately=%v at=%s",
		s.Interval, s.RunImmediately, s.nowFn().UTC().Format(time.RFC3339))

	if s.RunImmediately {
		task()
	}

	timer := time.NewTimer(s.Interval)
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("IntervalScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
		timer.Reset(s.Interval)
	}
}
