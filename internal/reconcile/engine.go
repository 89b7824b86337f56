package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parity/internal/config"
	"parity/internal/logger"
	"parity/internal/notifier"
	"parity/internal/scheduler"
	"parity/internal/store"
	"parity/internal/store/history"
	"parity/internal/venue"
)

// tradingModes is the fixed set of modes a run walks, in order.
var tradingModes = []string{"paper", "live"}

// ErrRunInProgress is returned when a trigger lands while a run is active.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// Engine owns the reconciliation loop: scheduled runs, manual triggers, and
// per-order manual reconciliation. One run is active at a time; triggers
// that land mid-run are refused rather than queued.
type Engine struct {
	cfg      *config.Config
	factory  *venue.Factory
	orders   store.OrderRepository
	resolver store.Resolver
	history  *history.Store
	notify   notifier.TextNotifier

	callTimeout time.Duration

	mu      sync.Mutex
	running bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metrics engineMetrics
}

func NewEngine(cfg *config.Config, factory *venue.Factory, orders store.OrderRepository,
	resolver store.Resolver, hist *history.Store, notify notifier.TextNotifier) *Engine {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Engine{
		cfg:         cfg,
		factory:     factory,
		orders:      orders,
		resolver:    resolver,
		history:     hist,
		notify:      notify,
		callTimeout: 10 * time.Second,
	}
}

// Start launches the scheduled loop. Calling Start on a started engine is a
// no-op; the schedule is never doubled.
func (e *Engine) Start(ctx context.Context) error {
	interval, ok := scheduler.ParseIntervalDuration(e.cfg.Reconcile.Interval)
	if !ok {
		return fmt.Errorf("reconcile: invalid interval %q", e.cfg.Reconcile.Interval)
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		logger.Warnf("reconcile: engine already started, ignoring")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.started = true
	e.cancel = cancel
	e.mu.Unlock()

	sched := scheduler.NewIntervalScheduler(runCtx, interval)
	sched.RunImmediately = e.cfg.Reconcile.RunImmediately

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		sched.Start(func() {
			if _, err := e.Run(runCtx, "scheduled"); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					logger.Warnf("reconcile: scheduled run skipped, previous run still active")
					return
				}
				logger.Errorf("reconcile: scheduled run failed: %v", err)
			}
		})
	}()
	logger.Infof("reconcile: engine started interval=%s", interval)
	return nil
}

// Stop cancels future scheduled runs and waits for the loop to exit. A run
// already executing finishes; its writes are never interrupted mid-repair.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	logger.Infof("reconcile: engine stopped")
}

// Metrics returns the current engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.snapshot()
}

// Running reports whether a run is executing right now.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) tryBeginRun() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) endRun() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}
