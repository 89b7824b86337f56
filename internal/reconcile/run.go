package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parity/internal/config"
	"parity/internal/logger"
	"parity/internal/store/history"
	"parity/internal/venue"

	"golang.org/x/sync/errgroup"
)

// ModeSummary aggregates one trading mode's slice of a run.
type ModeSummary struct {
	Mode                  string   `json:"mode"`
	AccountsProcessed     int      `json:"accounts_processed"`
	OrdersChecked         int      `json:"orders_checked"`
	DiscrepanciesFound    int      `json:"discrepancies_found"`
	DiscrepanciesResolved int      `json:"discrepancies_resolved"`
	Errors                []string `json:"errors,omitempty"`
	Notes                 []string `json:"notes,omitempty"`
}

// RunSummary is the outcome of one full reconciliation run across all modes.
type RunSummary struct {
	Trigger               string        `json:"trigger"`
	Modes                 []ModeSummary `json:"modes"`
	DiscrepanciesFound    int           `json:"discrepancies_found"`
	DiscrepanciesResolved int           `json:"discrepancies_resolved"`
	StartedAt             time.Time     `json:"started_at"`
	Duration              time.Duration `json:"duration"`
}

// Run executes one reconciliation pass over every trading mode. Only one run
// may be active; a second trigger gets ErrRunInProgress. Account failures
// are isolated: an unreachable venue shows up in the mode summary's errors
// and the run keeps going.
func (e *Engine) Run(ctx context.Context, trigger string) (RunSummary, error) {
	if !e.tryBeginRun() {
		return RunSummary{}, ErrRunInProgress
	}
	defer e.endRun()

	start := time.Now()
	summary := RunSummary{Trigger: trigger, StartedAt: start.UTC()}
	logger.Infof("reconcile: run started trigger=%s", trigger)

	ordersChecked := 0
	errCount := 0
	for _, mode := range tradingModes {
		ms := e.reconcileMode(ctx, mode)
		summary.Modes = append(summary.Modes, ms)
		summary.DiscrepanciesFound += ms.DiscrepanciesFound
		summary.DiscrepanciesResolved += ms.DiscrepanciesResolved
		ordersChecked += ms.OrdersChecked
		errCount += len(ms.Errors)

		if e.history != nil {
			rec := history.RunRecord{
				Mode:                  mode,
				Trigger:               trigger,
				AccountsProcessed:     ms.AccountsProcessed,
				OrdersChecked:         ms.OrdersChecked,
				DiscrepanciesFound:    ms.DiscrepanciesFound,
				DiscrepanciesResolved: ms.DiscrepanciesResolved,
				Errors:                ms.Errors,
				Notes:                 ms.Notes,
				StartedAt:             start.Unix(),
				FinishedAt:            time.Now().Unix(),
			}
			if _, err := e.history.Append(ctx, rec); err != nil {
				logger.Errorf("reconcile: history append failed mode=%s: %v", mode, err)
			}
		}
	}
	summary.Duration = time.Since(start)

	e.metrics.record(summary.Duration, ordersChecked,
		summary.DiscrepanciesFound, summary.DiscrepanciesResolved, errCount)
	e.maybeAlert(summary)

	logger.Infof("reconcile: run finished trigger=%s found=%d resolved=%d orders=%d took=%s",
		trigger, summary.DiscrepanciesFound, summary.DiscrepanciesResolved,
		ordersChecked, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// maybeAlert sends at most one notification per run, with the aggregate
// count across all modes.
func (e *Engine) maybeAlert(summary RunSummary) {
	threshold := e.cfg.Reconcile.AlertThreshold
	if threshold <= 0 || summary.DiscrepanciesFound <= threshold {
		return
	}
	text := fmt.Sprintf("*Reconciliation alert*\nRun (%s) found %d discrepancies, above threshold %d. Resolved: %d.",
		summary.Trigger, summary.DiscrepanciesFound, threshold, summary.DiscrepanciesResolved)
	if err := e.notify.SendText(text); err != nil {
		logger.Errorf("reconcile: alert delivery failed: %v", err)
	}
}

func (e *Engine) reconcileMode(ctx context.Context, mode string) ModeSummary {
	ms := ModeSummary{Mode: mode}
	accounts := e.cfg.AccountsForMode(mode)
	if len(accounts) == 0 {
		return ms
	}

	limit := e.cfg.Reconcile.WorkerLimit
	if limit <= 0 {
		limit = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, acct := range accounts {
		acct := acct
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := e.reconcileAccount(gctx, mode, acct)
			mu.Lock()
			ms.AccountsProcessed++
			ms.OrdersChecked += res.ordersChecked
			ms.DiscrepanciesFound += res.found
			ms.DiscrepanciesResolved += res.resolved
			ms.Errors = append(ms.Errors, res.errors...)
			ms.Notes = append(ms.Notes, res.notes...)
			mu.Unlock()
			return err
		})
	}
	// A storage failure is fatal to the mode: the first one cancels the
	// group so the remaining accounts are not checked against a ledger
	// that cannot be read.
	if err := g.Wait(); err != nil {
		logger.Errorf("reconcile: mode=%s aborted: %v", mode, err)
		ms.Errors = append(ms.Errors, fmt.Sprintf("mode aborted: %v", err))
	}
	return ms
}

type accountResult struct {
	ordersChecked int
	found         int
	resolved      int
	errors        []string
	notes         []string
}

// reconcileAccount walks one account's open orders. Venue failures are
// recorded in the result and the account keeps going; a non-nil error means
// the ledger itself failed and the whole mode must stop.
func (e *Engine) reconcileAccount(ctx context.Context, mode string, acct config.AccountConfig) (accountResult, error) {
	var res accountResult

	adapter, instanceID, err := e.factory.CreateAdapter(ctx, factoryAccount(acct))
	if err != nil {
		res.errors = append(res.errors,
			fmt.Sprintf("account %s: adapter unavailable: %v", acct.ID, err))
		logger.Warnf("reconcile: skipping account=%s mode=%s: %v", acct.ID, mode, err)
		return res, nil
	}
	defer func() {
		if err := e.factory.DestroyAdapter(ctx, instanceID); err != nil {
			logger.Warnf("reconcile: destroy adapter account=%s: %v", acct.ID, err)
		}
	}()

	orders, err := e.orders.ListOpenForAccount(ctx, mode, acct.ID, e.cfg.Reconcile.OrderBatchSize)
	if err != nil {
		return res, venue.NewReconciliationError(acct.Venue,
			fmt.Sprintf("account %s: listing open orders failed: %v", acct.ID, err), err)
	}

	for i := range orders {
		if ctx.Err() != nil {
			break
		}
		local := &orders[i]
		res.ordersChecked++

		snap, err := e.fetchSnapshot(ctx, adapter, local.Symbol, local.ExchangeOrderID)
		if err != nil {
			res.errors = append(res.errors,
				fmt.Sprintf("order %d (%s): venue fetch failed: %v", local.ID, local.ExchangeOrderID, err))
			continue
		}

		d := DetectOrderDiscrepancy(local, snap, e.cfg.Reconcile.FillTolerance)
		if d == nil {
			continue
		}
		res.found++
		logger.Infof("reconcile: discrepancy %s", d)

		resolved, note := e.resolveDiscrepancy(ctx, d)
		if resolved {
			res.resolved++
		}
		if note != "" {
			res.notes = append(res.notes, note)
		}
	}
	return res, nil
}

// fetchSnapshot pulls the venue's view of one order, with bounded retries
// for transient failures and a per-call timeout.
func (e *Engine) fetchSnapshot(ctx context.Context, adapter venue.Adapter, symbol, venueOrderID string) (venue.Snapshot, error) {
	var snap venue.Snapshot
	err := venue.Retry(ctx, e.cfg.Reconcile.RetryMaxAttempts, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		order, err := adapter.GetOrder(callCtx, symbol, venueOrderID)
		if err != nil {
			return err
		}
		snap = order.Snapshot()
		return nil
	})
	return snap, err
}

func factoryAccount(acct config.AccountConfig) venue.Account {
	return venue.Account{
		ID:        acct.ID,
		Venue:     acct.Venue,
		APIKey:    acct.APIKey,
		APISecret: acct.APISecret,
		Limits: venue.RateLimits{
			PublicPerWindow:  acct.RateLimitPublic,
			PrivatePerWindow: acct.RateLimitPrivate,
			Window:           time.Duration(acct.RateLimitWindowSeconds) * time.Second,
		},
	}
}
