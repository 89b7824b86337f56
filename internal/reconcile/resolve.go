package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parity/internal/config"
	"parity/internal/logger"
	"parity/internal/store"
	"parity/internal/store/history"
	"parity/internal/venue"
)

const resolvedBySystem = "system"

// resolveDiscrepancy applies the repair for one discrepancy. It returns
// whether the repair committed, plus an operator note for the run history
// when something was left unrepaired.
func (e *Engine) resolveDiscrepancy(ctx context.Context, d *Discrepancy) (bool, string) {
	// A venue reporting less filled than the ledger taints the whole
	// discrepancy; nothing on it is repaired blind.
	if ent := d.ByField(FieldFilledQuantity); ent != nil {
		return false, fmt.Sprintf("order %d: venue reports less filled (%s) than the ledger (%s), left for manual review",
			d.OrderID, ent.VenueValue, ent.LocalValue)
	}

	// The fill repair also applies the venue status, so one transaction
	// clears a status entry detected alongside the missing fills.
	if ent := d.ByField(FieldMissingFills); ent != nil {
		err := e.resolver.ResolveMissingFills(ctx, store.FillRepair{
			OrderID:         d.OrderID,
			AccountID:       d.AccountID,
			ExpectedFilled:  d.ExpectedFilled,
			NewFilled:       d.Snapshot.FilledQuantity,
			MissingQuantity: ent.MissingQuantity,
			FillPrice:       d.Snapshot.AvgFillPrice,
			NewStatus:       string(d.Snapshot.Status),
			NewAvgFillPrice: d.Snapshot.AvgFillPrice,
			ResolvedBy:      resolvedBySystem,
		})
		return e.repairOutcome(d, err)
	}

	if ent := d.ByField(FieldStatus); ent != nil {
		err := e.resolver.ResolveStatus(ctx, store.StatusRepair{
			OrderID:        d.OrderID,
			AccountID:      d.AccountID,
			PreviousStatus: ent.LocalValue,
			NewStatus:      ent.VenueValue,
			ResolvedBy:     resolvedBySystem,
		})
		return e.repairOutcome(d, err)
	}

	// Unknown drift is surfaced to operators, never repaired blind.
	return false, fmt.Sprintf("order %d: unresolvable drift, left for manual review", d.OrderID)
}

func (e *Engine) repairOutcome(d *Discrepancy, err error) (bool, string) {
	if err == nil {
		logger.Infof("reconcile: repaired %s", d)
		return true, ""
	}
	if errors.Is(err, store.ErrStaleSnapshot) {
		// The order moved between detection and repair; the next run will
		// re-detect against the fresh row.
		logger.Warnf("reconcile: stale snapshot for order=%d, repair skipped", d.OrderID)
		return false, fmt.Sprintf("order %d: snapshot went stale, repair deferred", d.OrderID)
	}
	logger.Errorf("reconcile: repair failed for %s: %v", d, err)
	return false, fmt.Sprintf("order %d: repair failed: %v", d.OrderID, err)
}

// ManualResult is the response to a single-order manual reconciliation.
type ManualResult struct {
	OrderID     int64        `json:"order_id"`
	Discrepancy *Discrepancy `json:"discrepancy,omitempty"`
	Resolved    bool         `json:"resolved"`
	Note        string       `json:"note,omitempty"`
}

// ReconcileOrderManually checks and repairs exactly one order on demand.
// The order must exist and belong to the given mode; otherwise a not-found
// taxonomy error comes back so the control surface can map it to a 404.
func (e *Engine) ReconcileOrderManually(ctx context.Context, mode string, orderID int64) (*ManualResult, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))

	local, err := e.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if local == nil || local.Mode != mode {
		return nil, venue.NewNotFoundError(mode, fmt.Sprintf("order %d not found in mode %s", orderID, mode))
	}

	acct, ok := e.accountByID(mode, local.AccountID)
	if !ok {
		return nil, venue.NewNotFoundError(mode, fmt.Sprintf("account %s is not configured for mode %s", local.AccountID, mode))
	}

	adapter, instanceID, err := e.factory.CreateAdapter(ctx, factoryAccount(acct))
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := e.factory.DestroyAdapter(ctx, instanceID); derr != nil {
			logger.Warnf("reconcile: destroy adapter account=%s: %v", acct.ID, derr)
		}
	}()

	start := time.Now()
	snap, err := e.fetchSnapshot(ctx, adapter, local.Symbol, local.ExchangeOrderID)
	if err != nil {
		return nil, err
	}

	result := &ManualResult{OrderID: orderID}
	d := DetectOrderDiscrepancy(local, snap, e.cfg.Reconcile.FillTolerance)
	found, resolved := 0, 0
	if d != nil {
		found = 1
		result.Discrepancy = d
		result.Resolved, result.Note = e.resolveDiscrepancy(ctx, d)
		if result.Resolved {
			resolved = 1
		}
	}

	if e.history != nil {
		rec := history.RunRecord{
			Mode:                  mode,
			Trigger:               "manual",
			AccountsProcessed:     1,
			OrdersChecked:         1,
			DiscrepanciesFound:    found,
			DiscrepanciesResolved: resolved,
			StartedAt:             start.Unix(),
			FinishedAt:            time.Now().Unix(),
		}
		if result.Note != "" {
			rec.Notes = []string{result.Note}
		}
		if _, err := e.history.Append(ctx, rec); err != nil {
			logger.Errorf("reconcile: history append failed for manual order=%d: %v", orderID, err)
		}
	}
	return result, nil
}

func (e *Engine) accountByID(mode, accountID string) (config.AccountConfig, bool) {
	for _, acct := range e.cfg.AccountsForMode(mode) {
		if acct.ID == accountID {
			return acct, true
		}
	}
	return config.AccountConfig{}, false
}
