package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"parity/internal/config"
	"parity/internal/store/history"
	"parity/internal/store/model"
	"parity/internal/store/sqlite"
	"parity/internal/venue"
	"parity/internal/venue/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *countingNotifier) SendText(text string) error {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
	return nil
}

type testHarness struct {
	engine *Engine
	store  *sqlite.Store
	hist   *history.Store
	notify *countingNotifier

	// seeds maps account id to venue-side order truth; failAccounts fail at
	// connect time.
	seeds        map[string][]venue.Order
	failAccounts map[string]bool
}

func newHarness(t *testing.T, cfg *config.Config) *testHarness {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.NewStore(filepath.Join(dir, "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hist, err := history.NewStore(filepath.Join(dir, "history.db"), 100)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	h := &testHarness{
		store:        st,
		hist:         hist,
		notify:       &countingNotifier{},
		seeds:        make(map[string][]venue.Order),
		failAccounts: make(map[string]bool),
	}

	factory := venue.NewFactory()
	factory.Register(mock.Name, func(acct venue.Account) (venue.Adapter, error) {
		a := mock.New(acct)
		if h.failAccounts[acct.ID] {
			a.FailConnect(errors.New("injected outage"))
		}
		for _, o := range h.seeds[acct.ID] {
			a.SeedOrder(o)
		}
		return a, nil
	})

	h.engine = NewEngine(cfg, factory, st.Orders, sqlite.NewResolver(st), hist, h.notify)
	return h
}

func testConfig(accounts ...config.AccountConfig) *config.Config {
	return &config.Config{
		Reconcile: config.ReconcileConfig{
			Interval:         "5m",
			OrderBatchSize:   200,
			AlertThreshold:   10,
			FillTolerance:    1e-8,
			WorkerLimit:      4,
			RetryMaxAttempts: 2,
		},
		Accounts: accounts,
	}
}

func mockAccount(id, mode string) config.AccountConfig {
	return config.AccountConfig{ID: id, Mode: mode, Venue: mock.Name, APIKey: "key-" + id}
}

func (h *testHarness) seedLedgerOrder(t *testing.T, accountID, mode, venueOrderID, status string, filled float64) int64 {
	t.Helper()
	order := &model.ExchangeOrderModel{
		AccountID:       accountID,
		Mode:            mode,
		Venue:           mock.Name,
		ExchangeOrderID: venueOrderID,
		Symbol:          "BTC/USDT",
		Side:            "buy",
		Type:            "limit",
		Status:          status,
		Quantity:        100,
		FilledQuantity:  filled,
		Price:           50000,
	}
	require.NoError(t, h.store.Orders.Save(context.Background(), order))
	return order.ID
}

func TestRunRepairsMissedFillAtomically(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)
	ctx := context.Background()

	orderID := h.seedLedgerOrder(t, "paper-1", "paper", "seed-1", "open", 0)
	h.seeds["paper-1"] = []venue.Order{{
		VenueOrderID:   "seed-1",
		Symbol:         "BTC/USDT",
		Status:         venue.OrderStatusFilled,
		Quantity:       100,
		FilledQuantity: 100,
		AvgFillPrice:   50000,
	}}

	summary, err := h.engine.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DiscrepanciesFound)
	assert.Equal(t, 1, summary.DiscrepanciesResolved)

	repaired, err := h.store.Orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, repaired)
	assert.Equal(t, "filled", repaired.Status)
	assert.Equal(t, 100.0, repaired.FilledQuantity)
	assert.Equal(t, 50000.0, repaired.AvgFillPrice)

	trades, err := h.store.Trades.ListForOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Synthetic)
	assert.Equal(t, "reconciliation", trades[0].Source)
	assert.Equal(t, 100.0, trades[0].Quantity)
	assert.Equal(t, 50000.0, trades[0].Price)

	audit, err := h.store.Audit.ListForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.NotEmpty(t, audit)

	// A clean second pass finds nothing new and adds no second trade.
	summary, err = h.engine.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Zero(t, summary.DiscrepanciesFound)
	trades, err = h.store.Trades.ListForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRunRepairsFillWhenVenueOmitsPrice(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)
	ctx := context.Background()

	// Venue truth carries the fill but no average price; the synthetic
	// trade must book at the order's own price, never at zero.
	orderID := h.seedLedgerOrder(t, "paper-1", "paper", "seed-np", "open", 0)
	h.seeds["paper-1"] = []venue.Order{{
		VenueOrderID:   "seed-np",
		Symbol:         "BTC/USDT",
		Status:         venue.OrderStatusFilled,
		Quantity:       100,
		FilledQuantity: 100,
	}}

	summary, err := h.engine.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DiscrepanciesResolved)

	trades, err := h.store.Trades.ListForOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 50000.0, trades[0].Price)
}

func TestRunRepairsStatusDrift(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)
	ctx := context.Background()

	orderID := h.seedLedgerOrder(t, "paper-1", "paper", "seed-2", "open", 0)
	h.seeds["paper-1"] = []venue.Order{{
		VenueOrderID: "seed-2",
		Symbol:       "BTC/USDT",
		Status:       venue.OrderStatusCanceled,
		Quantity:     100,
	}}

	summary, err := h.engine.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DiscrepanciesFound)
	assert.Equal(t, 1, summary.DiscrepanciesResolved)

	repaired, err := h.store.Orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", repaired.Status)

	trades, err := h.store.Trades.ListForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Empty(t, trades, "status repairs must not invent trades")
}

func TestRunAggregatesAcrossModesAndAlertsOnce(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"), mockAccount("live-1", "live"))
	cfg.Reconcile.AlertThreshold = 2
	h := newHarness(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("p-%d", i)
		h.seedLedgerOrder(t, "paper-1", "paper", id, "open", 0)
		h.seeds["paper-1"] = append(h.seeds["paper-1"], venue.Order{
			VenueOrderID: id, Symbol: "BTC/USDT",
			Status: venue.OrderStatusCanceled, Quantity: 100,
		})
	}
	h.seedLedgerOrder(t, "live-1", "live", "l-0", "open", 0)
	h.seeds["live-1"] = []venue.Order{{
		VenueOrderID: "l-0", Symbol: "BTC/USDT",
		Status: venue.OrderStatusCanceled, Quantity: 100,
	}}

	summary, err := h.engine.Run(ctx, "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.DiscrepanciesFound)

	require.Len(t, h.notify.texts, 1, "one alert per run, with the aggregate count")
	assert.Contains(t, h.notify.texts[0], "found 3 discrepancies")

	paperRuns, err := h.hist.List(ctx, "paper", 10, 0)
	require.NoError(t, err)
	require.Len(t, paperRuns, 1)
	assert.Equal(t, 2, paperRuns[0].DiscrepanciesFound)
	liveRuns, err := h.hist.List(ctx, "live", 10, 0)
	require.NoError(t, err)
	require.Len(t, liveRuns, 1)
	assert.Equal(t, 1, liveRuns[0].DiscrepanciesFound)
}

func TestRunIsolatesFailingAccounts(t *testing.T) {
	cfg := testConfig(mockAccount("paper-ok", "paper"), mockAccount("paper-down", "paper"))
	h := newHarness(t, cfg)
	ctx := context.Background()

	h.failAccounts["paper-down"] = true
	h.seedLedgerOrder(t, "paper-ok", "paper", "ok-1", "open", 0)
	h.seeds["paper-ok"] = []venue.Order{{
		VenueOrderID: "ok-1", Symbol: "BTC/USDT",
		Status: venue.OrderStatusCanceled, Quantity: 100,
	}}

	summary, err := h.engine.Run(ctx, "scheduled")
	require.NoError(t, err, "one dead venue must not fail the run")

	var paper ModeSummary
	for _, ms := range summary.Modes {
		if ms.Mode == "paper" {
			paper = ms
		}
	}
	assert.Equal(t, 2, paper.AccountsProcessed)
	assert.Equal(t, 1, paper.OrdersChecked)
	assert.Equal(t, 1, paper.DiscrepanciesFound)
	require.Len(t, paper.Errors, 1)
	assert.Contains(t, paper.Errors[0], "paper-down")
}

func TestRunAbortsModeOnStorageFailure(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"), mockAccount("paper-2", "paper"))
	h := newHarness(t, cfg)

	// A dead ledger must not pass for a clean mode run.
	require.NoError(t, h.store.Close())

	summary, err := h.engine.Run(context.Background(), "scheduled")
	require.NoError(t, err, "other modes still run; the failure lives in the mode summary")

	var paper ModeSummary
	for _, ms := range summary.Modes {
		if ms.Mode == "paper" {
			paper = ms
		}
	}
	assert.Zero(t, paper.OrdersChecked)
	assert.Zero(t, paper.DiscrepanciesFound)
	require.NotEmpty(t, paper.Errors)
	assert.Contains(t, paper.Errors[len(paper.Errors)-1], string(venue.CodeReconciliation))
}

func TestRunRefusedWhileAnotherRunActive(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)

	require.True(t, h.engine.tryBeginRun())
	_, err := h.engine.Run(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrRunInProgress)
	h.engine.endRun()

	_, err = h.engine.Run(context.Background(), "manual")
	assert.NoError(t, err)
}

func TestReconcileOrderManually(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)
	ctx := context.Background()

	orderID := h.seedLedgerOrder(t, "paper-1", "paper", "seed-1", "open", 0)
	h.seeds["paper-1"] = []venue.Order{{
		VenueOrderID:   "seed-1",
		Symbol:         "BTC/USDT",
		Status:         venue.OrderStatusFilled,
		Quantity:       100,
		FilledQuantity: 100,
		AvgFillPrice:   50000,
	}}

	result, err := h.engine.ReconcileOrderManually(ctx, "paper", orderID)
	require.NoError(t, err)
	require.NotNil(t, result.Discrepancy)
	assert.NotNil(t, result.Discrepancy.ByField(FieldMissingFills))
	assert.NotNil(t, result.Discrepancy.ByField(FieldStatus))
	assert.True(t, result.Resolved)

	repaired, err := h.store.Orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, repaired.FilledQuantity)

	runs, err := h.hist.List(ctx, "paper", 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual", runs[0].Trigger)
}

func TestReconcileOrderManuallyNotFound(t *testing.T) {
	cfg := testConfig(mockAccount("paper-1", "paper"))
	h := newHarness(t, cfg)

	_, err := h.engine.ReconcileOrderManually(context.Background(), "paper", 9999)
	require.Error(t, err)
	assert.Equal(t, venue.CodeNotFound, venue.CodeOf(err))

	// An order that exists in another mode is still not found.
	id := h.seedLedgerOrder(t, "paper-1", "paper", "seed-1", "open", 0)
	_, err = h.engine.ReconcileOrderManually(context.Background(), "live", id)
	require.Error(t, err)
	assert.Equal(t, venue.CodeNotFound, venue.CodeOf(err))
}
