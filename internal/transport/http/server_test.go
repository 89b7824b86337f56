package reconhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"parity/internal/config"
	"parity/internal/reconcile"
	"parity/internal/store/history"
	"parity/internal/store/model"
	"parity/internal/store/sqlite"
	"parity/internal/venue"
	"parity/internal/venue/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *Server
	store  *sqlite.Store
	seeds  map[string][]venue.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.NewStore(filepath.Join(dir, "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hist, err := history.NewStore(filepath.Join(dir, "history.db"), 100)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	fx := &fixture{store: st, seeds: make(map[string][]venue.Order)}

	factory := venue.NewFactory()
	factory.Register(mock.Name, func(acct venue.Account) (venue.Adapter, error) {
		a := mock.New(acct)
		for _, o := range fx.seeds[acct.ID] {
			a.SeedOrder(o)
		}
		return a, nil
	})

	cfg := &config.Config{
		Reconcile: config.ReconcileConfig{
			Interval:         "5m",
			OrderBatchSize:   200,
			AlertThreshold:   10,
			FillTolerance:    1e-8,
			WorkerLimit:      2,
			RetryMaxAttempts: 2,
		},
		Accounts: []config.AccountConfig{
			{ID: "paper-1", Mode: "paper", Venue: mock.Name, APIKey: "k"},
		},
	}
	engine := reconcile.NewEngine(cfg, factory, st.Orders, sqlite.NewResolver(st), hist, nil)

	srv, err := NewServer(ServerConfig{Addr: ":0", Engine: engine, History: hist})
	require.NoError(t, err)
	fx.server = srv
	return fx
}

func (fx *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

// errCode digs the taxonomy code out of a failure envelope.
func errCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envErr, ok := body["error"].(map[string]any)
	require.True(t, ok, "failure responses carry an error object: %v", body)
	code, _ := envErr["code"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	rec, body := fx.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	fx := newFixture(t)
	rec, body := fx.do(t, http.MethodGet, "/api/reconcile/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["running"])
	assert.Contains(t, data, "metrics")

	// Every response is enveloped with call metadata.
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "parity", meta["venue"])
	assert.NotEmpty(t, meta["request_id"])
}

func TestTriggerRunAndHistory(t *testing.T) {
	fx := newFixture(t)

	rec, body := fx.do(t, http.MethodPost, "/api/reconcile/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = fx.do(t, http.MethodGet, "/api/reconcile/history?mode=paper", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["count"])
}

func TestHistoryRejectsInvalidMode(t *testing.T) {
	fx := newFixture(t)
	for _, mode := range []string{"", "sandbox", "LIVE2"} {
		rec, body := fx.do(t, http.MethodGet, "/api/reconcile/history?mode="+mode, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "mode %q", mode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, string(venue.CodeValidation), errCode(t, body))
	}
}

func TestManualOrderReconciliation(t *testing.T) {
	fx := newFixture(t)
	order := &model.ExchangeOrderModel{
		AccountID:       "paper-1",
		Mode:            "paper",
		Venue:           mock.Name,
		ExchangeOrderID: "x-1",
		Symbol:          "BTC/USDT",
		Side:            "buy",
		Status:          "open",
		Quantity:        100,
	}
	require.NoError(t, fx.store.Orders.Save(context.Background(), order))
	fx.seeds["paper-1"] = []venue.Order{{
		VenueOrderID:   "x-1",
		Symbol:         "BTC/USDT",
		Status:         venue.OrderStatusFilled,
		Quantity:       100,
		FilledQuantity: 100,
		AvgFillPrice:   50000,
	}}

	path := "/api/reconcile/orders/" + strconv.FormatInt(order.ID, 10)
	rec, body := fx.do(t, http.MethodPost, path, `{"mode":"paper"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["resolved"])
}

func TestManualOrderReconciliationErrors(t *testing.T) {
	fx := newFixture(t)

	rec, body := fx.do(t, http.MethodPost, "/api/reconcile/orders/42", `{"mode":"sandbox"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(venue.CodeValidation), errCode(t, body))

	rec, body = fx.do(t, http.MethodPost, "/api/reconcile/orders/42", `{"mode":"paper"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(venue.CodeNotFound), errCode(t, body))

	rec, _ = fx.do(t, http.MethodPost, "/api/reconcile/orders/abc", `{"mode":"paper"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
