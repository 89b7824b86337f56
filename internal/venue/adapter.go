package venue

import (
	"context"
	"sync"
)

// Adapter is the capability set every venue integration implements. All
// methods take a context and return typed values plus a taxonomy error;
// account and order calls fail with AuthenticationError until Authenticate
// has succeeded, and everything but Connect fails with ConnectionError while
// disconnected.
type Adapter interface {
	// Connection lifecycle.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Healthy() bool

	// Authentication.
	Authenticate(ctx context.Context) error
	ValidateCredentials(ctx context.Context) error

	// Introspection.
	Name() string
	SupportedSymbols(ctx context.Context) ([]string, error)
	Capabilities() Capabilities
	RateLimits() RateLimits

	// Market data.
	MarketData(ctx context.Context, symbol string) (*MarketData, error)
	OrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	RecentTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// Account.
	Balances(ctx context.Context) ([]Balance, error)
	Positions(ctx context.Context) ([]Position, error)
	AccountInfo(ctx context.Context) (*AccountInfo, error)

	// Order lifecycle.
	CreateOrder(ctx context.Context, spec OrderSpec) (*Order, error)
	CancelOrder(ctx context.Context, symbol, venueOrderID string) error
	GetOrder(ctx context.Context, symbol, venueOrderID string) (*Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	OrderHistory(ctx context.Context, symbol string, limit int) ([]Order, error)

	// Subscriptions.
	SubscribeMarketData(ctx context.Context, symbol string, fn func(MarketData)) error
	UnsubscribeMarketData(ctx context.Context, symbol string) error
	SubscribeOrderUpdates(ctx context.Context, fn func(OrderUpdate)) error
	UnsubscribeOrderUpdates(ctx context.Context) error
}

// ConnState is the adapter connection state machine:
// Disconnected -> Connected -> Authenticated.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateAuthenticated
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateTracker enforces the connection state machine. Adapters embed one and
// guard calls with RequireConnected/RequireAuthenticated so misuse fails
// before any network round trip.
type StateTracker struct {
	mu    sync.RWMutex
	venue string
	state ConnState
}

func NewStateTracker(venueName string) *StateTracker {
	return &StateTracker{venue: venueName}
}

func (t *StateTracker) State() ConnState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *StateTracker) SetState(s ConnState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// RequireConnected fails unless the adapter is at least connected.
func (t *StateTracker) RequireConnected() error {
	if t.State() < StateConnected {
		return NewConnectionError(t.venue, "not connected: call Connect first", nil)
	}
	return nil
}

// RequireAuthenticated fails unless the adapter has authenticated.
func (t *StateTracker) RequireAuthenticated() error {
	if err := t.RequireConnected(); err != nil {
		return err
	}
	if t.State() < StateAuthenticated {
		return NewAuthenticationError(t.venue, "not authenticated: call Authenticate first", nil)
	}
	return nil
}
