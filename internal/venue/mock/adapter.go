// Package mock provides a deterministic in-memory venue adapter. It backs
// the contract validator's smoke tests and the engine's paper-mode tests:
// every operation behaves like a well-behaved venue with no network at all.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parity/internal/venue"
)

const Name = "mock"

var defaultSymbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}

// deterministic reference prices per symbol
var refPrices = map[string]float64{
	"BTC/USDT": 50000,
	"ETH/USDT": 2500,
	"SOL/USDT": 120,
}

type Adapter struct {
	state   *venue.StateTracker
	limiter *venue.RateLimiter
	acct    venue.Account

	mu       sync.Mutex
	seq      int
	orders   map[string]*venue.Order // keyed by venue order id
	mdSubs   map[string]func(venue.MarketData)
	orderSub func(venue.OrderUpdate)

	// Injectable failures for contract/engine failure-path tests.
	connectErr error
	authErr    error
	orderErr   error
}

func New(acct venue.Account) *Adapter {
	limits := acct.Limits
	if limits.PublicPerWindow <= 0 {
		limits = venue.RateLimits{PublicPerWindow: 1000, PrivatePerWindow: 500, Window: time.Minute}
	}
	return &Adapter{
		state:   venue.NewStateTracker(Name),
		limiter: venue.NewRateLimiter(Name, limits),
		acct:    acct,
		orders:  make(map[string]*venue.Order),
		mdSubs:  make(map[string]func(venue.MarketData)),
	}
}

// FailConnect makes subsequent Connect calls fail with err.
func (a *Adapter) FailConnect(err error) { a.mu.Lock(); a.connectErr = err; a.mu.Unlock() }

// FailAuth makes subsequent Authenticate calls fail with err.
func (a *Adapter) FailAuth(err error) { a.mu.Lock(); a.authErr = err; a.mu.Unlock() }

// FailOrders makes order lookups fail with err, for per-order isolation tests.
func (a *Adapter) FailOrders(err error) { a.mu.Lock(); a.orderErr = err; a.mu.Unlock() }

// SeedOrder installs venue-side order truth for reconciliation tests.
func (a *Adapter) SeedOrder(o venue.Order) {
	a.mu.Lock()
	cp := o
	a.orders[o.VenueOrderID] = &cp
	a.mu.Unlock()
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Connect(_ context.Context) error {
	a.mu.Lock()
	err := a.connectErr
	a.mu.Unlock()
	if err != nil {
		return venue.NewConnectionError(Name, "connect failed", err)
	}
	if a.state.State() == venue.StateDisconnected {
		a.state.SetState(venue.StateConnected)
	}
	return nil
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.state.SetState(venue.StateDisconnected)
	a.mu.Lock()
	a.mdSubs = make(map[string]func(venue.MarketData))
	a.orderSub = nil
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Healthy() bool {
	return a.state.State() >= venue.StateConnected
}

func (a *Adapter) Authenticate(_ context.Context) error {
	if err := a.state.RequireConnected(); err != nil {
		return err
	}
	a.mu.Lock()
	err := a.authErr
	a.mu.Unlock()
	if err != nil {
		return venue.NewAuthenticationError(Name, "authentication rejected", err)
	}
	a.state.SetState(venue.StateAuthenticated)
	return nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context) error {
	return a.Authenticate(ctx)
}

func (a *Adapter) SupportedSymbols(_ context.Context) ([]string, error) {
	out := make([]string, len(defaultSymbols))
	copy(out, defaultSymbols)
	return out, nil
}

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		MarketData:      true,
		OrderBook:       true,
		Trades:          true,
		Candles:         true,
		Account:         true,
		Orders:          true,
		OrderHistory:    true,
		StreamingQuotes: true,
		StreamingOrders: true,
	}
}

func (a *Adapter) RateLimits() venue.RateLimits { return a.limiter.Limits() }

func (a *Adapter) priceFor(symbol string) (float64, error) {
	if p, ok := refPrices[symbol]; ok {
		return p, nil
	}
	return 0, venue.NewInvalidSymbolError(Name, symbol)
}

func (a *Adapter) MarketData(_ context.Context, symbol string) (*venue.MarketData, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	p, err := a.priceFor(symbol)
	if err != nil {
		return nil, err
	}
	return &venue.MarketData{
		Symbol:    symbol,
		Last:      p,
		Bid:       p * 0.9995,
		Ask:       p * 1.0005,
		High24h:   p * 1.02,
		Low24h:    p * 0.98,
		Volume24h: 1000,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (a *Adapter) OrderBook(_ context.Context, symbol string, depth int) (*venue.OrderBook, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	p, err := a.priceFor(symbol)
	if err != nil {
		return nil, err
	}
	if depth <= 0 || depth > 50 {
		depth = 10
	}
	book := &venue.OrderBook{Symbol: symbol, UpdatedAt: time.Now().UTC()}
	for i := 1; i <= depth; i++ {
		step := p * 0.0001 * float64(i)
		book.Bids = append(book.Bids, venue.BookLevel{Price: p - step, Quantity: float64(i)})
		book.Asks = append(book.Asks, venue.BookLevel{Price: p + step, Quantity: float64(i)})
	}
	return book, nil
}

func (a *Adapter) RecentTrades(_ context.Context, symbol string, limit int) ([]venue.Trade, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	p, err := a.priceFor(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	now := time.Now().UTC()
	trades := make([]venue.Trade, 0, limit)
	for i := 0; i < limit; i++ {
		side := venue.SideBuy
		if i%2 == 1 {
			side = venue.SideSell
		}
		trades = append(trades, venue.Trade{
			ID:       fmt.Sprintf("mock-trade-%d", i),
			Symbol:   symbol,
			Side:     side,
			Price:    p,
			Quantity: 0.1,
			Time:     now.Add(-time.Duration(i) * time.Second),
		})
	}
	return trades, nil
}

func (a *Adapter) Candles(_ context.Context, symbol, interval string, limit int) ([]venue.Candle, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	p, err := a.priceFor(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	now := time.Now().UTC().Truncate(time.Minute)
	candles := make([]venue.Candle, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		candles = append(candles, venue.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: now.Add(-time.Duration(i) * time.Minute),
			Open:     p,
			High:     p * 1.001,
			Low:      p * 0.999,
			Close:    p,
			Volume:   10,
		})
	}
	return candles, nil
}

func (a *Adapter) Balances(_ context.Context) ([]venue.Balance, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	return []venue.Balance{
		{Currency: "USDT", Total: 100000, Available: 95000, Locked: 5000},
		{Currency: "BTC", Total: 1.5, Available: 1.5},
	}, nil
}

func (a *Adapter) Positions(_ context.Context) ([]venue.Position, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	return nil, nil
}

func (a *Adapter) AccountInfo(ctx context.Context) (*venue.AccountInfo, error) {
	balances, err := a.Balances(ctx)
	if err != nil {
		return nil, err
	}
	return &venue.AccountInfo{
		AccountID: a.acct.ID,
		Venue:     Name,
		Balances:  balances,
		CanTrade:  true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (a *Adapter) CreateOrder(_ context.Context, spec venue.OrderSpec) (*venue.Order, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	p, err := a.priceFor(spec.Symbol)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	now := time.Now().UTC()
	order := &venue.Order{
		VenueOrderID:  fmt.Sprintf("mock-%d", a.seq),
		ClientOrderID: spec.ClientOrderID,
		Symbol:        spec.Symbol,
		Side:          spec.Side,
		Type:          spec.Type,
		Quantity:      spec.Quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// Market orders fill immediately at the reference price, limit orders rest.
	if spec.Type == venue.OrderTypeMarket {
		order.Status = venue.OrderStatusFilled
		order.FilledQuantity = spec.Quantity
		order.AvgFillPrice = p
	} else {
		order.Status = venue.OrderStatusOpen
	}
	a.orders[order.VenueOrderID] = order
	cp := *order
	if a.orderSub != nil {
		go a.orderSub(venue.OrderUpdate{Order: cp, Time: now})
	}
	return &cp, nil
}

func (a *Adapter) CancelOrder(_ context.Context, _, venueOrderID string) error {
	if err := a.state.RequireAuthenticated(); err != nil {
		return err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.orders[venueOrderID]
	if !ok {
		return venue.NewNotFoundError(Name, "order not found: "+venueOrderID)
	}
	if order.Status.Terminal() {
		return venue.NewOrderError(Name, "order already terminal: "+venueOrderID, nil)
	}
	order.Status = venue.OrderStatusCanceled
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Adapter) GetOrder(_ context.Context, _, venueOrderID string) (*venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.orderErr != nil {
		return nil, a.orderErr
	}
	order, ok := a.orders[venueOrderID]
	if !ok {
		return nil, venue.NewNotFoundError(Name, "order not found: "+venueOrderID)
	}
	cp := *order
	return &cp, nil
}

func (a *Adapter) OpenOrders(_ context.Context, symbol string) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []venue.Order
	for _, o := range a.orders {
		if o.Status.Terminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VenueOrderID < out[j].VenueOrderID })
	return out, nil
}

func (a *Adapter) OrderHistory(_ context.Context, symbol string, limit int) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []venue.Order
	for _, o := range a.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Adapter) SubscribeMarketData(_ context.Context, symbol string, fn func(venue.MarketData)) error {
	if err := a.state.RequireConnected(); err != nil {
		return err
	}
	a.mu.Lock()
	a.mdSubs[symbol] = fn
	a.mu.Unlock()
	return nil
}

func (a *Adapter) UnsubscribeMarketData(_ context.Context, symbol string) error {
	a.mu.Lock()
	delete(a.mdSubs, symbol)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) SubscribeOrderUpdates(_ context.Context, fn func(venue.OrderUpdate)) error {
	if err := a.state.RequireAuthenticated(); err != nil {
		return err
	}
	a.mu.Lock()
	a.orderSub = fn
	a.mu.Unlock()
	return nil
}

func (a *Adapter) UnsubscribeOrderUpdates(_ context.Context) error {
	a.mu.Lock()
	a.orderSub = nil
	a.mu.Unlock()
	return nil
}

var _ venue.Adapter = (*Adapter)(nil)
