// Package gate implements the venue adapter contract against the Gate spot
// REST API (v4). Responses are parsed with gjson rather than a generated
// SDK; only the fields the canonical model needs are touched.
package gate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	symbolpkg "parity/internal/pkg/symbol"
	"parity/internal/venue"

	"github.com/tidwall/gjson"
)

const Name = "gate"

const defaultBaseURL = "https://api.gateio.ws/api/v4"

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}

type Adapter struct {
	state   *venue.StateTracker
	limiter *venue.RateLimiter
	client  *http.Client
	baseURL string
	acct    venue.Account
}

func New(acct venue.Account, cfg Config) (*Adapter, error) {
	final := cfg.withDefaults()
	if _, err := url.Parse(final.RESTBaseURL); err != nil {
		return nil, fmt.Errorf("invalid gate REST base url: %w", err)
	}
	limits := acct.Limits
	if limits.Window <= 0 {
		limits = venue.RateLimits{PublicPerWindow: 900, PrivatePerWindow: 300, Window: time.Minute}
	}
	return &Adapter{
		state:   venue.NewStateTracker(Name),
		limiter: venue.NewRateLimiter(Name, limits),
		client:  &http.Client{Timeout: final.HTTPTimeout},
		baseURL: strings.TrimRight(final.RESTBaseURL, "/"),
		acct:    acct,
	}, nil
}

func (a *Adapter) Name() string { return Name }

// do executes one REST call and returns the parsed body. Private calls are
// signed; HTTP-level failures are classified into the taxonomy here so the
// callers above only see canonical errors.
func (a *Adapter) do(ctx context.Context, method, path, query, body string, private bool) (gjson.Result, error) {
	u := a.baseURL + path
	if query != "" {
		u += "?" + query
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return gjson.Result{}, venue.NewConnectionError(Name, "building request failed", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		a.sign(req, body)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return gjson.Result{}, venue.NewConnectionError(Name, "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, venue.NewConnectionError(Name, "reading response failed", err)
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, a.classifyHTTP(resp, raw)
	}
	return gjson.ParseBytes(raw), nil
}

// Gate error bodies carry {"label": "...", "message": "..."}.
func (a *Adapter) classifyHTTP(resp *http.Response, raw []byte) error {
	parsed := gjson.ParseBytes(raw)
	label := parsed.Get("label").String()
	msg := parsed.Get("message").String()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Minute
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return venue.NewRateLimitError(Name, retryAfter)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		label == "INVALID_KEY", label == "INVALID_SIGNATURE":
		return venue.NewAuthenticationError(Name, msg, nil)
	case label == "INVALID_CURRENCY_PAIR", label == "CURRENCY_PAIR_NOT_FOUND":
		return venue.NewInvalidSymbolError(Name, msg)
	case label == "BALANCE_NOT_ENOUGH":
		return venue.NewInsufficientFundsError(Name, msg)
	case label == "ORDER_NOT_FOUND", resp.StatusCode == http.StatusNotFound:
		return venue.NewNotFoundError(Name, msg)
	case resp.StatusCode >= 500:
		return venue.NewConnectionError(Name, msg, nil)
	default:
		return venue.NewOrderError(Name, msg, nil)
	}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if _, err := a.do(ctx, http.MethodGet, "/spot/time", "", "", false); err != nil {
		return err
	}
	if a.state.State() == venue.StateDisconnected {
		a.state.SetState(venue.StateConnected)
	}
	return nil
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.state.SetState(venue.StateDisconnected)
	return nil
}

func (a *Adapter) Healthy() bool {
	return a.state.State() >= venue.StateConnected
}

func (a *Adapter) Authenticate(ctx context.Context) error {
	if err := a.state.RequireConnected(); err != nil {
		return err
	}
	if strings.TrimSpace(a.acct.APIKey) == "" {
		return venue.NewAuthenticationError(Name, "api key is empty", nil)
	}
	if _, err := a.do(ctx, http.MethodGet, "/spot/accounts", "", "", true); err != nil {
		return err
	}
	a.state.SetState(venue.StateAuthenticated)
	return nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context) error {
	return a.Authenticate(ctx)
}

func (a *Adapter) SupportedSymbols(ctx context.Context) ([]string, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	res, err := a.do(ctx, http.MethodGet, "/spot/currency_pairs", "", "", false)
	if err != nil {
		return nil, err
	}
	var out []string
	res.ForEach(func(_, pair gjson.Result) bool {
		if pair.Get("trade_status").String() != "tradable" {
			return true
		}
		if s := symbolpkg.Gate.FromVenue(pair.Get("id").String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out, nil
}

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		MarketData:   true,
		OrderBook:    true,
		Trades:       true,
		Candles:      true,
		Account:      true,
		Orders:       true,
		OrderHistory: true,
		// Streaming is deliberately not wired for Gate; pollers cover it.
	}
}

func (a *Adapter) RateLimits() venue.RateLimits { return a.limiter.Limits() }

func (a *Adapter) MarketData(ctx context.Context, sym string) (*venue.MarketData, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	if pair == "" {
		return nil, venue.NewInvalidSymbolError(Name, sym)
	}
	res, err := a.do(ctx, http.MethodGet, "/spot/tickers", "currency_pair="+pair, "", false)
	if err != nil {
		return nil, err
	}
	ticker := res.Get("0")
	if !ticker.Exists() {
		return nil, venue.NewInvalidSymbolError(Name, sym)
	}
	return &venue.MarketData{
		Symbol:    sym,
		Last:      ticker.Get("last").Float(),
		Bid:       ticker.Get("highest_bid").Float(),
		Ask:       ticker.Get("lowest_ask").Float(),
		High24h:   ticker.Get("high_24h").Float(),
		Low24h:    ticker.Get("low_24h").Float(),
		Volume24h: ticker.Get("base_volume").Float(),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (a *Adapter) OrderBook(ctx context.Context, sym string, depth int) (*venue.OrderBook, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	if depth <= 0 || depth > 100 {
		depth = 20
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	query := fmt.Sprintf("currency_pair=%s&limit=%d", pair, depth)
	res, err := a.do(ctx, http.MethodGet, "/spot/order_book", query, "", false)
	if err != nil {
		return nil, err
	}
	book := &venue.OrderBook{Symbol: sym, UpdatedAt: time.Now().UTC()}
	res.Get("bids").ForEach(func(_, lvl gjson.Result) bool {
		book.Bids = append(book.Bids, venue.BookLevel{Price: lvl.Get("0").Float(), Quantity: lvl.Get("1").Float()})
		return true
	})
	res.Get("asks").ForEach(func(_, lvl gjson.Result) bool {
		book.Asks = append(book.Asks, venue.BookLevel{Price: lvl.Get("0").Float(), Quantity: lvl.Get("1").Float()})
		return true
	})
	return book, nil
}

func (a *Adapter) RecentTrades(ctx context.Context, sym string, limit int) ([]venue.Trade, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	query := fmt.Sprintf("currency_pair=%s&limit=%d", pair, limit)
	res, err := a.do(ctx, http.MethodGet, "/spot/trades", query, "", false)
	if err != nil {
		return nil, err
	}
	var trades []venue.Trade
	res.ForEach(func(_, t gjson.Result) bool {
		side := venue.SideBuy
		if t.Get("side").String() == "sell" {
			side = venue.SideSell
		}
		trades = append(trades, venue.Trade{
			ID:       t.Get("id").String(),
			Symbol:   sym,
			Side:     side,
			Price:    t.Get("price").Float(),
			Quantity: t.Get("amount").Float(),
			Time:     time.UnixMilli(t.Get("create_time_ms").Int()).UTC(),
		})
		return true
	})
	return trades, nil
}

func (a *Adapter) Candles(ctx context.Context, sym, interval string, limit int) ([]venue.Candle, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	query := fmt.Sprintf("currency_pair=%s&interval=%s&limit=%d", pair, interval, limit)
	res, err := a.do(ctx, http.MethodGet, "/spot/candlesticks", query, "", false)
	if err != nil {
		return nil, err
	}
	// Each entry: [ts, quote volume, close, high, low, open, base volume, ...]
	var candles []venue.Candle
	res.ForEach(func(_, c gjson.Result) bool {
		candles = append(candles, venue.Candle{
			Symbol:   sym,
			Interval: interval,
			OpenTime: time.Unix(c.Get("0").Int(), 0).UTC(),
			Open:     c.Get("5").Float(),
			High:     c.Get("3").Float(),
			Low:      c.Get("4").Float(),
			Close:    c.Get("2").Float(),
			Volume:   c.Get("6").Float(),
		})
		return true
	})
	return candles, nil
}

func (a *Adapter) Balances(ctx context.Context) ([]venue.Balance, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	res, err := a.do(ctx, http.MethodGet, "/spot/accounts", "", "", true)
	if err != nil {
		return nil, err
	}
	var balances []venue.Balance
	res.ForEach(func(_, b gjson.Result) bool {
		avail := b.Get("available").Float()
		locked := b.Get("locked").Float()
		balances = append(balances, venue.Balance{
			Currency:  b.Get("currency").String(),
			Total:     avail + locked,
			Available: avail,
			Locked:    locked,
		})
		return true
	})
	return balances, nil
}

// Positions is empty on the spot API; the capability still exists so the
// contract surface stays uniform.
func (a *Adapter) Positions(_ context.Context) ([]venue.Position, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
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

func (a *Adapter) CreateOrder(ctx context.Context, spec venue.OrderSpec) (*venue.Order, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	pair := symbolpkg.Gate.ToVenue(spec.Symbol)
	body := fmt.Sprintf(
		`{"currency_pair":%q,"side":%q,"type":%q,"amount":%q,"price":%q,"text":%q,"time_in_force":"gtc"}`,
		pair, string(spec.Side), string(fromGateSpecType(spec.Type)),
		strconv.FormatFloat(spec.Quantity, 'f', -1, 64),
		strconv.FormatFloat(spec.Price, 'f', -1, 64),
		"t-"+spec.ClientOrderID,
	)
	res, err := a.do(ctx, http.MethodPost, "/spot/orders", "", body, true)
	if err != nil {
		return nil, err
	}
	order := orderFromJSON(res)
	order.Symbol = spec.Symbol
	return &order, nil
}

func fromGateSpecType(t venue.OrderType) venue.OrderType {
	// Gate spot only distinguishes limit/market.
	if t == venue.OrderTypeMarket {
		return venue.OrderTypeMarket
	}
	return venue.OrderTypeLimit
}

func (a *Adapter) CancelOrder(ctx context.Context, sym, venueOrderID string) error {
	if err := a.state.RequireAuthenticated(); err != nil {
		return err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return err
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	_, err := a.do(ctx, http.MethodDelete, "/spot/orders/"+venueOrderID, "currency_pair="+pair, "", true)
	return err
}

func (a *Adapter) GetOrder(ctx context.Context, sym, venueOrderID string) (*venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	pair := symbolpkg.Gate.ToVenue(sym)
	res, err := a.do(ctx, http.MethodGet, "/spot/orders/"+venueOrderID, "currency_pair="+pair, "", true)
	if err != nil {
		return nil, err
	}
	order := orderFromJSON(res)
	order.Symbol = sym
	return &order, nil
}

func (a *Adapter) OpenOrders(ctx context.Context, sym string) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	query := "status=open"
	if sym != "" {
		query += "&currency_pair=" + symbolpkg.Gate.ToVenue(sym)
	}
	res, err := a.do(ctx, http.MethodGet, "/spot/orders", query, "", true)
	if err != nil {
		return nil, err
	}
	var orders []venue.Order
	res.ForEach(func(_, o gjson.Result) bool {
		orders = append(orders, orderFromJSON(o))
		return true
	})
	return orders, nil
}

func (a *Adapter) OrderHistory(ctx context.Context, sym string, limit int) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := fmt.Sprintf("status=finished&currency_pair=%s&limit=%d", symbolpkg.Gate.ToVenue(sym), limit)
	res, err := a.do(ctx, http.MethodGet, "/spot/orders", query, "", true)
	if err != nil {
		return nil, err
	}
	var orders []venue.Order
	res.ForEach(func(_, o gjson.Result) bool {
		orders = append(orders, orderFromJSON(o))
		return true
	})
	return orders, nil
}

func (a *Adapter) SubscribeMarketData(_ context.Context, _ string, _ func(venue.MarketData)) error {
	return venue.NewOrderError(Name, "streaming market data not supported", nil)
}

func (a *Adapter) UnsubscribeMarketData(_ context.Context, _ string) error {
	return nil
}

func (a *Adapter) SubscribeOrderUpdates(_ context.Context, _ func(venue.OrderUpdate)) error {
	return venue.NewOrderError(Name, "streaming order updates not supported", nil)
}

func (a *Adapter) UnsubscribeOrderUpdates(_ context.Context) error {
	return nil
}

var _ venue.Adapter = (*Adapter)(nil)
