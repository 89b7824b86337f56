// Package binance implements the venue adapter contract on top of the
// Binance USD-M futures REST/stream API via the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"parity/internal/venue"

	symbolpkg "parity/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const Name = "binance"

type Adapter struct {
	state   *venue.StateTracker
	limiter *venue.RateLimiter
	client  *futures.Client
	acct    venue.Account
	cfg     Config

	mu      sync.Mutex
	mdStops map[string]chan struct{}
	usrStop chan struct{}
}

// New builds an unconnected adapter. Connect and Authenticate drive the
// state machine before any data call is allowed through.
func New(acct venue.Account, cfg Config) (*Adapter, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(acct.APIKey, acct.APISecret)
	client.BaseURL = final.RESTBaseURL

	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	if final.ProxyEnabled {
		wsProxy := final.WSProxyURL
		if wsProxy == "" {
			wsProxy = final.RESTProxyURL
		}
		if wsProxy != "" {
			futures.SetWsProxyUrl(wsProxy)
		}
	}

	limits := acct.Limits
	if limits.Window <= 0 {
		limits = venue.RateLimits{PublicPerWindow: 1200, PrivatePerWindow: 300, Window: time.Minute}
	}
	return &Adapter{
		state:   venue.NewStateTracker(Name),
		limiter: venue.NewRateLimiter(Name, limits),
		client:  client,
		acct:    acct,
		cfg:     final,
		mdStops: make(map[string]chan struct{}),
	}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.client.NewPingService().Do(ctx); err != nil {
		return venue.NewConnectionError(Name, "ping failed", err)
	}
	if a.state.State() == venue.StateDisconnected {
		a.state.SetState(venue.StateConnected)
	}
	return nil
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	for sym, stop := range a.mdStops {
		close(stop)
		delete(a.mdStops, sym)
	}
	if a.usrStop != nil {
		close(a.usrStop)
		a.usrStop = nil
	}
	a.mu.Unlock()
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
	if _, err := a.client.NewGetAccountService().Do(ctx); err != nil {
		return classify(err, "")
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
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify(err, "")
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		out = append(out, s.BaseAsset+"/"+s.QuoteAsset)
	}
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

func (a *Adapter) MarketData(ctx context.Context, sym string) (*venue.MarketData, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	if bSym == "" {
		return nil, venue.NewInvalidSymbolError(Name, sym)
	}
	stats, err := a.client.NewListPriceChangeStatsService().Symbol(bSym).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	if len(stats) == 0 || stats[0] == nil {
		return nil, venue.NewInvalidSymbolError(Name, sym)
	}
	s := stats[0]
	md := &venue.MarketData{
		Symbol:    sym,
		Last:      parseFloat(s.LastPrice),
		High24h:   parseFloat(s.HighPrice),
		Low24h:    parseFloat(s.LowPrice),
		Volume24h: parseFloat(s.Volume),
		UpdatedAt: time.Now().UTC(),
	}
	if books, err := a.client.NewListBookTickersService().Symbol(bSym).Do(ctx); err == nil && len(books) > 0 && books[0] != nil {
		md.Bid = parseFloat(books[0].BidPrice)
		md.Ask = parseFloat(books[0].AskPrice)
	}
	return md, nil
}

func (a *Adapter) OrderBook(ctx context.Context, sym string, depth int) (*venue.OrderBook, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 20
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	res, err := a.client.NewDepthService().Symbol(bSym).Limit(depth).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	book := &venue.OrderBook{Symbol: sym, UpdatedAt: time.Now().UTC()}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, venue.BookLevel{Price: parseFloat(b.Price), Quantity: parseFloat(b.Quantity)})
	}
	for _, ask := range res.Asks {
		book.Asks = append(book.Asks, venue.BookLevel{Price: parseFloat(ask.Price), Quantity: parseFloat(ask.Quantity)})
	}
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
	bSym := symbolpkg.Binance.ToVenue(sym)
	res, err := a.client.NewRecentTradesService().Symbol(bSym).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	trades := make([]venue.Trade, 0, len(res))
	for _, t := range res {
		if t == nil {
			continue
		}
		side := venue.SideBuy
		if t.IsBuyerMaker {
			side = venue.SideSell
		}
		trades = append(trades, venue.Trade{
			ID:       strconv.FormatInt(t.ID, 10),
			Symbol:   sym,
			Side:     side,
			Price:    parseFloat(t.Price),
			Quantity: parseFloat(t.Quantity),
			Time:     time.UnixMilli(t.Time).UTC(),
		})
	}
	return trades, nil
}

func (a *Adapter) Candles(ctx context.Context, sym, interval string, limit int) ([]venue.Candle, error) {
	if err := a.state.RequireConnected(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePublic); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1500 {
		limit = 100
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	res, err := a.client.NewKlinesService().Symbol(bSym).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	candles := make([]venue.Candle, 0, len(res))
	for _, k := range res {
		if k == nil {
			continue
		}
		candles = append(candles, venue.Candle{
			Symbol:   sym,
			Interval: interval,
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return candles, nil
}

func (a *Adapter) Balances(ctx context.Context) ([]venue.Balance, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	res, err := a.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, classify(err, "")
	}
	balances := make([]venue.Balance, 0, len(res))
	for _, b := range res {
		if b == nil {
			continue
		}
		total := parseFloat(b.Balance)
		avail := parseFloat(b.AvailableBalance)
		balances = append(balances, venue.Balance{
			Currency:  b.Asset,
			Total:     total,
			Available: avail,
			Locked:    total - avail,
		})
	}
	return balances, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]venue.Position, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	acc, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(err, "")
	}
	var out []venue.Position
	for _, p := range acc.Positions {
		if p == nil {
			continue
		}
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "long"
		if amt < 0 {
			side = "short"
			amt = -amt
		}
		out = append(out, venue.Position{
			Symbol:     symbolpkg.Binance.FromVenue(p.Symbol),
			Side:       side,
			Quantity:   amt,
			EntryPrice: parseFloat(p.EntryPrice),
			Leverage:   parseFloat(p.Leverage),
			PnL:        parseFloat(p.UnrealizedProfit),
		})
	}
	return out, nil
}

func (a *Adapter) AccountInfo(ctx context.Context) (*venue.AccountInfo, error) {
	balances, err := a.Balances(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := a.Positions(ctx)
	if err != nil {
		return nil, err
	}
	return &venue.AccountInfo{
		AccountID: a.acct.ID,
		Venue:     Name,
		Balances:  balances,
		Positions: positions,
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
	bSym := symbolpkg.Binance.ToVenue(spec.Symbol)
	svc := a.client.NewCreateOrderService().
		Symbol(bSym).
		Side(toBinanceSide(spec.Side)).
		Type(toBinanceType(spec.Type)).
		Quantity(formatFloat(spec.Quantity)).
		NewClientOrderID(spec.ClientOrderID)
	if spec.Type == venue.OrderTypeLimit || spec.Type == venue.OrderTypeStopLimit {
		svc = svc.Price(formatFloat(spec.Price)).TimeInForce(futures.TimeInForceTypeGTC)
	}
	if spec.Type == venue.OrderTypeStopLoss || spec.Type == venue.OrderTypeStopLimit {
		svc = svc.StopPrice(formatFloat(spec.Price))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err, spec.Symbol)
	}
	now := time.Now().UTC()
	return &venue.Order{
		VenueOrderID:   strconv.FormatInt(res.OrderID, 10),
		ClientOrderID:  res.ClientOrderID,
		Symbol:         spec.Symbol,
		Side:           spec.Side,
		Type:           spec.Type,
		Status:         fromBinanceStatus(res.Status),
		Quantity:       spec.Quantity,
		FilledQuantity: parseFloat(res.ExecutedQuantity),
		AvgFillPrice:   parseFloat(res.AvgPrice),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, sym, venueOrderID string) error {
	if err := a.state.RequireAuthenticated(); err != nil {
		return err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return err
	}
	orderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return venue.NewOrderError(Name, "invalid order id: "+venueOrderID, err)
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	if _, err := a.client.NewCancelOrderService().Symbol(bSym).OrderID(orderID).Do(ctx); err != nil {
		return classify(err, sym)
	}
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, sym, venueOrderID string) (*venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	orderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return nil, venue.NewOrderError(Name, "invalid order id: "+venueOrderID, err)
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	res, err := a.client.NewGetOrderService().Symbol(bSym).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	order := fromBinanceOrder(res)
	order.Symbol = sym
	return order, nil
}

func (a *Adapter) OpenOrders(ctx context.Context, sym string) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	svc := a.client.NewListOpenOrdersService()
	if sym != "" {
		svc = svc.Symbol(symbolpkg.Binance.ToVenue(sym))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	return fromBinanceOrders(res), nil
}

func (a *Adapter) OrderHistory(ctx context.Context, sym string, limit int) ([]venue.Order, error) {
	if err := a.state.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := a.limiter.Allow(venue.ScopePrivate); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	res, err := a.client.NewListOrdersService().Symbol(symbolpkg.Binance.ToVenue(sym)).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify(err, sym)
	}
	return fromBinanceOrders(res), nil
}

func (a *Adapter) SubscribeMarketData(_ context.Context, sym string, fn func(venue.MarketData)) error {
	if err := a.state.RequireConnected(); err != nil {
		return err
	}
	bSym := symbolpkg.Binance.ToVenue(sym)
	handler := func(event *futures.WsBookTickerEvent) {
		if event == nil {
			return
		}
		fn(venue.MarketData{
			Symbol:    sym,
			Bid:       parseFloat(event.BestBidPrice),
			Ask:       parseFloat(event.BestAskPrice),
			UpdatedAt: time.Now().UTC(),
		})
	}
	errHandler := func(err error) {}
	_, stopC, err := futures.WsBookTickerServe(bSym, handler, errHandler)
	if err != nil {
		return venue.NewConnectionError(Name, "market data stream failed", err)
	}
	a.mu.Lock()
	if prev, ok := a.mdStops[sym]; ok {
		close(prev)
	}
	a.mdStops[sym] = stopC
	a.mu.Unlock()
	return nil
}

func (a *Adapter) UnsubscribeMarketData(_ context.Context, sym string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if stop, ok := a.mdStops[sym]; ok {
		close(stop)
		delete(a.mdStops, sym)
	}
	return nil
}

func (a *Adapter) SubscribeOrderUpdates(ctx context.Context, fn func(venue.OrderUpdate)) error {
	if err := a.state.RequireAuthenticated(); err != nil {
		return err
	}
	listenKey, err := a.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return classify(err, "")
	}
	handler := func(event *futures.WsUserDataEvent) {
		if event == nil || event.Event != futures.UserDataEventTypeOrderTradeUpdate {
			return
		}
		u := event.OrderTradeUpdate
		fn(venue.OrderUpdate{
			Order: venue.Order{
				VenueOrderID:   strconv.FormatInt(u.ID, 10),
				ClientOrderID:  u.ClientOrderID,
				Symbol:         symbolpkg.Binance.FromVenue(u.Symbol),
				Status:         fromBinanceStatus(futures.OrderStatusType(u.Status)),
				Quantity:       parseFloat(u.OriginalQty),
				FilledQuantity: parseFloat(u.AccumulatedFilledQty),
				AvgFillPrice:   parseFloat(u.AveragePrice),
				UpdatedAt:      time.Now().UTC(),
			},
			Time: time.Now().UTC(),
		})
	}
	errHandler := func(err error) {}
	_, stopC, err := futures.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		return venue.NewConnectionError(Name, "user data stream failed", err)
	}
	a.mu.Lock()
	if a.usrStop != nil {
		close(a.usrStop)
	}
	a.usrStop = stopC
	a.mu.Unlock()
	return nil
}

func (a *Adapter) UnsubscribeOrderUpdates(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.usrStop != nil {
		close(a.usrStop)
		a.usrStop = nil
	}
	return nil
}

var _ venue.Adapter = (*Adapter)(nil)
