// Package venue defines the contract every trading-venue integration must
// satisfy: one capability set, one response envelope, one error taxonomy.
// Adapters translate venue-specific wire formats into these types so the
// rest of the system never sees a venue's native shape.
package venue

import (
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLoss  OrderType = "stop_loss"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// requiresPrice reports whether the order type cannot be placed without a price.
func (t OrderType) requiresPrice() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLimit:
		return true
	default:
		return false
	}
}

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Terminal reports whether the status excludes the order from further
// reconciliation scans.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// OrderSpec describes an order before it is sent to a venue. Construction is
// validated up front so a malformed spec never reaches the network layer.
type OrderSpec struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64 // required iff Type requires a price
	ClientOrderID string
}

// Validate rejects specs that the venue would refuse anyway.
func (s OrderSpec) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return NewValidationError("order spec: symbol is required")
	}
	if s.Side != SideBuy && s.Side != SideSell {
		return NewValidationError("order spec: side must be buy or sell, got %q", s.Side)
	}
	switch s.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss, OrderTypeStopLimit:
	default:
		return NewValidationError("order spec: unknown order type %q", s.Type)
	}
	if s.Quantity <= 0 {
		return NewValidationError("order spec: quantity must be positive, got %v", s.Quantity)
	}
	if s.Type.requiresPrice() && s.Price <= 0 {
		return NewValidationError("order spec: price is required for %s orders", s.Type)
	}
	if strings.TrimSpace(s.ClientOrderID) == "" {
		return NewValidationError("order spec: client order id is required")
	}
	return nil
}

// Order is a venue-reported order. For reconciliation only Status,
// FilledQuantity and AvgFillPrice matter; the rest is carried for the order
// lifecycle operations.
type Order struct {
	VenueOrderID   string
	ClientOrderID  string
	Symbol         string
	Side           Side
	Type           OrderType
	Status         OrderStatus
	Quantity       float64
	FilledQuantity float64
	AvgFillPrice   float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot is the ephemeral view fetched per reconciliation check. It is
// diffed against the local record and never persisted directly.
type Snapshot struct {
	Status         OrderStatus `json:"status"`
	FilledQuantity float64     `json:"filled_quantity"`
	AvgFillPrice   float64     `json:"avg_fill_price"`
}

// Snapshot projects the reconciliation-relevant fields of an order.
func (o Order) Snapshot() Snapshot {
	return Snapshot{
		Status:         o.Status,
		FilledQuantity: o.FilledQuantity,
		AvgFillPrice:   o.AvgFillPrice,
	}
}

type MarketData struct {
	Symbol    string
	Last      float64
	Bid       float64
	Ask       float64
	High24h   float64
	Low24h    float64
	Volume24h float64
	UpdatedAt time.Time
}

type BookLevel struct {
	Price    float64
	Quantity float64
}

type OrderBook struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	UpdatedAt time.Time
}

type Trade struct {
	ID       string
	Symbol   string
	Side     Side
	Price    float64
	Quantity float64
	Time     time.Time
}

type Candle struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

type Balance struct {
	Currency  string
	Total     float64
	Available float64
	Locked    float64
}

type Position struct {
	Symbol     string
	Side       string // "long" or "short"
	Quantity   float64
	EntryPrice float64
	MarkPrice  float64
	Leverage   float64
	PnL        float64
}

type AccountInfo struct {
	AccountID  string
	Venue      string
	Balances   []Balance
	Positions  []Position
	CanTrade   bool
	CanDeposit bool
	UpdatedAt  time.Time
}

type OrderUpdate struct {
	Order Order
	Time  time.Time
}

// Capabilities advertises which optional operations an adapter actually
// supports, for introspection and the contract validator.
type Capabilities struct {
	MarketData      bool
	OrderBook       bool
	Trades          bool
	Candles         bool
	Account         bool
	Orders          bool
	OrderHistory    bool
	StreamingQuotes bool
	StreamingOrders bool
}

// RateLimits describes the rolling-window budget an adapter enforces.
type RateLimits struct {
	PublicPerWindow  int
	PrivatePerWindow int
	Window           time.Duration
}
