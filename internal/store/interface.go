// Package store defines the narrow persistence ports the reconciliation
// engine depends on. Implementations live in store/sqlite (gorm) and
// store/history (plain sql); the engine never touches a driver directly.
package store

import (
	"context"

	"parity/internal/store/model"
)

// OrderRepository reads and writes the local order ledger.
type OrderRepository interface {
	// ListOpenForAccount returns a bounded page of non-terminal orders.
	ListOpenForAccount(ctx context.Context, mode, accountID string, limit int) ([]model.ExchangeOrderModel, error)

	FindByID(ctx context.Context, id int64) (*model.ExchangeOrderModel, error)

	Save(ctx context.Context, order *model.ExchangeOrderModel) error
}

// TradeRepository reads fill records; inserts happen through Resolver so
// they stay transactional with the parent order update.
type TradeRepository interface {
	ListForOrder(ctx context.Context, orderID int64) ([]model.TradeModel, error)
}

// AuditRepository appends repair audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditLogModel) error
	ListForOrder(ctx context.Context, orderID int64) ([]model.AuditLogModel, error)
}

// StatusRepair updates a drifted order status to match the venue.
type StatusRepair struct {
	OrderID        int64
	AccountID      string
	PreviousStatus string
	NewStatus      string
	ResolvedBy     string
}

// FillRepair absorbs fills the venue reported but the ledger missed: one
// synthetic trade of exactly MissingQuantity plus the order update, in one
// transaction.
type FillRepair struct {
	OrderID   int64
	AccountID string

	// ExpectedFilled is the filled_quantity the detection ran against; the
	// repair is skipped if the row has moved since (stale snapshot).
	ExpectedFilled  float64
	NewFilled       float64
	MissingQuantity float64
	// FillPrice is the venue-reported average price; when the venue omits
	// it (zero), the synthetic trade books at the order's own price.
	FillPrice float64
	NewStatus       string
	NewAvgFillPrice float64
	ResolvedBy      string
}

// ErrStaleSnapshot is returned by Resolver when the optimistic check fails.
type staleSnapshotError struct{}

func (staleSnapshotError) Error() string { return "order changed since detection; repair skipped" }

var ErrStaleSnapshot error = staleSnapshotError{}

// Resolver applies discrepancy repairs atomically. Either everything a
// repair implies commits, or nothing does.
type Resolver interface {
	ResolveStatus(ctx context.Context, repair StatusRepair) error
	ResolveMissingFills(ctx context.Context, repair FillRepair) error
}
