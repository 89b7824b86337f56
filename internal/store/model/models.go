package model

import (
	"gorm.io/datatypes"
)

// ExchangeOrderModel is the local order ledger row. exchange_order_id is
// unique per (account, venue); filled_quantity only ever grows, via
// execution fills or reconciliation repairs.
type ExchangeOrderModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	AccountID       string         `gorm:"column:account_id;uniqueIndex:idx_account_venue_order,priority:1;index"`
	Mode            string         `gorm:"column:mode;index"`
	Venue           string         `gorm:"column:venue;uniqueIndex:idx_account_venue_order,priority:2"`
	ExchangeOrderID string         `gorm:"column:exchange_order_id;uniqueIndex:idx_account_venue_order,priority:3"`
	ClientOrderID   string         `gorm:"column:client_order_id"`
	Symbol          string         `gorm:"column:symbol"`
	Side            string         `gorm:"column:side"`
	Type            string         `gorm:"column:order_type"`
	Status          string         `gorm:"column:status;index"`
	Quantity        float64        `gorm:"column:quantity"`
	FilledQuantity  float64        `gorm:"column:filled_quantity"`
	AvgFillPrice    float64        `gorm:"column:avg_fill_price"`
	Price           float64        `gorm:"column:price"`
	RawData         datatypes.JSON `gorm:"column:raw_data;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
}

func (ExchangeOrderModel) TableName() string { return "exchange_orders" }

// TradeModel records a fill. Synthetic rows are inserted only by the
// reconciliation engine to absorb fills the venue reported but the local
// ledger never saw; they are always tied 1:1 to a parent order.
type TradeModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	OrderID       int64   `gorm:"column:order_id;index"`
	AccountID     string  `gorm:"column:account_id;index"`
	Symbol        string  `gorm:"column:symbol"`
	Side          string  `gorm:"column:side"`
	Quantity      float64 `gorm:"column:quantity"`
	Price         float64 `gorm:"column:price"`
	Synthetic     bool    `gorm:"column:synthetic"`
	Source        string  `gorm:"column:source"` // "execution" | "reconciliation"
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }

// AuditLogModel is one repair record: which field moved, from what to what,
// and who resolved it.
type AuditLogModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	OrderID       int64  `gorm:"column:order_id;index"`
	AccountID     string `gorm:"column:account_id"`
	Field         string `gorm:"column:field"`
	PreviousValue string `gorm:"column:previous_value"`
	NewValue      string `gorm:"column:new_value"`
	ResolvedBy    string `gorm:"column:resolved_by"` // "system" or a user id
	CreatedAtUnix int64  `gorm:"column:created_at"`
}

func (AuditLogModel) TableName() string { return "reconciliation_audit" }
