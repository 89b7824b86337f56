package sqlite

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"parity/internal/store"
	"parity/internal/store/model"

	"gorm.io/gorm"
)

// resolver applies repairs inside a single transaction. Each repair re-reads
// the order row under the transaction and checks it still matches what the
// detection saw; a moved row aborts with store.ErrStaleSnapshot so the next
// scheduled run re-detects against fresh data.
type resolver struct {
	db *gorm.DB
}

func NewResolver(s *Store) store.Resolver {
	return &resolver{db: s.db}
}

func (r *resolver) ResolveStatus(ctx context.Context, repair store.StatusRepair) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.ExchangeOrderModel
		if err := tx.First(&order, repair.OrderID).Error; err != nil {
			return err
		}
		if order.Status != repair.PreviousStatus {
			return store.ErrStaleSnapshot
		}
		now := time.Now().Unix()
		err := tx.Model(&model.ExchangeOrderModel{}).
			Where("id = ?", repair.OrderID).
			Updates(map[string]interface{}{
				"status":     repair.NewStatus,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		return tx.Create(&model.AuditLogModel{
			OrderID:       repair.OrderID,
			AccountID:     repair.AccountID,
			Field:         "status",
			PreviousValue: repair.PreviousStatus,
			NewValue:      repair.NewStatus,
			ResolvedBy:    repair.ResolvedBy,
			CreatedAtUnix: now,
		}).Error
	})
}

func (r *resolver) ResolveMissingFills(ctx context.Context, repair store.FillRepair) error {
	if repair.MissingQuantity <= 0 {
		return fmt.Errorf("missing quantity must be positive, got %v", repair.MissingQuantity)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.ExchangeOrderModel
		if err := tx.First(&order, repair.OrderID).Error; err != nil {
			return err
		}
		if math.Abs(order.FilledQuantity-repair.ExpectedFilled) > 1e-12 {
			return store.ErrStaleSnapshot
		}
		now := time.Now().Unix()

		// Venues do not always report an average price for the missed
		// fills; the order's reference price stands in so the synthetic
		// trade never books at zero.
		price := repair.FillPrice
		if price <= 0 {
			price = order.Price
		}

		if err := tx.Create(&model.TradeModel{
			OrderID:       repair.OrderID,
			AccountID:     repair.AccountID,
			Symbol:        order.Symbol,
			Side:          order.Side,
			Quantity:      repair.MissingQuantity,
			Price:         price,
			Synthetic:     true,
			Source:        "reconciliation",
			CreatedAtUnix: now,
		}).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"filled_quantity": repair.NewFilled,
			"updated_at":      now,
		}
		if repair.NewStatus != "" {
			updates["status"] = repair.NewStatus
		}
		if repair.NewAvgFillPrice > 0 {
			updates["avg_fill_price"] = repair.NewAvgFillPrice
		}
		if err := tx.Model(&model.ExchangeOrderModel{}).
			Where("id = ?", repair.OrderID).
			Updates(updates).Error; err != nil {
			return err
		}

		entries := []model.AuditLogModel{{
			OrderID:       repair.OrderID,
			AccountID:     repair.AccountID,
			Field:         "filled_quantity",
			PreviousValue: formatFloat(repair.ExpectedFilled),
			NewValue:      formatFloat(repair.NewFilled),
			ResolvedBy:    repair.ResolvedBy,
			CreatedAtUnix: now,
		}}
		if repair.NewStatus != "" && repair.NewStatus != order.Status {
			entries = append(entries, model.AuditLogModel{
				OrderID:       repair.OrderID,
				AccountID:     repair.AccountID,
				Field:         "status",
				PreviousValue: order.Status,
				NewValue:      repair.NewStatus,
				ResolvedBy:    repair.ResolvedBy,
				CreatedAtUnix: now,
			})
		}
		return tx.Create(&entries).Error
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
