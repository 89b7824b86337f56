package sqlite

import (
	"context"

	"parity/internal/store/model"

	"gorm.io/gorm"
)

type tradeRepository struct {
	db *gorm.DB
}

func (r *tradeRepository) ListForOrder(ctx context.Context, orderID int64) ([]model.TradeModel, error) {
	var trades []model.TradeModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
