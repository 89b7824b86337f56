package sqlite

import (
	"context"
	"errors"
	"time"

	"parity/internal/store/model"

	"gorm.io/gorm"
)

var openStatuses = []string{"new", "open", "partially_filled"}

type orderRepository struct {
	db *gorm.DB
}

func (r *orderRepository) ListOpenForAccount(ctx context.Context, mode, accountID string, limit int) ([]model.ExchangeOrderModel, error) {
	if limit <= 0 {
		limit = 200
	}
	var orders []model.ExchangeOrderModel
	err := r.db.WithContext(ctx).
		Where("mode = ? AND account_id = ? AND status IN ?", mode, accountID, openStatuses).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*model.ExchangeOrderModel, error) {
	var order model.ExchangeOrderModel
	err := r.db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Save(ctx context.Context, order *model.ExchangeOrderModel) error {
	now := time.Now().Unix()
	if order.CreatedAtUnix == 0 {
		order.CreatedAtUnix = now
	}
	order.UpdatedAtUnix = now
	return r.db.WithContext(ctx).Save(order).Error
}
