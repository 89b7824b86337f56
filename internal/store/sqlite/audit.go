package sqlite

import (
	"context"
	"time"

	"parity/internal/store/model"

	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditLogModel) error {
	if entry.CreatedAtUnix == 0 {
		entry.CreatedAtUnix = time.Now().Unix()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) ListForOrder(ctx context.Context, orderID int64) ([]model.AuditLogModel, error) {
	var entries []model.AuditLogModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
