package repo

import (
	"context"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) FindIdempotencyKey(ctx context.Context, userID, key string) (*models.IdempotencyKey, error) {
	var rec models.IdempotencyKey
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND idem_key = ?", userID, key).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormRepo) CreateIdempotencyKey(ctx context.Context, rec *models.IdempotencyKey) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}
