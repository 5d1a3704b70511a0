package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func withItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Items.Product")
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withItems(r.DB.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderForUser(ctx context.Context, id uuid.UUID, userID string) (*models.Order, error) {
	var order models.Order
	if err := withItems(r.DB.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := withItems(r.DB.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAllOrders pages over every order, newest first. limit <= 0 means no limit.
func (r *GormRepo) ListAllOrders(ctx context.Context, limit, offset int) (int64, []models.Order, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	q := withItems(r.DB.WithContext(ctx)).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// UpdateStatus sets the status and returns the previous one.
func (r *GormRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (models.OrderStatus, error) {
	var prev models.OrderStatus
	err := r.InTx(ctx, func(tx *GormRepo) error {
		order, err := tx.lockOrder(ctx, id)
		if err != nil {
			return err
		}
		prev = order.Status
		return tx.DB.WithContext(ctx).Model(&models.Order{}).
			Where("id = ?", id).
			Update("status", status).Error
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

func (r *GormRepo) lockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Clauses(lockForUpdate).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
