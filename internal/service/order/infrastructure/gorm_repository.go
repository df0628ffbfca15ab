package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/order/domain"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 订单与订单行在同一个事务中写入，任一失败则全部回滚
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := FromDomainOrder(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := model.Items
		model.Items = nil
		if err := tx.Create(model).Error; err != nil {
			return pkgerrors.Wrap(err, "insert order")
		}
		for i := range items {
			items[i].OrderID = model.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return pkgerrors.Wrap(err, "insert order items")
			}
		}
		model.Items = items
		return nil
	})
	if err != nil {
		return err
	}

	order.ID = int64(model.ID)
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	for i := range order.Items {
		order.Items[i].ID = int64(model.Items[i].ID)
		order.Items[i].OrderID = order.ID
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find order %d", id)
	}
	return ToDomainOrder(&model)
}

// List 按创建时间倒序
func (r *GormOrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC").Order("id DESC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}

	var models []OrderModel
	if err := q.Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list orders")
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		o, err := ToDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&OrderModel{}).Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{"status": string(to), "updated_at": time.Now()})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "update order %d status", id)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return pkgerrors.Wrapf(err, "check order %d", id)
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return pkgerrors.Wrapf(domain.ErrInvalidTransition, "order %d is no longer %s", id, from)
}

// Delete 先删订单行再删订单，不依赖数据库的外键级联
func (r *GormOrderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&OrderItemModel{}).Error; err != nil {
			return pkgerrors.Wrapf(err, "delete items of order %d", id)
		}
		res := tx.Delete(&OrderModel{}, id)
		if res.Error != nil {
			return pkgerrors.Wrapf(res.Error, "delete order %d", id)
		}
		if res.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}
		return nil
	})
}
