package infrastructure

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/service/product/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	model := FromDomainProduct(p)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return pkgerrors.Wrap(err, "insert product")
	}
	created, err := r.FindByID(ctx, int64(model.ID), false)
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64, activeOnly bool) (*domain.Product, error) {
	var model ProductModel
	q := r.db.WithContext(ctx).Preload("Category")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find product %d", id)
	}
	return ToDomainProduct(&model), nil
}

// List 只返回上架商品
func (r *GormProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	q := r.db.WithContext(ctx).Preload("Category").Where("products.is_active = ?", true)
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("LOWER(categories.name) LIKE ?", like(c))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?)", like(s), like(s))
	}

	var models []ProductModel
	if err := q.Order("products.id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list products")
	}
	out := make([]*domain.Product, 0, len(models))
	for i := range models {
		out = append(out, ToDomainProduct(&models[i]))
	}
	return out, nil
}

// AdjustStock 用一条带条件的 UPDATE 完成检查与扣减，并发扣减不会超卖
func (r *GormProductRepository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var newStock int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&ProductModel{}).Where("id = ?", id)
		if delta < 0 {
			q = q.Where("stock_quantity >= ?", -delta)
		}
		res := q.Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
			"version":        gorm.Expr("version + 1"),
		})
		if res.Error != nil {
			return pkgerrors.Wrapf(res.Error, "adjust stock of product %d", id)
		}

		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&ProductModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return pkgerrors.Wrapf(err, "count product %d", id)
			}
			if count == 0 {
				return domain.ErrProductNotFound
			}
			return domain.ErrInsufficientStock
		}

		var model ProductModel
		if err := tx.Select("stock_quantity").Where("id = ?", id).Take(&model).Error; err != nil {
			return pkgerrors.Wrapf(err, "reload product %d", id)
		}
		newStock = model.StockQuantity
		return nil
	})
	return newStock, err
}

// GormCategoryRepository 是 CategoryRepository 的 GORM 实现
type GormCategoryRepository struct {
	db *gorm.DB
}

func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	model := CategoryModel{Name: c.Name, Description: c.Description}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&CategoryModel{}).Where("name = ?", c.Name).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(err, "check category name")
		}
		if count > 0 {
			return domain.ErrCategoryExists
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return err
	}
	*c = *ToDomainCategory(&model)
	return nil
}

func (r *GormCategoryRepository) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	var model CategoryModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find category %d", id)
	}
	return ToDomainCategory(&model), nil
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	var models []CategoryModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list categories")
	}
	out := make([]*domain.Category, 0, len(models))
	for i := range models {
		out = append(out, ToDomainCategory(&models[i]))
	}
	return out, nil
}

func like(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
