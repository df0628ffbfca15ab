package infrastructure

import (
	"gorm.io/gorm"

	"storefront/internal/service/product/domain"
)

// ToDomainCategory 将数据库模型转换为领域模型
func ToDomainCategory(model *CategoryModel) *domain.Category {
	if model == nil {
		return nil
	}
	return &domain.Category{
		ID:          int64(model.ID),
		Name:        model.Name,
		Description: model.Description,
		CreatedAt:   model.CreatedAt,
	}
}

// ToDomainProduct 将数据库模型转换为领域模型，需要预加载 Category
func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:            int64(model.ID),
		Name:          model.Name,
		Description:   model.Description,
		Price:         model.Price,
		CategoryID:    int64(model.CategoryID),
		CategoryName:  model.Category.Name,
		StockQuantity: model.StockQuantity,
		IsActive:      model.IsActive,
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// FromDomainProduct 将领域模型转换为数据库模型 (用于插入)
func FromDomainProduct(p *domain.Product) *ProductModel {
	if p == nil {
		return nil
	}
	return &ProductModel{
		Model:         gorm.Model{ID: uint(p.ID)},
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		CategoryID:    uint(p.CategoryID),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		Version:       p.Version,
	}
}
