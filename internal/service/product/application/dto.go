package application

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/product/domain"
)

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      int64           `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

// ProductResponse 详情视图
type ProductResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         string    `json:"price"`
	Category      int64     `json:"category"`
	CategoryName  string    `json:"category_name"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductListItem 列表视图
type ProductListItem struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	CategoryName  string `json:"category_name"`
	StockQuantity int    `json:"stock_quantity"`
}

type CheckStockRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

// StockCheckResult Available 为 false 时只有 StockQuantity 有意义
type StockCheckResult struct {
	Available     bool
	ProductName   string
	Price         decimal.Decimal
	StockQuantity int
}

type UpdateStockRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Operation string `json:"operation"`
}

type UpdateStockResponse struct {
	Success  bool `json:"success"`
	NewStock int  `json:"new_stock"`
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		Category:      p.CategoryID,
		CategoryName:  p.CategoryName,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toProductListItem(p *domain.Product) ProductListItem {
	return ProductListItem{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price.StringFixed(2),
		CategoryName:  p.CategoryName,
		StockQuantity: p.StockQuantity,
	}
}
