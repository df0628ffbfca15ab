// internal/service/product/domain/product.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("Product not found")
	ErrCategoryNotFound  = errors.New("Category not found")
	ErrCategoryExists    = errors.New("category with this name already exists")
	ErrInvalidCategory   = errors.New("category name is required")
	ErrInsufficientStock = errors.New("Insufficient stock")
	ErrInvalidOperation  = errors.New("Invalid operation")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidProduct    = errors.New("invalid product")
)

// Category 商品分类
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Product 是目录聚合根，持有库存计数
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	CategoryID    int64
	CategoryName  string
	StockQuantity int
	IsActive      bool
	Version       int64 // 每次库存写入 +1
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewProduct 校验并创建一个上架商品
func NewProduct(name, description string, price decimal.Decimal, categoryID int64, stock int) (*Product, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case stock < 0:
		return nil, fmt.Errorf("%w: stock_quantity must not be negative", ErrInvalidProduct)
	case categoryID <= 0:
		return nil, fmt.Errorf("%w: category is required", ErrInvalidProduct)
	}
	return &Product{
		Name:          strings.TrimSpace(name),
		Description:   description,
		Price:         price.Round(2),
		CategoryID:    categoryID,
		StockQuantity: stock,
		IsActive:      true,
	}, nil
}

// HasStock 是否能满足 quantity 件
func (p *Product) HasStock(quantity int) bool {
	return p.StockQuantity >= quantity
}

// StockOperation 库存变更方向
type StockOperation string

const (
	StockDecrease StockOperation = "decrease"
	StockIncrease StockOperation = "increase"
)

// ParseStockOperation 空串按 decrease 处理
func ParseStockOperation(s string) (StockOperation, error) {
	switch StockOperation(s) {
	case "", StockDecrease:
		return StockDecrease, nil
	case StockIncrease:
		return StockIncrease, nil
	default:
		return "", ErrInvalidOperation
	}
}

// Delta 把数量转换为带符号的库存增量
func (op StockOperation) Delta(quantity int) int {
	if op == StockIncrease {
		return quantity
	}
	return -quantity
}
