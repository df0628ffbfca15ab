package domain

import "context"

// ProductFilter 列表查询条件，均为不区分大小写的包含匹配
type ProductFilter struct {
	Category string
	Search   string
}

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	// FindByID activeOnly 为 true 时下架商品视为不存在
	FindByID(ctx context.Context, id int64, activeOnly bool) (*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*Product, error)
	// AdjustStock 原子地修改库存并返回新库存。
	// delta 为负时，库存不足返回 ErrInsufficientStock 且不做任何修改。
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	FindByID(ctx context.Context, id int64) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
}
