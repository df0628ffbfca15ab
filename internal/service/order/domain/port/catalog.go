package port

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// StockCheck 目录服务 check-stock 的结果
type StockCheck struct {
	Available     bool
	ProductName   string
	Price         decimal.Decimal
	StockQuantity int
	Message       string
}

// ProductInfo 商品查询结果，Raw 保留目录服务的原始响应
type ProductInfo struct {
	ID   int64
	Name string
	Raw  json.RawMessage
}

// Catalog 是商品目录/库存台账的出站端口。
// 业务上的拒绝（不存在、库存不足）映射为 domain 错误；传输失败映射为 domain.ErrUpstreamUnavailable。
type Catalog interface {
	// CheckStock 不存在的商品返回 domain.ErrProductNotFound；库存不足返回 Available=false
	CheckStock(ctx context.Context, productID int64, quantity int) (*StockCheck, error)
	LookupProduct(ctx context.Context, productID int64) (*ProductInfo, error)
	// DecreaseStock / IncreaseStock 返回变更后的库存
	DecreaseStock(ctx context.Context, productID int64, quantity int) (int, error)
	IncreaseStock(ctx context.Context, productID int64, quantity int) (int, error)
}
