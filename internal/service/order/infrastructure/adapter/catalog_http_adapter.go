package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// CatalogHTTPAdapter 实现了 port.Catalog 接口
type CatalogHTTPAdapter struct {
	client *httpclient.Client
}

func NewCatalogHTTPAdapter(client *httpclient.Client) *CatalogHTTPAdapter {
	return &CatalogHTTPAdapter{client: client}
}

type checkStockRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type checkStockResponse struct {
	Available     bool            `json:"available"`
	ProductName   string          `json:"product_name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Message       string          `json:"message"`
	Error         string          `json:"error"`
}

// CheckStock 200 可用；400 库存不足；404 商品不存在或已下架
func (a *CatalogHTTPAdapter) CheckStock(ctx context.Context, productID int64, quantity int) (*port.StockCheck, error) {
	var resp checkStockResponse
	status, err := a.client.PostJSON(ctx, constants.ProductService, constants.ProductCheckStock,
		checkStockRequest{ProductID: productID, Quantity: quantity}, &resp)
	if err != nil {
		return nil, unavailable(err)
	}

	switch status {
	case http.StatusOK:
		return &port.StockCheck{
			Available:     resp.Available,
			ProductName:   resp.ProductName,
			Price:         resp.Price,
			StockQuantity: resp.StockQuantity,
			Message:       resp.Message,
		}, nil
	case http.StatusBadRequest:
		msg := resp.Message
		if msg == "" {
			msg = resp.Error
		}
		return &port.StockCheck{Available: false, Message: msg}, nil
	case http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	default:
		return nil, unexpectedStatus(constants.ProductService, status)
	}
}

type productLookupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (a *CatalogHTTPAdapter) LookupProduct(ctx context.Context, productID int64) (*port.ProductInfo, error) {
	var raw json.RawMessage
	status, err := a.client.GetJSON(ctx, constants.ProductService, fmt.Sprintf(constants.ProductLookupPath, productID), &raw)
	if err != nil {
		return nil, unavailable(err)
	}

	switch status {
	case http.StatusOK:
		var p productLookupResponse
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, unavailable(err)
		}
		return &port.ProductInfo{ID: p.ID, Name: p.Name, Raw: raw}, nil
	case http.StatusNotFound:
		return nil, domain.ErrProductNotFound
	default:
		return nil, unexpectedStatus(constants.ProductService, status)
	}
}

type updateStockRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Operation string `json:"operation"`
}

type updateStockResponse struct {
	Success  bool   `json:"success"`
	NewStock int    `json:"new_stock"`
	Error    string `json:"error"`
}

func (a *CatalogHTTPAdapter) DecreaseStock(ctx context.Context, productID int64, quantity int) (int, error) {
	return a.updateStock(ctx, productID, quantity, "decrease")
}

func (a *CatalogHTTPAdapter) IncreaseStock(ctx context.Context, productID int64, quantity int) (int, error) {
	return a.updateStock(ctx, productID, quantity, "increase")
}

func (a *CatalogHTTPAdapter) updateStock(ctx context.Context, productID int64, quantity int, op string) (int, error) {
	var resp updateStockResponse
	status, err := a.client.PostJSON(ctx, constants.ProductService, constants.ProductUpdateStock,
		updateStockRequest{ProductID: productID, Quantity: quantity, Operation: op}, &resp)
	if err != nil {
		return 0, unavailable(err)
	}

	switch status {
	case http.StatusOK:
		return resp.NewStock, nil
	case http.StatusBadRequest:
		return 0, fmt.Errorf("%w: %s", domain.ErrStockRejected, resp.Error)
	case http.StatusNotFound:
		return 0, domain.ErrProductNotFound
	default:
		return 0, unexpectedStatus(constants.ProductService, status)
	}
}

// unavailable 传输层错误与无法解析的响应都视为下游不可用
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}

func unexpectedStatus(service string, status int) error {
	return fmt.Errorf("%w: %s responded %d", domain.ErrUpstreamUnavailable, service, status)
}
