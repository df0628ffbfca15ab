// internal/service/order/application/dto.go
package application

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
)

// CreateOrderItem 客户端提交的订单行。Price 会被目录价格覆盖。
type CreateOrderItem struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	UserID          int64             `json:"user_id"`
	ShippingAddress string            `json:"shipping_address"`
	Items           []CreateOrderItem `json:"items"`
}

type OrderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

// OrderResponse 订单响应。user_info 与 product_name 在读取时实时获取。
type OrderResponse struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	UserInfo        json.RawMessage     `json:"user_info,omitempty"`
	Status          domain.Status       `json:"status"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type JournalEntryResponse struct {
	ID        int64                 `json:"id"`
	OrderID   int64                 `json:"order_id"`
	ProductID int64                 `json:"product_id"`
	Quantity  int                   `json:"quantity"`
	Direction domain.StockDirection `json:"direction"`
	Phase     domain.JournalPhase   `json:"phase"`
	Outcome   domain.JournalOutcome `json:"outcome"`
	Error     string                `json:"error,omitempty"`
	TraceID   string                `json:"trace_id,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

const unknownProductName = "Unknown Product"

var nullJSON = json.RawMessage("null")

// toOrderResponse userInfo 为 nil 时省略 user_info；names 为 nil 时省略 product_name
func toOrderResponse(o *domain.Order, userInfo json.RawMessage, names map[int64]string) *OrderResponse {
	resp := &OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		UserInfo:        userInfo,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, l := range o.Items {
		item := OrderItemResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price.StringFixed(2),
		}
		if names != nil {
			name, ok := names[l.ProductID]
			if !ok {
				name = unknownProductName
			}
			item.ProductName = name
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func toJournalResponse(e *domain.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:        e.ID,
		OrderID:   e.OrderID,
		ProductID: e.ProductID,
		Quantity:  e.Quantity,
		Direction: e.Direction,
		Phase:     e.Phase,
		Outcome:   e.Outcome,
		Error:     e.Error,
		TraceID:   e.TraceID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
