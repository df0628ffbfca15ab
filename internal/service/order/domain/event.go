// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/constants"
)

// EventType 订单领域事件类型
type EventType string

const (
	EventOrderPlaced            EventType = constants.EventOrderPlaced
	EventOrderCancelled         EventType = constants.EventOrderCancelled
	EventOrderStatusChanged     EventType = constants.EventOrderStatusChanged
	EventOrderStockInconsistent EventType = constants.EventOrderStockInconsistent
)

// EventItem 事件中的订单行快照
type EventItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderEvent 发布到消息总线的订单事件
type OrderEvent struct {
	EventID     string          `json:"event_id"`
	Type        EventType       `json:"type"`
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []EventItem     `json:"items"`
	Reason      string          `json:"reason,omitempty"`
	TraceID     string          `json:"trace_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewOrderEvent 以订单当前状态生成事件
func NewOrderEvent(t EventType, o *Order, reason string) *OrderEvent {
	items := make([]EventItem, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, EventItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return &OrderEvent{
		EventID:     uuid.NewString(),
		Type:        t,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Items:       items,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	}
}
