// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine 订单行，价格在下单时从目录捕获，之后不再变化
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal quantity × price
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order 是订单聚合的根实体
type Order struct {
	ID              int64
	UserID          int64
	Status          Status
	TotalAmount     decimal.Decimal
	ShippingAddress string
	Items           []OrderLine
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 用已定价的订单行创建待处理订单，总金额只在这里计算一次
func NewOrder(userID int64, shippingAddress string, lines []OrderLine) (*Order, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, fmt.Errorf("%w: shipping_address is required", ErrInvalidOrder)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}

	total := decimal.Zero
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, i)
		}
		if l.Price.IsNegative() {
			return nil, fmt.Errorf("%w: item %d price must not be negative", ErrInvalidOrder, i)
		}
		total = total.Add(l.Subtotal())
	}

	now := time.Now()
	return &Order{
		UserID:          userID,
		Status:          StatusPending,
		TotalAmount:     total.Round(2),
		ShippingAddress: shippingAddress,
		Items:           append([]OrderLine(nil), lines...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Cancel 取消订单，已签收或已取消的订单不能再取消
func (o *Order) Cancel() error {
	return o.transition("cancel", StatusCancelled)
}

// Confirm pending → confirmed
func (o *Order) Confirm() error {
	return o.transition("confirm", StatusConfirmed)
}

// Ship confirmed → shipped
func (o *Order) Ship() error {
	return o.transition("ship", StatusShipped)
}

// Deliver shipped → delivered
func (o *Order) Deliver() error {
	return o.transition("deliver", StatusDelivered)
}

func (o *Order) transition(action string, next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{Action: action, From: o.Status}
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

// ProductIDs 订单中出现的商品，保持首次出现的顺序
func (o *Order) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, l := range o.Items {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
