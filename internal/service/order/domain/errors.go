package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("Order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid status transition")

	// 下游返回的业务结果
	ErrUserNotFound       = errors.New("User not found")
	ErrProductNotFound    = errors.New("Product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrStockRejected      = errors.New("stock update rejected")

	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrPersistence         = errors.New("failed to persist order")
	ErrStockMutation       = errors.New("stock mutation failed")
	ErrPolicyRejected      = errors.New("order rejected by admission policy")
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is already in progress")
)

// ProductUnavailableError 某一行商品不存在、已下架或库存不足
type ProductUnavailableError struct {
	ProductID int64
	Reason    string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("Product %d is not available or insufficient stock", e.ProductID)
}

func (e *ProductUnavailableError) Unwrap() error {
	return ErrProductUnavailable
}

// TransitionError 状态流转被拒绝
type TransitionError struct {
	Action string
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot %s order with status: %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// StockMutationError 订单已提交，但扣减某一行库存失败
type StockMutationError struct {
	OrderID   int64
	ProductID int64
	Cause     error
}

func (e *StockMutationError) Error() string {
	return fmt.Sprintf("Failed to update stock for product %d: %v", e.ProductID, e.Cause)
}

func (e *StockMutationError) Unwrap() []error {
	return []error{ErrStockMutation, e.Cause}
}
