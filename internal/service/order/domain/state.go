// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "pending"   // 已创建，库存已扣减
	StatusConfirmed Status = "confirmed" // 已确认
	StatusShipped   Status = "shipped"   // 已发货
	StatusDelivered Status = "delivered" // 已签收，终态
	StatusCancelled Status = "cancelled" // 已取消，终态
)

// transitions 允许的状态流转。取消只在终态时被拒绝。
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

// CanTransitionTo 判断是否允许从 s 流转到 next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid 是否为已知状态
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}
