package port

import (
	"context"

	"storefront/internal/service/order/domain"
)

// EventPublisher 订单事件出站端口。发布失败不影响主流程。
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
}

// IdempotencyStore 下单幂等键存储
type IdempotencyStore interface {
	// Claim 占用 key。key 已完成时返回对应的订单 ID 与 claimed=false；
	// 仍在处理中时返回 orderID=0, claimed=false。
	Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

// ProductLocker 对一组商品加分布式锁，返回的 unlock 必须被调用
type ProductLocker interface {
	LockProducts(ctx context.Context, productIDs []int64) (unlock func(), err error)
}

// AdmissionItem 准入策略看到的订单行
type AdmissionItem struct {
	ProductID int64
	Quantity  int
}

// AdmissionInput 准入策略的输入
type AdmissionInput struct {
	UserID          int64
	ShippingAddress string
	Items           []AdmissionItem
}

// AdmissionPolicy 在任何远程调用之前判断是否接受订单，拒绝时返回 domain.ErrPolicyRejected
type AdmissionPolicy interface {
	Admit(ctx context.Context, in AdmissionInput) error
}
