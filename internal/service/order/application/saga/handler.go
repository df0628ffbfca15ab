package saga

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// LineRequest 客户端提交的订单行，客户端价格在此之前已被丢弃
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象接口；Locker 与 Policy 可以为 nil。
type OrderContext struct {
	Ctx    context.Context
	Tracer trace.Tracer

	// 输入
	UserID          int64
	ShippingAddress string
	Lines           []LineRequest

	// 各步骤的产出
	User  *port.UserInfo
	Order *domain.Order

	// 依赖出站端口
	Users     port.UserDirectory
	Catalog   port.Catalog
	Orders    domain.OrderRepository
	Journal   domain.StockJournal
	Publisher port.EventPublisher
	Locker    port.ProductLocker
	Policy    port.AdmissionPolicy

	// 扣减库存部分失败时，是否按 LIFO 回补并取消订单
	CompensatePartialDecrement bool

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 补偿按注册的逆序执行
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 执行并清空已注册的补偿
func (c *OrderContext) TriggerCompensation(ctx context.Context) int {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	comps := c.compensations
	c.compensations = nil

	var orderID int64
	if c.Order != nil {
		orderID = c.Order.ID
	}
	logger.Ctx(ctx).Info().Int64("order_id", orderID).Msgf("Executing %d compensation functions.", len(comps))
	for _, comp := range comps {
		comp(ctx)
	}
	return len(comps)
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// NewPlacementChain 组装下单流程：
// 准入 -> 校验用户 -> 商品加锁 -> 库存检查与定价 -> 持久化 -> 扣减库存 -> 发布事件
func NewPlacementChain() Handler {
	chain := new(AdmissionHandler)
	chain.SetNext(new(UserValidationHandler)).
		SetNext(new(ProductLockHandler)).
		SetNext(new(StockCheckHandler)).
		SetNext(new(PersistOrderHandler)).
		SetNext(new(StockDecrementHandler)).
		SetNext(new(NotificationHandler))
	return chain
}
