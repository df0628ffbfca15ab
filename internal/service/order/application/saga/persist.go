package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/service/order/domain"
)

// PersistOrderHandler 在一个本地事务中写入订单与订单行
type PersistOrderHandler struct {
	NextHandler
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.PersistOrder")

	if err := orderCtx.Orders.Create(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist order")
		span.End()
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int64("order.id", orderCtx.Order.ID))
	span.AddEvent("Pending order saved to DB.")
	span.End()

	return h.executeNext(orderCtx)
}
