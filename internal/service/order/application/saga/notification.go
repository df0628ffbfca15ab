package saga

import (
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

// NotificationHandler 是 Saga 流程的最后一步，发布 order.placed 事件。
// 发布失败不是关键路径失败，只记录日志。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(attribute.String("event.type", string(domain.EventOrderPlaced)))

	event := domain.NewOrderEvent(domain.EventOrderPlaced, orderCtx.Order, "")
	if err := orderCtx.Publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("order_id", orderCtx.Order.ID).Msg("failed to publish order placed event")
		span.RecordError(err)
	}

	return h.executeNext(orderCtx)
}
