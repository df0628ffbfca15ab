package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/domain"
)

// StockDecrementHandler 订单提交后逐行扣减库存。
// 某一行失败时：
//   - 默认保留订单与已扣减的库存，发布 order.stock_inconsistent；
//   - 开启 CompensatePartialDecrement 时按 LIFO 回补已扣减的行，并把订单置为 cancelled。
//
// 两种情况都返回 *domain.StockMutationError。
type StockDecrementHandler struct {
	NextHandler
}

func (h *StockDecrementHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.DecrementStock")
	order := orderCtx.Order
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	for _, line := range order.Items {
		_, err := MutateStock(ctx, orderCtx.Journal, orderCtx.Catalog,
			order.ID, line.ProductID, line.Quantity, domain.StockDecrease, domain.PhasePlacement)
		if err != nil {
			mutationErr := &domain.StockMutationError{OrderID: order.ID, ProductID: line.ProductID, Cause: err}
			span.RecordError(mutationErr)
			span.SetStatus(codes.Error, "Stock decrement failed")

			h.handlePartialFailure(ctx, orderCtx, mutationErr)
			span.End()
			return mutationErr
		}

		orderCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.IncreaseStock")
			defer compSpan.End()
			compSpan.SetAttributes(
				attribute.Int64("product.id", line.ProductID),
				attribute.Int("quantity", line.Quantity),
			)

			// 补偿失败需要记录严重错误，流水中保留 failed 记录供人工处理
			if _, err := MutateStock(compCtx, orderCtx.Journal, orderCtx.Catalog,
				order.ID, line.ProductID, line.Quantity, domain.StockIncrease, domain.PhaseCompensation); err != nil {
				compSpan.RecordError(err)
				logger.Ctx(compCtx).Error().Err(err).
					Int64("order_id", order.ID).Int64("product_id", line.ProductID).
					Msg("CRITICAL: compensation increment failed")
			}
		})
	}

	span.AddEvent("All lines decremented")
	span.End()
	return h.executeNext(orderCtx)
}

func (h *StockDecrementHandler) handlePartialFailure(ctx context.Context, orderCtx *OrderContext, mutationErr *domain.StockMutationError) {
	order := orderCtx.Order
	// 与客户端请求的取消解耦，补偿必须跑完
	bg := context.WithoutCancel(ctx)

	reason := mutationErr.Error()
	if orderCtx.CompensatePartialDecrement {
		n := orderCtx.TriggerCompensation(bg)
		metrics.Compensations.Add(float64(n))

		from := order.Status
		if err := order.Cancel(); err == nil {
			if err := orderCtx.Orders.UpdateStatus(bg, order.ID, from, order.Status); err != nil {
				logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).
					Msg("CRITICAL: failed to mark order cancelled after compensation")
			}
		}
		reason = fmt.Sprintf("%s; %d applied decrement(s) compensated", reason, n)
	} else {
		logger.Ctx(ctx).Error().Err(mutationErr).Int64("order_id", order.ID).
			Msg("order committed with partially applied stock decrements")
	}

	event := domain.NewOrderEvent(domain.EventOrderStockInconsistent, order, reason)
	if err := orderCtx.Publisher.Publish(bg, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Msg("failed to publish stock inconsistency event")
	}
}
