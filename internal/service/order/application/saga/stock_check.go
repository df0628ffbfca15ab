package saga

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/service/order/domain"
)

// StockCheckHandler 逐行检查库存，用目录价格覆盖行价格，并计算订单总额。
// 任一行不可用则中止，此时尚未持久化或修改任何东西。
type StockCheckHandler struct {
	NextHandler
}

func (h *StockCheckHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CheckStock")

	lines := make([]domain.OrderLine, 0, len(orderCtx.Lines))
	for _, req := range orderCtx.Lines {
		check, err := orderCtx.Catalog.CheckStock(ctx, req.ProductID, req.Quantity)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				err = &domain.ProductUnavailableError{ProductID: req.ProductID, Reason: "not found"}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "Stock check failed")
			span.End()
			return err
		}
		if !check.Available {
			err := &domain.ProductUnavailableError{ProductID: req.ProductID, Reason: check.Message}
			span.RecordError(err)
			span.SetStatus(codes.Error, "Insufficient stock")
			span.End()
			return err
		}
		lines = append(lines, domain.OrderLine{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Price:     check.Price,
		})
	}

	order, err := domain.NewOrder(orderCtx.UserID, orderCtx.ShippingAddress, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build order")
		span.End()
		return err
	}
	orderCtx.Order = order
	span.SetAttributes(attribute.String("order.total_amount", order.TotalAmount.StringFixed(2)))
	span.End()

	return h.executeNext(orderCtx)
}
