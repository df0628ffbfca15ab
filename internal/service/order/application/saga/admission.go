package saga

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// AdmissionHandler 在任何远程调用之前校验请求形状，并执行可配置的准入策略
type AdmissionHandler struct {
	NextHandler
}

func (h *AdmissionHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Admission")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", orderCtx.UserID),
		attribute.Int("order.lines", len(orderCtx.Lines)),
	)

	if err := validateShape(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid order request")
		return err
	}

	if orderCtx.Policy != nil {
		in := port.AdmissionInput{
			UserID:          orderCtx.UserID,
			ShippingAddress: orderCtx.ShippingAddress,
			Items:           make([]port.AdmissionItem, 0, len(orderCtx.Lines)),
		}
		for _, l := range orderCtx.Lines {
			in.Items = append(in.Items, port.AdmissionItem{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		if err := orderCtx.Policy.Admit(ctx, in); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Admission policy rejected order")
			return err
		}
	}

	return h.executeNext(orderCtx)
}

func validateShape(orderCtx *OrderContext) error {
	if orderCtx.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidOrder)
	}
	if strings.TrimSpace(orderCtx.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping_address is required", domain.ErrInvalidOrder)
	}
	if len(orderCtx.Lines) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrInvalidOrder)
	}
	for i, l := range orderCtx.Lines {
		if l.ProductID <= 0 {
			return fmt.Errorf("%w: item %d product_id is required", domain.ErrInvalidOrder, i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", domain.ErrInvalidOrder, i)
		}
	}
	return nil
}
