package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// UserValidationHandler 确认下单用户存在
type UserValidationHandler struct {
	NextHandler
}

func (h *UserValidationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ValidateUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", orderCtx.UserID))

	user, err := orderCtx.Users.LookupUser(ctx, orderCtx.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User validation failed")
		return err
	}
	orderCtx.User = user

	return h.executeNext(orderCtx)
}
