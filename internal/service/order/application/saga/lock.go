package saga

import (
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProductLockHandler 对订单涉及的商品加分布式锁，锁一直持有到后续步骤全部返回。
// 未配置 Locker 时直接跳过。
type ProductLockHandler struct {
	NextHandler
}

func (h *ProductLockHandler) Handle(orderCtx *OrderContext) error {
	if orderCtx.Locker == nil {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.LockProducts")
	ids := lockOrder(orderCtx.Lines)
	span.SetAttributes(attribute.Int64Slice("product.ids", ids))

	unlock, err := orderCtx.Locker.LockProducts(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to lock products")
		span.End()
		return err
	}
	span.End()
	defer unlock()

	return h.executeNext(orderCtx)
}

// lockOrder 去重并升序，所有副本以相同顺序加锁
func lockOrder(lines []LineRequest) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
