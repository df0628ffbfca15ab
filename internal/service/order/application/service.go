// internal/service/order/application/service.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/application/saga"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// Dependencies 订单服务的出站端口。Locker、Policy、Idempotency 可以为 nil。
type Dependencies struct {
	Orders      domain.OrderRepository
	Journal     domain.StockJournal
	Users       port.UserDirectory
	Catalog     port.Catalog
	Publisher   port.EventPublisher
	Locker      port.ProductLocker
	Policy      port.AdmissionPolicy
	Idempotency port.IdempotencyStore
}

type Options struct {
	// 扣减库存部分失败时回补并取消订单
	CompensatePartialDecrement bool
	// 读路径补全 user_info / product_name 的并发上限
	EnrichConcurrency int
}

// OrderApplicationService 只关注业务流程编排
type OrderApplicationService struct {
	deps   Dependencies
	opts   Options
	tracer trace.Tracer
	chain  saga.Handler
}

func NewOrderApplicationService(deps Dependencies, opts Options, tracer trace.Tracer) *OrderApplicationService {
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = 8
	}
	return &OrderApplicationService{
		deps:   deps,
		opts:   opts,
		tracer: tracer,
		chain:  saga.NewPlacementChain(),
	}
}

// PlaceOrder 下单。idemKey 非空且配置了幂等存储时，重复请求返回已创建的订单，replayed 为 true。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *CreateOrderRequest, idemKey string) (*OrderResponse, bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()

	useIdem := idemKey != "" && s.deps.Idempotency != nil
	if useIdem {
		orderID, claimed, err := s.deps.Idempotency.Claim(ctx, idemKey)
		if err != nil {
			span.RecordError(err)
			return nil, false, fmt.Errorf("%w: idempotency store: %v", domain.ErrUpstreamUnavailable, err)
		}
		if !claimed {
			if orderID == 0 {
				return nil, false, domain.ErrIdempotencyInFlight
			}
			span.AddEvent("Idempotent replay", trace.WithAttributes(attribute.Int64("order.id", orderID)))
			resp, err := s.GetOrder(ctx, orderID)
			return resp, true, err
		}
	}

	orderCtx := &saga.OrderContext{
		Ctx:                        ctx,
		Tracer:                     s.tracer,
		UserID:                     req.UserID,
		ShippingAddress:            req.ShippingAddress,
		Lines:                      make([]saga.LineRequest, 0, len(req.Items)),
		Users:                      s.deps.Users,
		Catalog:                    s.deps.Catalog,
		Orders:                     s.deps.Orders,
		Journal:                    s.deps.Journal,
		Publisher:                  s.deps.Publisher,
		Locker:                     s.deps.Locker,
		Policy:                     s.deps.Policy,
		CompensatePartialDecrement: s.opts.CompensatePartialDecrement,
	}
	for _, item := range req.Items {
		orderCtx.Lines = append(orderCtx.Lines, saga.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	// 失败或 panic 时都要结算 key，否则重试会一直得到 409
	settled := !useIdem
	defer func() {
		if !settled {
			s.settleIdempotencyKey(ctx, idemKey, orderCtx.Order)
		}
	}()

	if err := s.chain.Handle(orderCtx); err != nil {
		reason := rejectionReason(err)
		metrics.OrdersRejected.WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order placement failed")
		logger.Ctx(ctx).Warn().Err(err).Str("reason", reason).Int64("user_id", req.UserID).Msg("order placement failed")
		return nil, false, err
	}

	order := orderCtx.Order
	metrics.OrdersPlaced.Inc()
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	logger.Ctx(ctx).Info().Int64("order_id", order.ID).Int64("user_id", order.UserID).
		Str("total_amount", order.TotalAmount.StringFixed(2)).Msg("order placed")

	if !settled {
		settled = true
		if err := s.deps.Idempotency.Complete(ctx, idemKey, order.ID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("idempotency_key", idemKey).Msg("failed to complete idempotency key")
		}
	}

	var fallback json.RawMessage
	if orderCtx.User != nil {
		fallback = orderCtx.User.Raw
	}
	return s.enrich(ctx, []*domain.Order{order}, fallback)[0], false, nil
}

// settleIdempotencyKey 订单已提交时把 key 指向该订单，避免重试再下一单；否则释放 key
func (s *OrderApplicationService) settleIdempotencyKey(ctx context.Context, key string, order *domain.Order) {
	bg := context.WithoutCancel(ctx)
	var err error
	if order != nil && order.ID != 0 {
		err = s.deps.Idempotency.Complete(bg, key, order.ID)
	} else {
		err = s.deps.Idempotency.Release(bg, key)
	}
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("failed to settle idempotency key")
	}
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.deps.Orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.enrich(ctx, []*domain.Order{order}, nil)[0], nil
}

// ListOrders 按创建时间倒序，userID 为 nil 时返回全部订单
func (s *OrderApplicationService) ListOrders(ctx context.Context, userID *int64) ([]*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	orders, err := s.deps.Orders.List(ctx, domain.OrderFilter{UserID: userID})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return s.enrich(ctx, orders, nil), nil
}

// CancelOrder 先把订单置为 cancelled，再回补每一行库存（尽力而为）并发布事件
func (s *OrderApplicationService) CancelOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.deps.Orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	from := order.Status
	if err := order.Cancel(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	// 先以条件写占住状态，并发的取消只有一个会回补库存
	if err := s.commitTransition(ctx, order, from, "cancel"); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, line := range order.Items {
		if _, err := saga.MutateStock(ctx, s.deps.Journal, s.deps.Catalog,
			order.ID, line.ProductID, line.Quantity, domain.StockIncrease, domain.PhaseCancellation); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Int64("product_id", line.ProductID).
				Msg("failed to restore stock while cancelling order")
		}
	}

	metrics.OrdersCancelled.Inc()
	logger.Ctx(ctx).Info().Int64("order_id", order.ID).Msg("order cancelled")

	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, order, ""))
	return toOrderResponse(order, nil, nil), nil
}

func (s *OrderApplicationService) ConfirmOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	return s.advance(ctx, id, "confirm", (*domain.Order).Confirm)
}

func (s *OrderApplicationService) ShipOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	return s.advance(ctx, id, "ship", (*domain.Order).Ship)
}

func (s *OrderApplicationService) DeliverOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	return s.advance(ctx, id, "deliver", (*domain.Order).Deliver)
}

func (s *OrderApplicationService) advance(ctx context.Context, id int64, action string, step func(*domain.Order) error) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.AdvanceOrder", trace.WithAttributes(attribute.String("order.action", action)))
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.deps.Orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	from := order.Status
	if err := step(order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.commitTransition(ctx, order, from, action); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("order_id", order.ID).
		Str("from", string(from)).Str("to", string(order.Status)).Msg("order status changed")

	s.publish(ctx, domain.NewOrderEvent(domain.EventOrderStatusChanged, order, ""))
	return toOrderResponse(order, nil, nil), nil
}

// commitTransition 仅当数据库中的状态仍为 from 时写入新状态。
// 状态已被并发请求修改时，按最新状态返回 TransitionError。
func (s *OrderApplicationService) commitTransition(ctx context.Context, order *domain.Order, from domain.Status, action string) error {
	err := s.deps.Orders.UpdateStatus(ctx, order.ID, from, order.Status)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	current, findErr := s.deps.Orders.FindByID(ctx, order.ID)
	if findErr != nil {
		return findErr
	}
	logger.Ctx(ctx).Warn().Int64("order_id", order.ID).Str("action", action).
		Str("expected", string(from)).Str("actual", string(current.Status)).Msg("order status changed concurrently")
	return &domain.TransitionError{Action: action, From: current.Status}
}

// DeleteOrder 管理操作，级联删除订单行，不回补库存
func (s *OrderApplicationService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "app.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	if err := s.deps.Orders.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Info().Int64("order_id", id).Msg("order deleted")
	return nil
}

// StockJournal 返回订单的库存变更流水
func (s *OrderApplicationService) StockJournal(ctx context.Context, id int64) ([]JournalEntryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.StockJournal")
	defer span.End()

	if _, err := s.deps.Orders.FindByID(ctx, id); err != nil {
		span.RecordError(err)
		return nil, err
	}
	entries, err := s.deps.Journal.ListByOrder(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJournalResponse(e))
	}
	return out, nil
}

func (s *OrderApplicationService) publish(ctx context.Context, event *domain.OrderEvent) {
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("order_id", event.OrderID).
			Str("event_type", string(event.Type)).Msg("failed to publish order event")
	}
}

// enrich 并发获取 user_info 与 product_name，同一次请求内对相同 ID 只查询一次。
// 补全从不失败：用户查询失败时使用 fallback（为空则为 null），商品查询失败时使用 "Unknown Product"。
func (s *OrderApplicationService) enrich(ctx context.Context, orders []*domain.Order, fallback json.RawMessage) []*OrderResponse {
	ctx, span := s.tracer.Start(ctx, "app.Enrich")
	defer span.End()

	var userIDs, productIDs []int64
	seenUser := make(map[int64]bool)
	seenProduct := make(map[int64]bool)
	for _, o := range orders {
		if !seenUser[o.UserID] {
			seenUser[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
		for _, id := range o.ProductIDs() {
			if !seenProduct[id] {
				seenProduct[id] = true
				productIDs = append(productIDs, id)
			}
		}
	}

	var mu sync.Mutex
	users := make(map[int64]json.RawMessage, len(userIDs))
	names := make(map[int64]string, len(productIDs))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.EnrichConcurrency)

	for _, userID := range userIDs {
		g.Go(func() error {
			raw := fallback
			info, err := s.deps.Users.LookupUser(ctx, userID)
			if err != nil {
				logger.Ctx(ctx).Debug().Err(err).Int64("user_id", userID).Msg("user enrichment failed")
			} else if info != nil && len(info.Raw) > 0 {
				raw = info.Raw
			}
			if len(raw) == 0 {
				raw = nullJSON
			}
			mu.Lock()
			users[userID] = raw
			mu.Unlock()
			return nil
		})
	}
	for _, productID := range productIDs {
		g.Go(func() error {
			name := unknownProductName
			info, err := s.deps.Catalog.LookupProduct(ctx, productID)
			if err != nil {
				logger.Ctx(ctx).Debug().Err(err).Int64("product_id", productID).Msg("product enrichment failed")
			} else if info != nil && info.Name != "" {
				name = info.Name
			}
			mu.Lock()
			names[productID] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o, users[o.UserID], names))
	}
	return out
}

// rejectionReason 下单失败的指标标签
func rejectionReason(err error) string {
	var unavailable *domain.ProductUnavailableError
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return "validation"
	case errors.Is(err, domain.ErrPolicyRejected):
		return "policy"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.As(err, &unavailable):
		return "product_unavailable"
	case errors.Is(err, domain.ErrStockMutation):
		return "stock_mutation"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "other"
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *domain.OrderEvent) error { return nil }
