package interfaces

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/httpx"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
)

// IdempotencyHeader 下单请求可选的幂等键
const IdempotencyHeader = "Idempotency-Key"

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 注册所有路由，结尾的 / 由 StripSlashes 处理
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleListOrders)
		r.Post("/", h.handleCreateOrder)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetOrder)
			r.Delete("/", h.handleDeleteOrder)
			r.Post("/cancel", h.handleTransition(h.service.CancelOrder))
			r.Post("/confirm", h.handleTransition(h.service.ConfirmOrder))
			r.Post("/ship", h.handleTransition(h.service.ShipOrder))
			r.Post("/deliver", h.handleTransition(h.service.DeliverOrder))
			r.Get("/stock-journal", h.handleStockJournal)
		})
	})
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	idemKey := r.Header.Get(IdempotencyHeader)
	if idemKey != "" {
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("idempotency.key", idemKey))
	}

	resp, replayed, err := h.service.PlaceOrder(r.Context(), &req, idemKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if replayed {
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid user_id")
			return
		}
		userID = &id
	}

	resp, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}
	resp, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTransition 取消、确认、发货、签收共用
func (h *OrderHandler) handleTransition(step func(ctx context.Context, id int64) (*application.OrderResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
			return
		}
		resp, err := step(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *OrderHandler) handleStockJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}
	resp, err := h.service.StockJournal(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeError 根据错误类型返回不同的 HTTP 状态码。
// 库存扣减失败要先于其他判断，因为它会同时包装下游错误。
func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		statusCode  int
		unavailable *domain.ProductUnavailableError
	)
	switch {
	case errors.Is(err, domain.ErrStockMutation),
		errors.Is(err, domain.ErrPersistence):
		statusCode = http.StatusInternalServerError
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPolicyRejected),
		errors.Is(err, domain.ErrUserNotFound),
		errors.As(err, &unavailable):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	// 未分类的内部错误不向客户端暴露细节
	if statusCode == http.StatusInternalServerError &&
		!errors.Is(err, domain.ErrStockMutation) && !errors.Is(err, domain.ErrPersistence) {
		httpx.WriteError(w, statusCode, "internal error")
		return
	}
	httpx.WriteError(w, statusCode, err.Error())
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
