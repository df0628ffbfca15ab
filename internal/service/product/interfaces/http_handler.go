package interfaces

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"storefront/internal/pkg/httpx"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/product/application"
	"storefront/internal/service/product/domain"
)

// ProductHandler 封装了 product 服务的 HTTP 处理器
type ProductHandler struct {
	service *application.CatalogService
}

func NewProductHandler(service *application.CatalogService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes 注册所有路由，结尾的 / 由 StripSlashes 处理
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.handleListCategories)
	r.Post("/categories", h.handleCreateCategory)
	r.Get("/categories/{id}", h.handleGetCategory)

	r.Get("/products", h.handleListProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Get("/products/{id}", h.handleGetProduct)

	// 供其他服务调用
	r.Get("/api/product/{id}", h.handleLookupProduct)
	r.Post("/api/check-stock", h.handleCheckStock)
	r.Post("/api/update-stock", h.handleUpdateStock)
}

func (h *ProductHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req application.CreateCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.CreateCategory(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *ProductHandler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrCategoryNotFound.Error())
		return
	}
	resp, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListProducts(r.Context(), domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req application.CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.CreateProduct(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrProductNotFound.Error())
		return
	}
	resp, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleLookupProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrProductNotFound.Error())
		return
	}
	resp, err := h.service.LookupProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleCheckStock(w http.ResponseWriter, r *http.Request) {
	var req application.CheckStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CheckStock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !result.Available {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"available": false,
			"message":   fmt.Sprintf("Only %d items available", result.StockQuantity),
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"available":      true,
		"product_name":   result.ProductName,
		"price":          result.Price.StringFixed(2),
		"stock_quantity": result.StockQuantity,
	})
}

func (h *ProductHandler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.UpdateStock(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func (h *ProductHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCategoryNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrCategoryExists):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		httpx.WriteError(w, statusCode, "internal error")
		return
	}
	httpx.WriteError(w, statusCode, err.Error())
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
