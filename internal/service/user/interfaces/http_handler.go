package interfaces

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"storefront/internal/pkg/httpx"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/user/application"
	"storefront/internal/service/user/domain"
)

// UserHandler 封装了 user 服务的 HTTP 处理器
type UserHandler struct {
	service *application.UserService
}

func NewUserHandler(service *application.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleListUsers)
	r.Post("/users", h.handleCreateUser)
	r.Get("/users/{id}", h.handleGetUser)
	r.Get("/profiles/{id}", h.handleGetProfile)
	r.Put("/profiles/{id}", h.handleUpdateProfile)
	r.Patch("/profiles/{id}", h.handleUpdateProfile)

	// 供其他服务调用
	r.Get("/api/user/{id}", h.handleLookupProfile)
	r.Post("/api/verify", h.handleVerify)
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req application.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.CreateUser(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *UserHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrUserNotFound.Error())
		return
	}
	resp, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleLookupProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrUserNotFound.Error())
		return
	}
	resp, err := h.service.LookupProfile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrProfileNotFound.Error())
		return
	}
	resp, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, domain.ErrProfileNotFound.Error())
		return
	}
	var req application.UpdateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.UpdateProfile(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req application.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, domain.ErrCredentialsRequired.Error())
		return
	}

	user, err := h.service.Verify(r.Context(), &req)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, application.VerifyResponse{Valid: true, User: user})
	case errors.Is(err, domain.ErrInvalidCredentials):
		httpx.WriteJSON(w, http.StatusUnauthorized, application.VerifyResponse{Valid: false, Error: err.Error()})
	default:
		h.writeError(w, r, err)
	}
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func (h *UserHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrCredentialsRequired),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrInvalidUser):
		statusCode = http.StatusBadRequest
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteError(w, statusCode, err.Error())
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
