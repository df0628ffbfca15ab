package application

import (
	"time"

	"storefront/internal/service/user/domain"
)

type CreateUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// CreateUserResponse 不回显密码
type CreateUserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type UserResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	DateJoined time.Time `json:"date_joined"`
}

// ProfileResponse 是 /api/user/{id}/ 的响应，也是订单中的 user_info
type ProfileResponse struct {
	User      UserResponse `json:"user"`
	Phone     string       `json:"phone"`
	Address   string       `json:"address"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// UpdateProfileRequest PUT 与 PATCH 共用，缺省字段保持不变
type UpdateProfileRequest struct {
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type VerifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type VerifyResponse struct {
	Valid bool          `json:"valid"`
	User  *UserResponse `json:"user,omitempty"`
	Error string        `json:"error,omitempty"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		DateJoined: u.DateJoined,
	}
}

func toProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		User:      toUserResponse(u),
		Phone:     u.Profile.Phone,
		Address:   u.Profile.Address,
		CreatedAt: u.Profile.CreatedAt,
		UpdatedAt: u.Profile.UpdatedAt,
	}
}
