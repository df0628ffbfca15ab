package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/user/domain"
)

// UserService 用户目录
type UserService struct {
	repo     domain.UserRepository
	tracer   trace.Tracer
	hashCost int
}

func NewUserService(repo domain.UserRepository, tracer trace.Tracer) *UserService {
	return &UserService{repo: repo, tracer: tracer, hashCost: bcrypt.DefaultCost}
}

// WithHashCost 调整 bcrypt 代价，测试中使用 bcrypt.MinCost
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidUser)
	case req.Password == "":
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidUser)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Username:     username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		DateJoined:   time.Now(),
		Profile:      domain.Profile{Phone: req.Phone, Address: req.Address},
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("user created")

	return &CreateUserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Profile.Phone,
		Address:   u.Profile.Address,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out, nil
}

// LookupProfile 供订单服务校验用户并补全 user_info
func (s *UserService) LookupProfile(ctx context.Context, id int64) (*ProfileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "users.LookupProfile", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp := toProfileResponse(u)
	return &resp, nil
}

// maxPhoneLen 与 user_profiles.phone 列宽一致
const maxPhoneLen = 15

func (s *UserService) GetProfile(ctx context.Context, profileID int64) (*ProfileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "users.GetProfile", trace.WithAttributes(attribute.Int64("profile.id", profileID)))
	defer span.End()

	u, err := s.repo.FindByProfileID(ctx, profileID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp := toProfileResponse(u)
	return &resp, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, profileID int64, req *UpdateProfileRequest) (*ProfileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "users.UpdateProfile", trace.WithAttributes(attribute.Int64("profile.id", profileID)))
	defer span.End()

	if req.Phone != nil && len(*req.Phone) > maxPhoneLen {
		return nil, fmt.Errorf("%w: phone must be at most %d characters", domain.ErrInvalidUser, maxPhoneLen)
	}
	u, err := s.repo.UpdateProfile(ctx, profileID, domain.ProfileChanges{Phone: req.Phone, Address: req.Address})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("profile_id", profileID).Int64("user_id", u.ID).Msg("profile updated")
	resp := toProfileResponse(u)
	return &resp, nil
}

// Verify 无状态的凭证校验
func (s *UserService) Verify(ctx context.Context, req *VerifyRequest) (*UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "users.Verify")
	defer span.End()

	if req.Username == "" || req.Password == "" {
		return nil, domain.ErrCredentialsRequired
	}

	u, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		span.AddEvent("password mismatch")
		return nil, domain.ErrInvalidCredentials
	}
	resp := toUserResponse(u)
	return &resp, nil
}
