package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound        = errors.New("User not found")
	ErrProfileNotFound     = errors.New("Profile not found")
	ErrUsernameTaken       = errors.New("A user with that username already exists.")
	ErrInvalidUser         = errors.New("invalid user")
	ErrCredentialsRequired = errors.New("Username and password required")
	ErrInvalidCredentials  = errors.New("Invalid credentials")
)

// User 用户身份
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	DateJoined   time.Time
	Profile      Profile
}

// Profile 与 User 一对一
type Profile struct {
	ID        int64
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserRepository interface {
	// Create 在同一事务中写入用户与资料
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	FindByProfileID(ctx context.Context, profileID int64) (*User, error)
	// UpdateProfile 只更新非 nil 的字段
	UpdateProfile(ctx context.Context, profileID int64, changes ProfileChanges) (*User, error)
}

// ProfileChanges 部分更新资料
type ProfileChanges struct {
	Phone   *string
	Address *string
}
