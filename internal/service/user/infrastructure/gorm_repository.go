package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/user/domain"
)

// ToDomainUser 将数据库模型转换为领域模型
func ToDomainUser(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}
	return &domain.User{
		ID:           int64(m.ID),
		Username:     m.Username,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		PasswordHash: m.Password,
		DateJoined:   m.DateJoined,
		Profile: domain.Profile{
			ID:        int64(m.Profile.ID),
			Phone:     m.Profile.Phone,
			Address:   m.Profile.Address,
			CreatedAt: m.Profile.CreatedAt,
			UpdatedAt: m.Profile.UpdatedAt,
		},
	}
}

// GormUserRepository 是 UserRepository 的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, u *domain.User) error {
	model := UserModel{
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Password:   u.PasswordHash,
		DateJoined: u.DateJoined,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(err, "check username")
		}
		if count > 0 {
			return domain.ErrUsernameTaken
		}
		if err := tx.Omit("Profile").Create(&model).Error; err != nil {
			return pkgerrors.Wrap(err, "insert user")
		}
		model.Profile = ProfileModel{UserID: model.ID, Phone: u.Profile.Phone, Address: u.Profile.Address}
		if err := tx.Create(&model.Profile).Error; err != nil {
			return pkgerrors.Wrap(err, "insert profile")
		}
		return nil
	})
	if err != nil {
		return err
	}
	*u = *ToDomainUser(&model)
	return nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Preload("Profile").Where(query, arg).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, pkgerrors.Wrap(err, "find user")
	}
	return ToDomainUser(&model), nil
}

func (r *GormUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	var models []UserModel
	if err := r.db.WithContext(ctx).Preload("Profile").Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list users")
	}
	out := make([]*domain.User, 0, len(models))
	for i := range models {
		out = append(out, ToDomainUser(&models[i]))
	}
	return out, nil
}

func (r *GormUserRepository) FindByProfileID(ctx context.Context, profileID int64) (*domain.User, error) {
	userID, err := r.profileOwner(r.db.WithContext(ctx), profileID)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, "id = ?", userID)
}

func (r *GormUserRepository) UpdateProfile(ctx context.Context, profileID int64, changes domain.ProfileChanges) (*domain.User, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if userID, err = r.profileOwner(tx, profileID); err != nil {
			return err
		}
		updates := map[string]interface{}{"updated_at": time.Now()}
		if changes.Phone != nil {
			updates["phone"] = *changes.Phone
		}
		if changes.Address != nil {
			updates["address"] = *changes.Address
		}
		if err := tx.Model(&ProfileModel{}).Where("id = ?", profileID).Updates(updates).Error; err != nil {
			return pkgerrors.Wrapf(err, "update profile %d", profileID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, "id = ?", userID)
}

func (r *GormUserRepository) profileOwner(db *gorm.DB, profileID int64) (uint, error) {
	var profile ProfileModel
	if err := db.Select("id", "user_id").Where("id = ?", profileID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrProfileNotFound
		}
		return 0, pkgerrors.Wrap(err, "find profile")
	}
	return profile.UserID, nil
}
