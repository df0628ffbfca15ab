package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// UserModel 对应 users 表
type UserModel struct {
	gorm.Model
	Username   string `gorm:"size:150;uniqueIndex;not null"`
	Email      string `gorm:"size:254"`
	FirstName  string `gorm:"size:150"`
	LastName   string `gorm:"size:150"`
	Password   string `gorm:"size:128;not null"`
	DateJoined time.Time
	// 关联关系
	Profile ProfileModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string {
	return "users"
}

// ProfileModel 对应 user_profiles 表
type ProfileModel struct {
	gorm.Model
	UserID  uint   `gorm:"uniqueIndex;not null"`
	Phone   string `gorm:"size:15"`
	Address string `gorm:"type:text"`
}

func (ProfileModel) TableName() string {
	return "user_profiles"
}

// Models 供 AutoMigrate 使用
func Models() []interface{} {
	return []interface{}{&UserModel{}, &ProfileModel{}}
}
