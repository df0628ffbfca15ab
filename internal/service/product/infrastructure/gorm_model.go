package infrastructure

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryModel 对应 categories 表
type CategoryModel struct {
	gorm.Model
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
}

func (CategoryModel) TableName() string {
	return "categories"
}

// ProductModel 对应 products 表
type ProductModel struct {
	gorm.Model
	Name          string          `gorm:"size:200;not null;index"`
	Description   string          `gorm:"type:text"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CategoryID    uint            `gorm:"index;not null"`
	StockQuantity int             `gorm:"not null"`
	IsActive      bool            `gorm:"not null;index"`
	Version       int64           `gorm:"not null"`
	// 关联关系
	Category CategoryModel `gorm:"foreignKey:CategoryID"`
}

func (ProductModel) TableName() string {
	return "products"
}

// Models 供 AutoMigrate 使用
func Models() []interface{} {
	return []interface{}{&CategoryModel{}, &ProductModel{}}
}
