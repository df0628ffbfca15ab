package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应 orders 表。不使用 gorm.Model，删除是物理删除。
type OrderModel struct {
	ID              uint            `gorm:"primaryKey"`
	UserID          int64           `gorm:"not null;index"`
	Status          string          `gorm:"size:20;not null;default:pending;index"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ShippingAddress string          `gorm:"type:text;not null"`
	CreatedAt       time.Time       `gorm:"index"`
	UpdatedAt       time.Time
	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表
type OrderItemModel struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"not null;index"`
	ProductID int64           `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// StockJournalModel 对应 stock_journal 表
type StockJournalModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   uint   `gorm:"not null;index"`
	ProductID int64  `gorm:"not null"`
	Quantity  int    `gorm:"not null"`
	Direction string `gorm:"size:10;not null"`
	Phase     string `gorm:"size:20;not null"`
	Outcome   string `gorm:"size:10;not null;index"`
	Error     string `gorm:"type:text"`
	TraceID   string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StockJournalModel) TableName() string {
	return "stock_journal"
}

// Models 供 AutoMigrate 使用
func Models() []interface{} {
	return []interface{}{&OrderModel{}, &OrderItemModel{}, &StockJournalModel{}}
}
