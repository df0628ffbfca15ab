// internal/service/order/domain/repository.go
package domain

import "context"

// OrderFilter 列表查询条件
type OrderFilter struct {
	UserID *int64
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 在一个本地事务中写入订单与全部订单行，回填 ID
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id int64) (*Order, error)

	// List 按创建时间倒序
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)

	// UpdateStatus 仅当当前状态仍为 from 时写入 to；
	// 订单存在但状态已被并发修改时返回 ErrInvalidTransition
	UpdateStatus(ctx context.Context, id int64, from, to Status) error

	// Delete 级联删除订单行
	Delete(ctx context.Context, id int64) error
}

// StockJournal 远程库存变更的追加式流水
type StockJournal interface {
	// Record 在调用目录服务之前写入 pending 记录，回填 ID
	Record(ctx context.Context, entry *JournalEntry) error
	Resolve(ctx context.Context, entryID int64, outcome JournalOutcome, errMsg string) error
	ListByOrder(ctx context.Context, orderID int64) ([]*JournalEntry, error)
}
