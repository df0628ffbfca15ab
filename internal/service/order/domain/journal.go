package domain

import "time"

type StockDirection string

const (
	StockDecrease StockDirection = "decrease"
	StockIncrease StockDirection = "increase"
)

type JournalPhase string

const (
	PhasePlacement    JournalPhase = "placement"
	PhaseCancellation JournalPhase = "cancellation"
	PhaseCompensation JournalPhase = "compensation"
)

type JournalOutcome string

const (
	OutcomePending JournalOutcome = "pending"
	OutcomeApplied JournalOutcome = "applied"
	OutcomeFailed  JournalOutcome = "failed"
)

// JournalEntry 一次远程库存变更。
// 非 cancelled 订单上残留的 pending/applied 取消记录，说明取消流程中途中断。
type JournalEntry struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Direction StockDirection
	Phase     JournalPhase
	Outcome   JournalOutcome
	Error     string
	TraceID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJournalEntry 创建 pending 记录
func NewJournalEntry(orderID, productID int64, quantity int, dir StockDirection, phase JournalPhase, traceID string) *JournalEntry {
	return &JournalEntry{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Direction: dir,
		Phase:     phase,
		Outcome:   OutcomePending,
		TraceID:   traceID,
	}
}
