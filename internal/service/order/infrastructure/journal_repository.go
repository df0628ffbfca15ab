package infrastructure

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/order/domain"
)

// GormStockJournal 是 StockJournal 的 GORM 实现，与订单共用一个库
type GormStockJournal struct {
	db *gorm.DB
}

func NewGormStockJournal(db *gorm.DB) *GormStockJournal {
	return &GormStockJournal{db: db}
}

func (j *GormStockJournal) Record(ctx context.Context, entry *domain.JournalEntry) error {
	model := FromDomainJournalEntry(entry)
	if err := j.db.WithContext(ctx).Create(model).Error; err != nil {
		return pkgerrors.Wrap(err, "insert stock journal entry")
	}
	entry.ID = int64(model.ID)
	entry.CreatedAt = model.CreatedAt
	entry.UpdatedAt = model.UpdatedAt
	return nil
}

func (j *GormStockJournal) Resolve(ctx context.Context, entryID int64, outcome domain.JournalOutcome, errMsg string) error {
	err := j.db.WithContext(ctx).Model(&StockJournalModel{}).Where("id = ?", entryID).
		Updates(map[string]interface{}{"outcome": string(outcome), "error": errMsg}).Error
	return pkgerrors.Wrapf(err, "resolve stock journal entry %d", entryID)
}

func (j *GormStockJournal) ListByOrder(ctx context.Context, orderID int64) ([]*domain.JournalEntry, error) {
	var models []StockJournalModel
	if err := j.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list stock journal of order %d", orderID)
	}
	out := make([]*domain.JournalEntry, 0, len(models))
	for i := range models {
		out = append(out, ToDomainJournalEntry(&models[i]))
	}
	return out, nil
}
