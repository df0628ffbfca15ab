package saga

import (
	"context"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/pkg/tracing"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// MutateStock 先写 pending 流水，再调用目录服务，最后回写结果。
// 流水写入失败只记录日志，不阻止库存变更。
func MutateStock(ctx context.Context, journal domain.StockJournal, catalog port.Catalog,
	orderID, productID int64, quantity int, dir domain.StockDirection, phase domain.JournalPhase) (int, error) {
	entry := domain.NewJournalEntry(orderID, productID, quantity, dir, phase, tracing.GetTraceIDFromContext(ctx))
	if err := journal.Record(ctx, entry); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Int64("order_id", orderID).Int64("product_id", productID).
			Msg("failed to record stock journal entry")
	}

	var (
		newStock int
		err      error
	)
	if dir == domain.StockDecrease {
		newStock, err = catalog.DecreaseStock(ctx, productID, quantity)
	} else {
		newStock, err = catalog.IncreaseStock(ctx, productID, quantity)
	}

	outcome, msg := domain.OutcomeApplied, ""
	if err != nil {
		outcome, msg = domain.OutcomeFailed, err.Error()
		metrics.StockMutationFailures.WithLabelValues(string(phase)).Inc()
	}
	if entry.ID != 0 {
		if jErr := journal.Resolve(ctx, entry.ID, outcome, msg); jErr != nil {
			logger.Ctx(ctx).Warn().Err(jErr).Int64("journal_id", entry.ID).Msg("failed to resolve stock journal entry")
		}
	}
	return newStock, err
}
