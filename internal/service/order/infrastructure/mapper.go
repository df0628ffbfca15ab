package infrastructure

import (
	pkgerrors "github.com/pkg/errors"

	"storefront/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型，需要预加载 Items。
// 未知状态的行无法参与状态流转，直接报错。
func ToDomainOrder(model *OrderModel) (*domain.Order, error) {
	if model == nil {
		return nil, nil
	}
	if !domain.Status(model.Status).IsValid() {
		return nil, pkgerrors.Errorf("order %d has unknown status %q", model.ID, model.Status)
	}
	o := &domain.Order{
		ID:              int64(model.ID),
		UserID:          model.UserID,
		Status:          domain.Status(model.Status),
		TotalAmount:     model.TotalAmount,
		ShippingAddress: model.ShippingAddress,
		Items:           make([]domain.OrderLine, 0, len(model.Items)),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
	for _, item := range model.Items {
		o.Items = append(o.Items, domain.OrderLine{
			ID:        int64(item.ID),
			OrderID:   int64(item.OrderID),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return o, nil
}

// FromDomainOrder 将领域模型转换为数据库模型 (用于插入)
func FromDomainOrder(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	model := &OrderModel{
		ID:              uint(o.ID),
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemModel, 0, len(o.Items)),
	}
	for _, l := range o.Items {
		model.Items = append(model.Items, OrderItemModel{
			ID:        uint(l.ID),
			OrderID:   uint(l.OrderID),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	return model
}

func ToDomainJournalEntry(model *StockJournalModel) *domain.JournalEntry {
	return &domain.JournalEntry{
		ID:        int64(model.ID),
		OrderID:   int64(model.OrderID),
		ProductID: model.ProductID,
		Quantity:  model.Quantity,
		Direction: domain.StockDirection(model.Direction),
		Phase:     domain.JournalPhase(model.Phase),
		Outcome:   domain.JournalOutcome(model.Outcome),
		Error:     model.Error,
		TraceID:   model.TraceID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func FromDomainJournalEntry(e *domain.JournalEntry) *StockJournalModel {
	return &StockJournalModel{
		ID:        uint(e.ID),
		OrderID:   uint(e.OrderID),
		ProductID: e.ProductID,
		Quantity:  e.Quantity,
		Direction: string(e.Direction),
		Phase:     string(e.Phase),
		Outcome:   string(e.Outcome),
		Error:     e.Error,
		TraceID:   e.TraceID,
	}
}
