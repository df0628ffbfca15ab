package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines() []OrderLine {
	return []OrderLine{
		{ProductID: 1, Quantity: 1, Price: decimal.RequireFromString("999.99")},
		{ProductID: 4, Quantity: 2, Price: decimal.RequireFromString("29.99")},
	}
}

func TestNewOrderComputesTotal(t *testing.T) {
	o, err := NewOrder(1, "123 Main St", lines())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "1059.97", o.TotalAmount.StringFixed(2))
	assert.Len(t, o.Items, 2)
}

func TestNewOrderValidation(t *testing.T) {
	cases := map[string]struct {
		userID int64
		addr   string
		lines  []OrderLine
	}{
		"missing user":   {0, "addr", lines()},
		"blank address":  {1, "   ", lines()},
		"no lines":       {1, "addr", nil},
		"zero quantity":  {1, "addr", []OrderLine{{ProductID: 1, Quantity: 0, Price: decimal.NewFromInt(1)}}},
		"negative price": {1, "addr", []OrderLine{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(-1)}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewOrder(tc.userID, tc.addr, tc.lines)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	o, err := NewOrder(1, "addr", lines())
	require.NoError(t, err)

	require.ErrorIs(t, o.Ship(), ErrInvalidTransition)
	require.NoError(t, o.Confirm())
	require.NoError(t, o.Ship())
	require.NoError(t, o.Deliver())
	assert.Equal(t, StatusDelivered, o.Status)

	err = o.Cancel()
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "Cannot cancel order with status: delivered", err.Error())
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestCancelAllowedUntilTerminal(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusConfirmed, StatusShipped} {
		o := &Order{Status: from}
		assert.NoError(t, o.Cancel(), from)
		assert.Equal(t, StatusCancelled, o.Status)
	}

	o := &Order{Status: StatusCancelled}
	var te *TransitionError
	require.True(t, errors.As(o.Cancel(), &te))
	assert.Equal(t, StatusCancelled, te.From)
	assert.True(t, StatusCancelled.IsValid())
	assert.False(t, Status("lost").IsValid())
}

func TestProductIDsDeduplicated(t *testing.T) {
	o := &Order{Items: []OrderLine{{ProductID: 3}, {ProductID: 1}, {ProductID: 3}}}
	assert.Equal(t, []int64{3, 1}, o.ProductIDs())
}

func TestTypedErrors(t *testing.T) {
	var err error = &ProductUnavailableError{ProductID: 7}
	assert.ErrorIs(t, err, ErrProductUnavailable)
	assert.Equal(t, "Product 7 is not available or insufficient stock", err.Error())

	err = &StockMutationError{OrderID: 1, ProductID: 2, Cause: ErrStockRejected}
	assert.ErrorIs(t, err, ErrStockMutation)
	assert.ErrorIs(t, err, ErrStockRejected)
}

func TestNewOrderEventSnapshotsItems(t *testing.T) {
	o, err := NewOrder(5, "addr", lines())
	require.NoError(t, err)
	o.ID = 42

	e := NewOrderEvent(EventOrderPlaced, o, "")
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, int64(42), e.OrderID)
	assert.Equal(t, EventType("order.placed"), e.Type)
	require.Len(t, e.Items, 2)
	assert.Equal(t, 2, e.Items[1].Quantity)
}
