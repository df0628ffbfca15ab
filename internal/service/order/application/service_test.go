package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/service/order/domain"
)

type harness struct {
	users     *fakeUsers
	catalog   *fakeCatalog
	orders    *memOrders
	journal   *memJournal
	publisher *recordingPublisher
	svc       *OrderApplicationService
}

func newHarness(t *testing.T, opts Options, tweak ...func(*Dependencies)) *harness {
	t.Helper()
	h := &harness{
		users: &fakeUsers{users: map[int64]json.RawMessage{
			1: json.RawMessage(`{"user":{"id":1,"username":"john_doe"},"phone":"+1234567890"}`),
			2: json.RawMessage(`{"user":{"id":2,"username":"jane_smith"},"phone":"+0987654321"}`),
		}},
		catalog:   newFakeCatalog(),
		orders:    newMemOrders(),
		journal:   &memJournal{},
		publisher: &recordingPublisher{},
	}
	deps := Dependencies{
		Orders:    h.orders,
		Journal:   h.journal,
		Users:     h.users,
		Catalog:   h.catalog,
		Publisher: h.publisher,
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	h.svc = NewOrderApplicationService(deps, opts, noop.NewTracerProvider().Tracer("test"))
	return h
}

func sampleRequest() *CreateOrderRequest {
	bogus := decimal.RequireFromString("1.00")
	return &CreateOrderRequest{
		UserID:          1,
		ShippingAddress: "123 Main St, New York, NY 10001",
		Items: []CreateOrderItem{
			{ProductID: 1, Quantity: 1, Price: &bogus},
			{ProductID: 4, Quantity: 2},
		},
	}
}

func TestPlaceOrderUsesCatalogPrices(t *testing.T) {
	h := newHarness(t, Options{})

	resp, replayed, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, "1059.97", resp.TotalAmount)
	assert.Equal(t, domain.StatusPending, resp.Status)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "999.99", resp.Items[0].Price)
	assert.Equal(t, "iPhone 15", resp.Items[0].ProductName)
	assert.Equal(t, "29.99", resp.Items[1].Price)
	assert.JSONEq(t, string(h.users.users[1]), string(resp.UserInfo))

	assert.Equal(t, 49, h.catalog.stockOf(1))
	assert.Equal(t, 98, h.catalog.stockOf(4))
	assert.Equal(t, []domain.EventType{domain.EventOrderPlaced}, h.publisher.types())

	entries, err := h.svc.StockJournal(t.Context(), resp.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.StockDecrease, e.Direction)
		assert.Equal(t, domain.PhasePlacement, e.Phase)
		assert.Equal(t, domain.OutcomeApplied, e.Outcome)
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	cancelled, err := h.svc.CancelOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.UserInfo)
	assert.Equal(t, 50, h.catalog.stockOf(1))
	assert.Equal(t, 100, h.catalog.stockOf(4))

	_, err = h.svc.CancelOrder(t.Context(), placed.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "Cannot cancel order with status: cancelled", err.Error())
	assert.Equal(t, 50, h.catalog.stockOf(1))
	assert.Equal(t, 100, h.catalog.stockOf(4))

	assert.Equal(t, []domain.EventType{domain.EventOrderPlaced, domain.EventOrderCancelled}, h.publisher.types())
}

func TestConcurrentCancelRestoresStockOnce(t *testing.T) {
	h := newHarness(t, Options{}, func(d *Dependencies) {
		d.Orders = newGatedOrders(d.Orders.(*memOrders), 2)
	})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.svc.CancelOrder(t.Context(), placed.ID)
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInvalidTransition):
			rejected++
			assert.Equal(t, "Cannot cancel order with status: cancelled", err.Error())
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 50, h.catalog.stockOf(1))
	assert.Equal(t, 100, h.catalog.stockOf(4))
	assert.Equal(t, []domain.EventType{domain.EventOrderPlaced, domain.EventOrderCancelled}, h.publisher.types())
}

func TestConfirmRacingCancelLeavesConsistentStock(t *testing.T) {
	h := newHarness(t, Options{}, func(d *Dependencies) {
		d.Orders = newGatedOrders(d.Orders.(*memOrders), 2)
	})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	var cancelErr, confirmErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = h.svc.CancelOrder(t.Context(), placed.ID)
	}()
	go func() {
		defer wg.Done()
		_, confirmErr = h.svc.ConfirmOrder(t.Context(), placed.ID)
	}()
	wg.Wait()

	// 只有一个请求能提交状态
	require.True(t, (cancelErr == nil) != (confirmErr == nil), "cancel=%v confirm=%v", cancelErr, confirmErr)
	got, err := h.orders.FindByID(t.Context(), placed.ID)
	require.NoError(t, err)
	if cancelErr == nil {
		assert.ErrorIs(t, confirmErr, domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusCancelled, got.Status)
		assert.Equal(t, 50, h.catalog.stockOf(1))
	} else {
		assert.ErrorIs(t, cancelErr, domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
		assert.Equal(t, 49, h.catalog.stockOf(1))
	}
}

func TestCancelDeliveredOrderIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	_, err = h.svc.ConfirmOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	_, err = h.svc.ShipOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	delivered, err := h.svc.DeliverOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)

	before := h.catalog.mutations
	_, err = h.svc.CancelOrder(t.Context(), placed.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, before, h.catalog.mutations)

	got, err := h.svc.GetOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
}

func TestCancelIsBestEffort(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	delete(h.catalog.products, 4)
	resp, err := h.svc.CancelOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, resp.Status)
	assert.Equal(t, 50, h.catalog.stockOf(1))

	entries, err := h.svc.StockJournal(t.Context(), placed.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, domain.OutcomeApplied, entries[2].Outcome)
	assert.Equal(t, domain.OutcomeFailed, entries[3].Outcome)
	assert.Equal(t, domain.PhaseCancellation, entries[3].Phase)
}

func TestPlaceOrderUnknownUserHasNoSideEffects(t *testing.T) {
	h := newHarness(t, Options{})
	req := sampleRequest()
	req.UserID = 99

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Zero(t, h.orders.count())
	assert.Zero(t, h.catalog.checks)
	assert.Zero(t, h.catalog.mutations)
	assert.Empty(t, h.publisher.types())
}

func TestPlaceOrderUserDirectoryDown(t *testing.T) {
	h := newHarness(t, Options{})
	h.users.err = fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)

	_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
	assert.Zero(t, h.orders.count())
}

func TestPlaceOrderInsufficientStockHasNoSideEffects(t *testing.T) {
	h := newHarness(t, Options{})
	req := sampleRequest()
	req.Items = append(req.Items, CreateOrderItem{ProductID: 5, Quantity: 3})

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	var unavailable *domain.ProductUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, int64(5), unavailable.ProductID)
	assert.Equal(t, "Only 1 items available", unavailable.Reason)

	assert.Zero(t, h.orders.count())
	assert.Zero(t, h.catalog.mutations)
	assert.Equal(t, 50, h.catalog.stockOf(1))
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	h := newHarness(t, Options{})
	req := sampleRequest()
	req.Items[1].ProductID = 404

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	require.ErrorIs(t, err, domain.ErrProductUnavailable)
	assert.Equal(t, "Product 404 is not available or insufficient stock", err.Error())
	assert.Zero(t, h.orders.count())
	assert.Zero(t, h.catalog.mutations)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t, Options{})
	req := sampleRequest()
	req.Items[0].Quantity = 0

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Zero(t, h.users.calls)
}

func TestAdmissionPolicyRunsBeforeRemoteCalls(t *testing.T) {
	policy := &denyAll{}
	h := newHarness(t, Options{}, func(d *Dependencies) { d.Policy = policy })

	_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.ErrorIs(t, err, domain.ErrPolicyRejected)
	assert.Equal(t, 1, policy.calls)
	assert.Zero(t, h.users.calls)
	assert.Zero(t, h.catalog.checks)
}

func TestProductsAreLockedInSortedOrder(t *testing.T) {
	locker := &recordingLocker{}
	h := newHarness(t, Options{}, func(d *Dependencies) { d.Locker = locker })
	req := sampleRequest()
	req.Items = []CreateOrderItem{{ProductID: 4, Quantity: 1}, {ProductID: 1, Quantity: 1}, {ProductID: 4, Quantity: 1}}

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	require.NoError(t, err)
	require.Len(t, locker.locked, 1)
	assert.Equal(t, []int64{1, 4}, locker.locked[0])
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, 98, h.catalog.stockOf(4))
}

func TestPersistenceFailureMutatesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	h.orders.createErr = errors.New("disk full")

	_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Zero(t, h.catalog.mutations)
	assert.Equal(t, 50, h.catalog.stockOf(1))
}

func TestPartialDecrementKeepsOrderByDefault(t *testing.T) {
	h := newHarness(t, Options{})
	h.catalog.failDecrease[4] = fmt.Errorf("%w: timeout", domain.ErrUpstreamUnavailable)

	_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	var mutationErr *domain.StockMutationError
	require.True(t, errors.As(err, &mutationErr))
	assert.Equal(t, int64(4), mutationErr.ProductID)
	assert.ErrorIs(t, err, domain.ErrStockMutation)

	require.Equal(t, 1, h.orders.count())
	order, err := h.svc.GetOrder(t.Context(), mutationErr.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, 49, h.catalog.stockOf(1))
	assert.Equal(t, 100, h.catalog.stockOf(4))
	assert.Equal(t, []domain.EventType{domain.EventOrderStockInconsistent}, h.publisher.types())

	entries, err := h.svc.StockJournal(t.Context(), mutationErr.OrderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OutcomeApplied, entries[0].Outcome)
	assert.Equal(t, domain.OutcomeFailed, entries[1].Outcome)
	assert.Contains(t, entries[1].Error, "timeout")
}

func TestPartialDecrementCompensates(t *testing.T) {
	h := newHarness(t, Options{CompensatePartialDecrement: true})
	req := sampleRequest()
	req.Items = append(req.Items, CreateOrderItem{ProductID: 5, Quantity: 1})
	h.catalog.failDecrease[5] = fmt.Errorf("%w: Insufficient stock", domain.ErrStockRejected)

	_, _, err := h.svc.PlaceOrder(t.Context(), req, "")
	var mutationErr *domain.StockMutationError
	require.True(t, errors.As(err, &mutationErr))

	order, err := h.svc.GetOrder(t.Context(), mutationErr.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Equal(t, 50, h.catalog.stockOf(1))
	assert.Equal(t, 100, h.catalog.stockOf(4))

	entries, err := h.svc.StockJournal(t.Context(), mutationErr.OrderID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	// 回补按 LIFO 执行
	assert.Equal(t, domain.PhaseCompensation, entries[3].Phase)
	assert.Equal(t, int64(4), entries[3].ProductID)
	assert.Equal(t, int64(1), entries[4].ProductID)
	assert.Equal(t, domain.OutcomeApplied, entries[4].Outcome)
}

func TestDetailKeepsCapturedPrice(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	h.catalog.setPrice(1, "1299.00")

	got, err := h.svc.GetOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, "999.99", got.Items[0].Price)
	assert.Equal(t, "1059.97", got.TotalAmount)
}

func TestEnrichmentFallbacks(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	h.catalog.lookupErr = fmt.Errorf("%w: catalog down", domain.ErrUpstreamUnavailable)
	h.users.err = fmt.Errorf("%w: user directory down", domain.ErrUpstreamUnavailable)

	got, err := h.svc.GetOrder(t.Context(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Product", got.Items[0].ProductName)
	assert.Equal(t, "null", string(got.UserInfo))
}

func TestListOrdersDeduplicatesLookups(t *testing.T) {
	h := newHarness(t, Options{EnrichConcurrency: 2})
	for i := 0; i < 3; i++ {
		_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
		require.NoError(t, err)
	}
	other := sampleRequest()
	other.UserID = 2
	_, _, err := h.svc.PlaceOrder(t.Context(), other, "")
	require.NoError(t, err)

	h.catalog.lookups = map[int64]int{}
	all, err := h.svc.ListOrders(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, 1, h.catalog.lookups[1])
	assert.Equal(t, 1, h.catalog.lookups[4])
	assert.Greater(t, all[0].ID, all[1].ID)

	uid := int64(2)
	mine, err := h.svc.ListOrders(t.Context(), &uid)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(2), mine[0].UserID)
}

func TestIdempotentReplay(t *testing.T) {
	store := &memIdempotency{keys: map[string]int64{}}
	h := newHarness(t, Options{}, func(d *Dependencies) { d.Idempotency = store })

	first, replayed, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.orders.count())
	assert.Equal(t, 49, h.catalog.stockOf(1))
}

func TestIdempotencyInFlightAndRelease(t *testing.T) {
	store := &memIdempotency{keys: map[string]int64{"busy": 0}}
	h := newHarness(t, Options{}, func(d *Dependencies) { d.Idempotency = store })

	_, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "busy")
	require.ErrorIs(t, err, domain.ErrIdempotencyInFlight)

	req := sampleRequest()
	req.UserID = 99
	_, _, err = h.svc.PlaceOrder(t.Context(), req, "retry-me")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	_, held := store.keys["retry-me"]
	assert.False(t, held)
}

func TestIdempotencyKeyReleasedOnPanic(t *testing.T) {
	store := &memIdempotency{keys: map[string]int64{}}
	h := newHarness(t, Options{}, func(d *Dependencies) {
		d.Idempotency = store
		d.Catalog = panickingCatalog{d.Catalog.(*fakeCatalog)}
	})

	assert.Panics(t, func() {
		_, _, _ = h.svc.PlaceOrder(t.Context(), sampleRequest(), "panic-key")
	})
	_, held := store.lookup("panic-key")
	assert.False(t, held)
	assert.Equal(t, 0, h.orders.count())
}

func TestIdempotencyKeyCompletedOnPanicAfterCommit(t *testing.T) {
	store := &memIdempotency{keys: map[string]int64{}}
	h := newHarness(t, Options{}, func(d *Dependencies) {
		d.Idempotency = store
		d.Publisher = panickingPublisher{}
	})

	assert.Panics(t, func() {
		_, _, _ = h.svc.PlaceOrder(t.Context(), sampleRequest(), "late-panic")
	})
	require.Equal(t, 1, h.orders.count())
	id, held := store.lookup("late-panic")
	require.True(t, held)
	assert.Equal(t, int64(1), id)
}

func TestDeleteOrder(t *testing.T) {
	h := newHarness(t, Options{})
	placed, _, err := h.svc.PlaceOrder(t.Context(), sampleRequest(), "")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteOrder(t.Context(), placed.ID))
	_, err = h.svc.GetOrder(t.Context(), placed.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.ErrorIs(t, h.svc.DeleteOrder(t.Context(), placed.ID), domain.ErrOrderNotFound)

	_, err = h.svc.StockJournal(t.Context(), placed.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
