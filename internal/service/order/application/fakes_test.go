package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]json.RawMessage
	err   error
	calls int
}

func (f *fakeUsers) LookupUser(_ context.Context, id int64) (*port.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &port.UserInfo{ID: id, Raw: raw}, nil
}

type fakeProduct struct {
	name   string
	price  decimal.Decimal
	stock  int
	active bool
}

type fakeCatalog struct {
	mu           sync.Mutex
	products     map[int64]*fakeProduct
	failDecrease map[int64]error
	lookupErr    error
	checks       int
	mutations    int
	lookups      map[int64]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[int64]*fakeProduct{
			1: {name: "iPhone 15", price: decimal.RequireFromString("999.99"), stock: 50, active: true},
			4: {name: "Python Programming Book", price: decimal.RequireFromString("29.99"), stock: 100, active: true},
			5: {name: "T-Shirt", price: decimal.RequireFromString("19.99"), stock: 1, active: true},
		},
		failDecrease: map[int64]error{},
		lookups:      map[int64]int{},
	}
}

func (f *fakeCatalog) stockOf(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].stock
}

func (f *fakeCatalog) setPrice(id int64, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id].price = decimal.RequireFromString(price)
}

func (f *fakeCatalog) CheckStock(_ context.Context, id int64, qty int) (*port.StockCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	p, ok := f.products[id]
	if !ok || !p.active {
		return nil, domain.ErrProductNotFound
	}
	if p.stock < qty {
		return &port.StockCheck{Available: false, Message: fmt.Sprintf("Only %d items available", p.stock)}, nil
	}
	return &port.StockCheck{Available: true, ProductName: p.name, Price: p.price, StockQuantity: p.stock}, nil
}

func (f *fakeCatalog) LookupProduct(_ context.Context, id int64) (*port.ProductInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[id]++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &port.ProductInfo{ID: id, Name: p.name}, nil
}

func (f *fakeCatalog) DecreaseStock(_ context.Context, id int64, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if err := f.failDecrease[id]; err != nil {
		return 0, err
	}
	p, ok := f.products[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if p.stock < qty {
		return 0, fmt.Errorf("%w: Insufficient stock", domain.ErrStockRejected)
	}
	p.stock -= qty
	return p.stock, nil
}

func (f *fakeCatalog) IncreaseStock(_ context.Context, id int64, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	p, ok := f.products[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	p.stock += qty
	return p.stock, nil
}

type memOrders struct {
	mu        sync.Mutex
	orders    map[int64]*domain.Order
	nextID    int64
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[int64]*domain.Order{}}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderLine(nil), o.Items...)
	return &c
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	o.ID = m.nextID
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) List(_ context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id int64, from, to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return fmt.Errorf("%w: order %d is %s", domain.ErrInvalidTransition, id, o.Status)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrders) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []*domain.JournalEntry
}

func (j *memJournal) Record(_ context.Context, e *domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.ID = int64(len(j.entries) + 1)
	c := *e
	j.entries = append(j.entries, &c)
	return nil
}

func (j *memJournal) Resolve(_ context.Context, id int64, outcome domain.JournalOutcome, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.ID == id {
			e.Outcome = outcome
			e.Error = msg
			return nil
		}
	}
	return errors.New("journal entry not found")
}

func (j *memJournal) ListByOrder(_ context.Context, orderID int64) ([]*domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.JournalEntry
	for _, e := range j.entries {
		if e.OrderID == orderID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// panickingCatalog 在库存检查时 panic
type panickingCatalog struct{ *fakeCatalog }

func (panickingCatalog) CheckStock(context.Context, int64, int) (*port.StockCheck, error) {
	panic("catalog exploded")
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(context.Context, *domain.OrderEvent) error {
	panic("broker exploded")
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64 // 0 表示处理中
}

func (m *memIdempotency) Claim(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	if !ok {
		m.keys[key] = 0
		return 0, true, nil
	}
	return id, false, nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memIdempotency) lookup(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == 0 {
		delete(m.keys, key)
	}
	return nil
}

type denyAll struct{ calls int }

func (d *denyAll) Admit(context.Context, port.AdmissionInput) error {
	d.calls++
	return domain.ErrPolicyRejected
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   [][]int64
	released int
}

func (l *recordingLocker) LockProducts(_ context.Context, ids []int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = append(l.locked, append([]int64(nil), ids...))
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

// gatedOrders 让前 n 个 FindByID 调用互相等待，模拟并发请求读到同一状态
type gatedOrders struct {
	*memOrders
	remaining atomic.Int32
	arrived   sync.WaitGroup
}

func newGatedOrders(inner *memOrders, n int) *gatedOrders {
	g := &gatedOrders{memOrders: inner}
	g.remaining.Store(int32(n))
	g.arrived.Add(n)
	return g
}

func (g *gatedOrders) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := g.memOrders.FindByID(ctx, id)
	if g.remaining.Add(-1) >= 0 {
		g.arrived.Done()
		g.arrived.Wait()
	}
	return o, err
}
