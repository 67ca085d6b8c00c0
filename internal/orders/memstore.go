package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore keeps the catalog and orders in process memory. A transaction holds
// the store-wide write lock and restores a snapshot if fn fails.
type MemStore struct {
	mu         sync.RWMutex
	categories map[string]Category
	products   map[string]Product
	orders     map[string]Order
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		categories: map[string]Category{},
		products:   map[string]Product{},
		orders:     map[string]Order{},
	}
}

type memTxKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

func (m *MemStore) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *MemStore) wlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make(map[string]Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	orders := make(map[string]Order, len(m.orders))
	for k, v := range m.orders {
		orders[k] = v
	}

	ctx = context.WithValue(ctx, memTxKey{}, true)
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.products, m.orders = products, orders
		return err
	}
	return nil
}

// AddCategory registers a category; the catalog has no admin surface for them.
func (m *MemStore) AddCategory(c Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

func (m *MemStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	defer m.rlock(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *MemStore) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	defer m.rlock(ctx)()
	out := make([]Order, 0)
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.AgentID != "" && (o.AgentID == nil || *o.AgentID != f.AgentID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemStore) ListCategories(ctx context.Context) ([]Category, error) {
	defer m.rlock(ctx)()
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	defer m.rlock(ctx)()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *MemStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	defer m.rlock(ctx)()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemStore) CreateProduct(ctx context.Context, p *Product) error {
	defer m.wlock(ctx)()
	if _, ok := m.categories[p.CategoryID]; !ok {
		return fmt.Errorf("%w: unknown category", ErrInvalidInput)
	}
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return fmt.Errorf("%w: sku already exists", ErrInvalidInput)
		}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ID] = *p
	return nil
}

func (m *MemStore) UpdateProduct(ctx context.Context, p *Product) error {
	defer m.wlock(ctx)()
	cur, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.categories[p.CategoryID]; !ok {
		return fmt.Errorf("%w: unknown category", ErrInvalidInput)
	}
	p.SKU, p.CreatedAt, p.UpdatedAt = cur.SKU, cur.CreatedAt, time.Now().UTC()
	m.products[p.ID] = *p
	return nil
}

type memTx struct{ m *MemStore }

func (t *memTx) LockOrder(ctx context.Context, id string) (*Order, error) {
	return t.m.GetOrder(ctx, id)
}

func (t *memTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	p, ok := t.m.products[productID]
	if !ok {
		return ErrNotFound
	}
	if p.Stock+delta < 0 {
		return &StockError{ProductID: productID, Required: -delta, Available: p.Stock}
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	t.m.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	if _, ok := t.m.orders[o.ID]; ok {
		return fmt.Errorf("insert order: duplicate id %s", o.ID)
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	t.m.orders[o.ID] = *copyOrder(*o)
	return nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, id string, s Status) error {
	return t.update(id, func(o *Order) { o.Status = s })
}

func (t *memTx) SetOrderAgent(ctx context.Context, id, agentID string) error {
	return t.update(id, func(o *Order) { o.AgentID = &agentID })
}

func (t *memTx) update(id string, fn func(*Order)) error {
	o, ok := t.m.orders[id]
	if !ok {
		return ErrNotFound
	}
	fn(&o)
	o.UpdatedAt = time.Now().UTC()
	t.m.orders[id] = o
	return nil
}

func copyOrder(o Order) *Order {
	cp := o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.AgentID != nil {
		a := *o.AgentID
		cp.AgentID = &a
	}
	return &cp
}
