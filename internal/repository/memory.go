package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"retail-order-service/internal/entity"
)

// MemoryStore is the shared in-memory storage with simple ID generators.
type MemoryStore struct {
	mu   sync.RWMutex
	data memoryData
}

type memoryData struct {
	nextCustomerID int64
	nextProductID  int64
	nextOrderID    int64
	nextItemID     int64
	customers      map[int64]entity.Customer
	products       map[int64]entity.Product
	orders         map[int64]entity.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: memoryData{
		nextCustomerID: 1,
		nextProductID:  1,
		nextOrderID:    1,
		nextItemID:     1,
		customers:      make(map[int64]entity.Customer),
		products:       make(map[int64]entity.Product),
		orders:         make(map[int64]entity.Order),
	}}
}

// clone copies the maps. Stored values are never mutated in place so a shallow
// copy of each entry is enough.
func (d memoryData) clone() memoryData {
	cp := d
	cp.customers = make(map[int64]entity.Customer, len(d.customers))
	for k, v := range d.customers {
		cp.customers[k] = v
	}
	cp.products = make(map[int64]entity.Product, len(d.products))
	for k, v := range d.products {
		cp.products[k] = v
	}
	cp.orders = make(map[int64]entity.Order, len(d.orders))
	for k, v := range d.orders {
		cp.orders[k] = v
	}
	return cp
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// MemoryCustomers implements CustomerRepository on a MemoryStore.
type MemoryCustomers struct{ store *MemoryStore }

func NewMemoryCustomers(store *MemoryStore) *MemoryCustomers { return &MemoryCustomers{store: store} }

var _ CustomerRepository = (*MemoryCustomers)(nil)

func (mc *MemoryCustomers) Create(ctx context.Context, c *entity.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	d := &mc.store.data
	for _, existing := range d.customers {
		if existing.Active() && strings.EqualFold(existing.Email, c.Email) {
			return ErrDuplicate
		}
	}
	c.ID = d.nextCustomerID
	d.nextCustomerID++
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	d.customers[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) GetByID(ctx context.Context, id int64) (*entity.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.data.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := c
	return &cp, nil
}

func (mc *MemoryCustomers) GetActiveByID(ctx context.Context, id int64) (*entity.Customer, error) {
	c, err := mc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active() {
		return nil, ErrNotFound
	}
	return c, nil
}

func (mc *MemoryCustomers) ExistsActiveEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	for _, c := range mc.store.data.customers {
		if c.ID != excludeID && c.Active() && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCustomers) Update(ctx context.Context, c *entity.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.data.customers[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = now()
	mc.store.data.customers[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) List(ctx context.Context, f CustomerFilter, p PageRequest) (Page[entity.Customer], error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]entity.Customer, 0)
	for _, c := range mc.store.data.customers {
		if !c.Active() {
			continue
		}
		if f.Tier != "" && c.Tier != f.Tier {
			continue
		}
		if f.Keyword != "" && !containsIgnoreCase(c.Name, f.Keyword) && !containsIgnoreCase(c.Email, f.Keyword) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, p), nil
}

// MemoryProducts implements ProductRepository on a MemoryStore.
type MemoryProducts struct{ store *MemoryStore }

func NewMemoryProducts(store *MemoryStore) *MemoryProducts { return &MemoryProducts{store: store} }

var _ ProductRepository = (*MemoryProducts)(nil)

func (mp *MemoryProducts) Create(ctx context.Context, p *entity.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	d := &mp.store.data
	for _, existing := range d.products {
		if existing.Active() && strings.EqualFold(existing.Name, p.Name) {
			return ErrDuplicate
		}
	}
	p.ID = d.nextProductID
	d.nextProductID++
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	d.products[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	p, ok := mp.store.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (mp *MemoryProducts) GetActiveByID(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := mp.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, ErrNotFound
	}
	return p, nil
}

func (mp *MemoryProducts) ExistsActiveName(ctx context.Context, name string, excludeID int64) (bool, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	for _, p := range mp.store.data.products {
		if p.ID != excludeID && p.Active() && strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (mp *MemoryProducts) Update(ctx context.Context, p *entity.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.data.products[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = now()
	mp.store.data.products[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) AdjustStock(ctx context.Context, id int64, delta int64) (*entity.Product, error) {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	p, ok := mp.store.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = now()
	mp.store.data.products[id] = p
	cp := p
	return &cp, nil
}

func (mp *MemoryProducts) List(ctx context.Context, f ProductFilter, p PageRequest) (Page[entity.Product], error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	out := make([]entity.Product, 0)
	for _, pr := range mp.store.data.products {
		if !pr.Active() {
			continue
		}
		if f.Category != "" && pr.Category != f.Category {
			continue
		}
		if !containsIgnoreCase(pr.Name, f.Keyword) {
			continue
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, p), nil
}

// MemoryOrders implements OrderRepository on a MemoryStore.
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func cloneOrder(o entity.Order) entity.Order {
	o.Items = append([]entity.OrderItem(nil), o.Items...)
	return o
}

func (mo *MemoryOrders) Create(ctx context.Context, o *entity.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	d := &mo.store.data
	o.ID = d.nextOrderID
	d.nextOrderID++
	for i := range o.Items {
		o.Items[i].ID = d.nextItemID
		o.Items[i].OrderID = o.ID
		d.nextItemID++
	}
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt
	d.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.data.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (mo *MemoryOrders) UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.data.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = now()
	mo.store.data.orders[id] = o
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter, p PageRequest) (Page[entity.Order], error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]entity.Order, 0)
	for _, o := range mo.store.data.orders {
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, p), nil
}

func (mo *MemoryOrders) CountItemsByProductAndStatus(ctx context.Context, productID int64, status entity.OrderStatus) (int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	var n int64
	for _, o := range mo.store.data.orders {
		if o.Status != status {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				n++
			}
		}
	}
	return n, nil
}

// MemoryTx emulates a transaction with the store's write lock. Writes made by
// fn are discarded when it returns an error.
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snapshot := tx.store.data.clone()
	defer func() {
		if r := recover(); r != nil {
			tx.store.data = snapshot
			panic(r)
		}
	}()
	err := fn(context.WithValue(ctx, txKey{}, true))
	if err != nil {
		tx.store.data = snapshot
	}
	return err
}
