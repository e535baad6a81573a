package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MikeMC777/ecom-points/internal/apperr"
	"github.com/MikeMC777/ecom-points/internal/product"
)

// memStore is an in-memory ProductFinder and Store. Transactions are serialized
// and rolled back by restoring a snapshot, which is enough to observe atomicity.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	products map[int64]*product.Product
	points   map[int64]int64
	orders   map[int64]*Order
	items    map[int64][]Item
	nextID   int64

	// afterFind runs once FindActiveByIDs has returned its snapshot.
	afterFind func()
	// failItemAt makes the n-th CreateItem call (1-based) of a transaction fail.
	failItemAt int
}

var errInjected = errors.New("injected write failure")

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]*product.Product{},
		points:   map[int64]int64{},
		orders:   map[int64]*Order{},
		items:    map[int64][]Item{},
	}
}

func (m *memStore) addProduct(id int64, name string, price int64, stock int) {
	m.products[id] = &product.Product{ID: id, Name: name, Price: price, Stock: stock}
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) point(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) FindActiveByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	m.mu.Lock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if m.afterFind != nil {
		m.afterFind()
	}
	return out, nil
}

type memSnapshot struct {
	stock  map[int64]int
	points map[int64]int64
	orders map[int64]*Order
	items  map[int64][]Item
	nextID int64
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		stock:  map[int64]int{},
		points: map[int64]int64{},
		orders: map[int64]*Order{},
		items:  map[int64][]Item{},
		nextID: m.nextID,
	}
	for id, p := range m.products {
		s.stock[id] = p.Stock
	}
	for id, p := range m.points {
		s.points[id] = p
	}
	for id, o := range m.orders {
		cp := *o
		s.orders[id] = &cp
	}
	for id, its := range m.items {
		s.items[id] = append([]Item(nil), its...)
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	for id, st := range s.stock {
		m.products[id].Stock = st
	}
	m.points = s.points
	m.orders = s.orders
	m.items = s.items
	m.nextID = s.nextID
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*Order, []Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := *o
	return &cp, append([]Item(nil), m.items[id]...), nil
}

func (m *memStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type memTx struct {
	m     *memStore
	items int
}

func (t *memTx) CreateOrder(_ context.Context, userID int64) (*Order, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.points[userID]; !ok {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	t.m.nextID++
	o := &Order{ID: t.m.nextID, UserID: userID, CreatedAt: time.Now().UTC()}
	cp := *o
	t.m.orders[o.ID] = &cp
	return o, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	p, ok := t.m.products[productID]
	if !ok || p.DeletedAt != nil || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (t *memTx) CreateItem(_ context.Context, it *Item) error {
	t.items++
	if t.m.failItemAt > 0 && t.items == t.m.failItemAt {
		return errInjected
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.nextID++
	it.ID = t.m.nextID
	t.m.items[it.OrderID] = append(t.m.items[it.OrderID], *it)
	return nil
}

func (t *memTx) SetTotal(_ context.Context, orderID, total int64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.orders[orderID].TotalPrice = total
	return nil
}

func (t *memTx) CreditPoints(_ context.Context, userID, points int64) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	bal, ok := t.m.points[userID]
	if !ok {
		return 0, apperr.NotFound("user %d not found", userID)
	}
	t.m.points[userID] = bal + points
	return bal + points, nil
}
