package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MikeMC777/ecom-points/internal/apperr"
	"github.com/MikeMC777/ecom-points/internal/idempotency"
	"github.com/MikeMC777/ecom-points/internal/order"
	"github.com/MikeMC777/ecom-points/internal/product"
	"github.com/MikeMC777/ecom-points/internal/user"
)

//
// ---------- STUBS ----------
//

// shop is an in-memory backing store shared by the stub repositories. InTx
// holds the lock for the whole callback; writes are not rolled back.
type shop struct {
	mu        sync.Mutex
	nextID    int64
	products  map[int64]*product.Product
	users     map[int64]*user.User
	orders    map[int64]*order.Order
	items     map[int64][]order.Item
	lastQuery product.Query
}

func newShop() *shop {
	return &shop{
		products: map[int64]*product.Product{},
		users:    map[int64]*user.User{},
		orders:   map[int64]*order.Order{},
		items:    map[int64][]order.Item{},
	}
}

func (s *shop) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *shop) addProduct(name string, price int64, stock int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	now := time.Now().UTC()
	s.products[id] = &product.Product{ID: id, Name: name, Price: price, Stock: stock, CreatedAt: now, UpdatedAt: now}
	return id
}

func (s *shop) addUser(name string, point int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	hash, _ := user.HashPassword("password123")
	s.users[id] = &user.User{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", PasswordHash: hash, Role: user.RoleUser, Point: point}
	return id
}

func (s *shop) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *shop) point(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Point
}

func (s *shop) deps(idem idempotency.Store) deps {
	products := productRepo{s}
	users := userRepo{s}
	return deps{
		products: products,
		orders:   order.NewService(products, orderRepo{s}),
		users:    user.NewService(users, users),
		idem:     idem,
	}
}

// productRepo implements product.Repository.
type productRepo struct{ *shop }

func (r productRepo) Create(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r productRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) FindActiveByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r productRepo) List(_ context.Context, q product.Query) ([]product.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = q
	var all []product.Product
	for _, p := range r.products {
		switch {
		case p.DeletedAt != nil:
		case q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)):
		case q.MinPrice != nil && p.Price < *q.MinPrice:
		case q.MaxPrice != nil && p.Price > *q.MaxPrice:
		case q.InStock && p.Stock == 0:
		default:
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r productRepo) Update(_ context.Context, id int64, patch product.Patch) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, product.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) SoftDelete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return true, nil
}

// userRepo implements user.Repository and user.PointLedger.
type userRepo struct{ *shop }

func (r userRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.users {
		if cur.Email == u.Email {
			return user.ErrAlreadyExist
		}
	}
	u.ID = r.id()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r userRepo) Update(_ context.Context, id int64, patch user.Patch) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	for _, o := range r.orders {
		if o.UserID == id {
			return false, user.ErrHasOrders
		}
	}
	delete(r.users, id)
	return true, nil
}

func (r userRepo) InTx(_ context.Context, fn func(tx user.PointTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(pointTx{r.shop})
}

type pointTx struct{ s *shop }

func (t pointTx) LockBalances(_ context.Context, ids ...int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, id := range ids {
		if u, ok := t.s.users[id]; ok {
			out[id] = u.Point
		}
	}
	return out, nil
}

func (t pointTx) AddPoints(_ context.Context, id, delta int64) (int64, error) {
	u, ok := t.s.users[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	u.Point += delta
	return u.Point, nil
}

// orderRepo implements order.Store.
type orderRepo struct{ *shop }

func (r orderRepo) InTx(_ context.Context, fn func(tx order.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(orderTx{r.shop})
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*order.Order, []order.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil, order.ErrNotFound
	}
	cp := *o
	return &cp, append([]order.Item(nil), r.items[id]...), nil
}

func (r orderRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]order.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			mine = append(mine, *o)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	if offset > len(mine) {
		offset = len(mine)
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], len(mine), nil
}

type orderTx struct{ s *shop }

func (t orderTx) CreateOrder(_ context.Context, userID int64) (*order.Order, error) {
	if _, ok := t.s.users[userID]; !ok {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	o := &order.Order{ID: t.s.id(), UserID: userID, CreatedAt: time.Now().UTC()}
	t.s.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (t orderTx) DecrementStock(_ context.Context, productID int64, qty int) (bool, error) {
	p, ok := t.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (t orderTx) CreateItem(_ context.Context, it *order.Item) error {
	it.ID = t.s.id()
	t.s.items[it.OrderID] = append(t.s.items[it.OrderID], *it)
	return nil
}

func (t orderTx) SetTotal(_ context.Context, orderID, total int64) error {
	t.s.orders[orderID].TotalPrice = total
	return nil
}

func (t orderTx) CreditPoints(_ context.Context, userID, points int64) (int64, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return 0, apperr.NotFound("user %d not found", userID)
	}
	u.Point += points
	return u.Point, nil
}

// memIdem implements idempotency.Store.
type memIdem struct {
	mu      sync.Mutex
	entries map[string]*idempotency.Response
}

func newMemIdem() *memIdem { return &memIdem{entries: map[string]*idempotency.Response{}} }

func (m *memIdem) Begin(_ context.Context, key string) (*idempotency.Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.entries[key]
	if !ok {
		m.entries[key] = nil
		return nil, true, nil
	}
	return resp, false, nil
}

func (m *memIdem) Finish(_ context.Context, key string, resp idempotency.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &resp
	return nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
