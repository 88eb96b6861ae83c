package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

// fakeTx satisfies pgx.Tx for services that run their own transactions. The
// mocks ignore the tx handle, so only Commit/Rollback bookkeeping matters.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error          { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                         { return nil }

// --- users ---

type mockUserRepo struct {
	byEmail map[string]*model.User
	byID    map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]*model.User), byID: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.byEmail[email], nil
}

// --- categories ---

type mockCategoryRepo struct {
	categories map[uuid.UUID]*model.Category
	inUse      map[uuid.UUID]bool
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[uuid.UUID]*model.Category), inUse: make(map[uuid.UUID]bool)}
}

func (m *mockCategoryRepo) Create(_ context.Context, c *model.Category) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	m.categories[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	return m.categories[id], nil
}

func (m *mockCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	var all []model.Category
	for _, c := range m.categories {
		all = append(all, *c)
	}
	return all, nil
}

func (m *mockCategoryRepo) Update(_ context.Context, c *model.Category) error {
	m.categories[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return pgx.ErrNoRows
	}
	if m.inUse[id] {
		return repository.ErrCategoryInUse
	}
	delete(m.categories, id)
	return nil
}

// --- products ---

type mockProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) List(_ context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	var all []model.Product
	for _, p := range m.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		all = append(all, *p)
	}
	return all, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, _ pgx.Tx, productID uuid.UUID, quantity int) error {
	p, ok := m.products[productID]
	if !ok || p.Stock < quantity {
		return fmt.Errorf("product %s: %w", productID, repository.ErrInsufficientStock)
	}
	p.Stock -= quantity
	return nil
}

// --- cart ---

type mockCartRepo struct {
	items    map[uuid.UUID]*model.CartItem
	products *mockProductRepo
}

func newMockCartRepo(products *mockProductRepo) *mockCartRepo {
	return &mockCartRepo{items: make(map[uuid.UUID]*model.CartItem), products: products}
}

func (m *mockCartRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem
	for _, item := range m.items {
		if item.UserID != userID {
			continue
		}
		copied := *item
		if m.products != nil {
			copied.Product = m.products.products[item.ProductID]
		}
		items = append(items, copied)
	}
	return items, nil
}

func (m *mockCartRepo) GetByID(_ context.Context, id uuid.UUID) (*model.CartItem, error) {
	return m.items[id], nil
}

func (m *mockCartRepo) GetByUserAndProduct(_ context.Context, userID, productID uuid.UUID) (*model.CartItem, error) {
	for _, item := range m.items {
		if item.UserID == userID && item.ProductID == productID {
			return item, nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) Insert(_ context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	m.items[item.ID] = item
	return nil
}

func (m *mockCartRepo) UpdateQuantity(_ context.Context, id uuid.UUID, quantity int) error {
	item, ok := m.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockCartRepo) ClearForUser(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	for id, item := range m.items {
		if item.UserID == userID {
			delete(m.items, id)
		}
	}
	return nil
}

// --- orders ---

type mockOrderRepo struct {
	orders map[uuid.UUID]*model.Order
	lastTx *fakeTx
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.lastTx = &fakeTx{}
	return m.lastTx, nil
}

func (m *mockOrderRepo) CreateTx(_ context.Context, _ pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = status
	return nil
}

// --- payments ---

type mockPaymentRepo struct {
	payments map[uuid.UUID]*model.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.payments[p.ID] = p
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	return m.payments[id], nil
}
