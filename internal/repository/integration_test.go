package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartling/go-shop-api/internal/model"
)

func seedTestUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Name: "Test User", Email: email, Password: "hashed", Role: model.RoleCustomer}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func seedTestProduct(t *testing.T, price float64, stock int) *model.Product {
	t.Helper()
	ctx := context.Background()
	category := &model.Category{Name: "Fixtures"}
	require.NoError(t, NewCategoryRepository(testPool).Create(ctx, category))
	product := &model.Product{
		CategoryID:  category.ID,
		Name:        "Widget",
		Description: "Test widget",
		Price:       decimal.NewFromFloat(price),
		Stock:       stock,
	}
	require.NoError(t, NewProductRepository(testPool).Create(ctx, product))
	return product
}

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "test@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCategoryRepo_DeleteInUse(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewCategoryRepository(testPool)
	ctx := context.Background()

	product := seedTestProduct(t, 9.99, 1)

	err := repo.Delete(ctx, product.CategoryID)
	assert.ErrorIs(t, err, ErrCategoryInUse)

	found, err := repo.GetByID(ctx, product.CategoryID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestProductRepo_ListFilters(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	cheap := seedTestProduct(t, 10, 5)
	expensive := seedTestProduct(t, 500, 5)

	min := decimal.NewFromFloat(100)
	max := decimal.NewFromFloat(1000)
	products, err := repo.List(ctx, ProductFilter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, expensive.ID, products[0].ID)

	products, err = repo.List(ctx, ProductFilter{CategoryID: &cheap.CategoryID})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, cheap.ID, products[0].ID)

	products, err = repo.List(ctx, ProductFilter{Search: "widg"})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestProductRepo_DecrementStock(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedTestProduct(t, 10, 5)

	tx, err := testPool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.DecrementStock(ctx, tx, product.ID, 3))
	require.NoError(t, tx.Commit(ctx))

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Stock)
}

func TestProductRepo_DecrementStock_RefusesOverdraw(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedTestProduct(t, 10, 2)

	tx, err := testPool.Begin(ctx)
	require.NoError(t, err)
	err = repo.DecrementStock(ctx, tx, product.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	require.NoError(t, tx.Rollback(ctx))

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Stock)
}

func TestProductRepo_DecrementStock_ConcurrentCheckouts(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedTestProduct(t, 10, 1)

	// Two transactions race for the last unit. The loser blocks on the row
	// lock, re-evaluates stock >= $2 after the winner commits, and gets
	// refused.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := testPool.Begin(ctx)
			if err != nil {
				results <- err
				return
			}
			if err := repo.DecrementStock(ctx, tx, product.ID, 1); err != nil {
				_ = tx.Rollback(ctx)
				results <- err
				return
			}
			results <- tx.Commit(ctx)
		}()
	}
	wg.Wait()
	close(results)

	var committed, refused int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrInsufficientStock):
			refused++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	assert.Equal(t, 1, committed, "exactly one checkout may take the last unit")
	assert.Equal(t, 1, refused)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.Stock)
}

func TestCartRepo_InsertAndList(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewCartRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "cart@example.com")
	product := seedTestProduct(t, 15, 10)

	require.NoError(t, repo.Insert(ctx, &model.CartItem{
		UserID: user.ID, ProductID: product.ID, Quantity: 2,
	}))

	items, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	require.NotNil(t, items[0].Product, "listing must join the product")
	assert.Equal(t, product.Name, items[0].Product.Name)
}

func TestCartRepo_GetByUserAndProduct(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewCartRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "merge@example.com")
	product := seedTestProduct(t, 15, 10)

	missing, err := repo.GetByUserAndProduct(ctx, user.ID, product.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	item := &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 2}
	require.NoError(t, repo.Insert(ctx, item))

	found, err := repo.GetByUserAndProduct(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, item.ID, found.ID)

	require.NoError(t, repo.UpdateQuantity(ctx, item.ID, 5))
	found, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.Quantity)
}

func TestOrderRepo_CheckoutTx(t *testing.T) {
	cleanupTable(t, allTables...)

	orderRepo := NewOrderRepository(testPool)
	cartRepo := NewCartRepository(testPool)
	productRepo := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "checkout@example.com")
	product := seedTestProduct(t, 100, 10)
	require.NoError(t, cartRepo.Insert(ctx, &model.CartItem{
		UserID: user.ID, ProductID: product.ID, Quantity: 2,
	}))

	tx, err := orderRepo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, productRepo.DecrementStock(ctx, tx, product.ID, 2))
	order := &model.Order{UserID: user.ID, Status: model.OrderStatusPending, TotalAmount: decimal.NewFromFloat(200)}
	require.NoError(t, orderRepo.CreateTx(ctx, tx, order))
	require.NoError(t, cartRepo.ClearForUser(ctx, tx, user.ID))
	require.NoError(t, tx.Commit(ctx))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, found.Status)
	assert.True(t, decimal.NewFromFloat(200).Equal(found.TotalAmount))

	items, err := cartRepo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	p, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
}

func TestOrderRepo_CheckoutTx_Rollback(t *testing.T) {
	cleanupTable(t, allTables...)

	orderRepo := NewOrderRepository(testPool)
	cartRepo := NewCartRepository(testPool)
	productRepo := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "rollback@example.com")
	product := seedTestProduct(t, 100, 10)
	require.NoError(t, cartRepo.Insert(ctx, &model.CartItem{
		UserID: user.ID, ProductID: product.ID, Quantity: 2,
	}))

	tx, err := orderRepo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, productRepo.DecrementStock(ctx, tx, product.ID, 2))
	order := &model.Order{UserID: user.ID, Status: model.OrderStatusPending, TotalAmount: decimal.NewFromFloat(200)}
	require.NoError(t, orderRepo.CreateTx(ctx, tx, order))
	require.NoError(t, cartRepo.ClearForUser(ctx, tx, user.ID))
	require.NoError(t, tx.Rollback(ctx))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "rolled back order must not exist")

	items, err := cartRepo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	p, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestOrderRepo_GetWithPayments(t *testing.T) {
	cleanupTable(t, allTables...)

	orderRepo := NewOrderRepository(testPool)
	paymentRepo := NewPaymentRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "payments@example.com")

	tx, err := orderRepo.BeginTx(ctx)
	require.NoError(t, err)
	order := &model.Order{UserID: user.ID, Status: model.OrderStatusPending, TotalAmount: decimal.NewFromFloat(50)}
	require.NoError(t, orderRepo.CreateTx(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, paymentRepo.Create(ctx, &model.Payment{
		OrderID: order.ID, Amount: decimal.NewFromFloat(50), Status: model.PaymentStatusFailed,
	}))
	require.NoError(t, paymentRepo.Create(ctx, &model.Payment{
		OrderID: order.ID, Amount: decimal.NewFromFloat(50), Status: model.PaymentStatusSuccess,
	}))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Payments, 2)

	orders, err := orderRepo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Payments, 2)
}

func TestNotificationRepo_CreateAndList(t *testing.T) {
	cleanupTable(t, allTables...)

	orderRepo := NewOrderRepository(testPool)
	repo := NewNotificationRepository(testPool)
	ctx := context.Background()

	user := seedTestUser(t, "notify@example.com")

	tx, err := orderRepo.BeginTx(ctx)
	require.NoError(t, err)
	order := &model.Order{UserID: user.ID, Status: model.OrderStatusPending, TotalAmount: decimal.NewFromFloat(10)}
	require.NoError(t, orderRepo.CreateTx(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, repo.Create(ctx, &model.Notification{
		UserID: user.ID, OrderID: order.ID,
		Subject: "Order Placed Successfully!", Body: "Your order is on its way.",
	}))

	notifications, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, order.ID, notifications[0].OrderID)
}
