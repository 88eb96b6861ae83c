package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cartling/go-shop-api/internal/model"
)

type CartRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.CartItem, error)
	GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.CartItem, error)
	Insert(ctx context.Context, item *model.CartItem) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearForUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

// ListByUser returns the user's cart lines with their products joined in,
// so callers never reach back for product data line by line.
func (r *pgCartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		        p.id, p.category_id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		var p model.Product
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = &p
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgCartRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.CartItem, error) {
	item := &model.CartItem{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, product_id, quantity, created_at, updated_at FROM cart_items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

func (r *pgCartRepo) GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.CartItem, error) {
	item := &model.CartItem{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, product_id, quantity, created_at, updated_at
		 FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

func (r *pgCartRepo) Insert(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING created_at, updated_at`,
		item.ID, item.UserID, item.ProductID, item.Quantity,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1`,
		id, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ClearForUser runs inside the checkout transaction so cart deletion commits
// or rolls back together with the order.
func (r *pgCartRepo) ClearForUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
