package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/model"
)

// ErrInsufficientStock is returned by DecrementStock when the conditional
// update matches no row, i.e. the product would go negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// ProductFilter narrows List results. Nil fields are not applied.
type ProductFilter struct {
	CategoryID *uuid.UUID
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, category_id, name, description, price, stock, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price, product.Stock,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT id, category_id, name, description, price, stock, created_at, updated_at
			  FROM products WHERE id = $1`
	p := &model.Product{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT id, category_id, name, description, price, stock, created_at, updated_at
			  FROM products WHERE 1=1`
	args := []any{}
	n := 0

	if filter.CategoryID != nil {
		n++
		query += fmt.Sprintf(" AND category_id = $%d", n)
		args = append(args, *filter.CategoryID)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil {
		query += fmt.Sprintf(" AND price BETWEEN $%d AND $%d", n+1, n+2)
		args = append(args, *filter.MinPrice, *filter.MaxPrice)
		n += 2
	} else if filter.MinPrice != nil {
		n++
		query += fmt.Sprintf(" AND price >= $%d", n)
		args = append(args, *filter.MinPrice)
	} else if filter.MaxPrice != nil {
		n++
		query += fmt.Sprintf(" AND price <= $%d", n)
		args = append(args, *filter.MaxPrice)
	}
	if filter.Search != "" {
		n++
		query += fmt.Sprintf(" AND name ILIKE $%d", n)
		args = append(args, "%"+filter.Search+"%")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET category_id = $2, name = $3, description = $4, price = $5, stock = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price, product.Stock,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DecrementStock runs inside the caller's transaction. The stock >= quantity
// guard keeps stock from ever going negative under concurrent checkouts.
func (r *pgProductRepo) DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error {
	ct, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}
	return nil
}
