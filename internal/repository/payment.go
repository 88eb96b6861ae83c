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

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
}

type pgPaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &pgPaymentRepo{pool: pool}
}

func (r *pgPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	payment.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (id, order_id, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		payment.ID, payment.OrderID, payment.Amount, payment.Status,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment := &model.Payment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, amount, status, created_at FROM payments WHERE id = $1`, id,
	).Scan(&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}
