package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/dto"
	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrInvalidStatus     = errors.New("invalid order status")
)

// OutOfStockError names the product that blocked a checkout. It matches
// errors.Is(err, ErrNotEnoughStock).
type OutOfStockError struct {
	Product string
}

func (e *OutOfStockError) Error() string {
	return e.Product + ": " + ErrNotEnoughStock.Error()
}

func (e *OutOfStockError) Unwrap() error { return ErrNotEnoughStock }

type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	amqpCh      *amqp.Channel
}

func NewOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, productRepo repository.ProductRepository, amqpCh *amqp.Channel) *OrderService {
	return &OrderService{orderRepo: orderRepo, cartRepo: cartRepo, productRepo: productRepo, amqpCh: amqpCh}
}

// PlaceOrder converts the user's cart into an order. Stock decrements, the
// order insert and the cart wipe share one transaction: either all of it
// commits or none of it does. The notification publish happens after commit
// and is allowed to fail.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID) (*dto.OrderResponse, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		if err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				name := item.ProductID.String()
				if item.Product != nil {
					name = item.Product.Name
				}
				return nil, &OutOfStockError{Product: name}
			}
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	order := &model.Order{
		UserID:      userID,
		Status:      model.OrderStatusPending,
		TotalAmount: CalculateTotal(items, decimal.Zero),
	}
	if err := s.orderRepo.CreateTx(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.cartRepo.ClearForUser(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publishOrderPlaced(ctx, order)

	resp := toOrderResponse(order)
	return &resp, nil
}

// publishOrderPlaced is fire-and-forget: the order is already committed, a
// broker hiccup must not fail the request.
func (s *OrderService) publishOrderPlaced(ctx context.Context, order *model.Order) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.OrderMessage{OrderID: order.ID, UserID: order.UserID})
	_ = s.amqpCh.PublishWithContext(ctx, "", "orders", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID, admin bool) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !admin && order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) (*dto.OrderListResponse, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Orders: items, Total: len(items)}, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (*dto.OrderResponse, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	resp := toOrderResponse(order)
	return &resp, nil
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	payments := make([]dto.PaymentResponse, 0, len(order.Payments))
	for i := range order.Payments {
		payments = append(payments, toPaymentResponse(&order.Payments[i]))
	}
	return dto.OrderResponse{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Payments:    payments,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
