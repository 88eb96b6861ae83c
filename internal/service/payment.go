package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/dto"
	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

var ErrPaymentNotFound = errors.New("payment not found")

// PaymentGateway charges an order. The wiring decides which implementation
// backs it; RandomGateway stands in until a real processor is integrated.
type PaymentGateway interface {
	Charge(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (model.PaymentStatus, error)
}

// RandomGateway approves roughly half of all charges.
type RandomGateway struct{}

func (RandomGateway) Charge(_ context.Context, _ uuid.UUID, _ decimal.Decimal) (model.PaymentStatus, error) {
	if rand.Intn(2) == 1 {
		return model.PaymentStatusSuccess, nil
	}
	return model.PaymentStatusFailed, nil
}

type PaymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	gateway     PaymentGateway
}

func NewPaymentService(paymentRepo repository.PaymentRepository, orderRepo repository.OrderRepository, gateway PaymentGateway) *PaymentService {
	return &PaymentService{paymentRepo: paymentRepo, orderRepo: orderRepo, gateway: gateway}
}

// ProcessPayment runs one charge attempt against the user's order. The attempt
// is recorded whatever the outcome; a successful one confirms the order.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID, orderID uuid.UUID, amount decimal.Decimal) (*dto.PaymentResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}

	status, err := s.gateway.Charge(ctx, orderID, amount)
	if err != nil {
		return nil, fmt.Errorf("charge: %w", err)
	}

	payment := &model.Payment{OrderID: orderID, Amount: amount, Status: status}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if status == model.PaymentStatusSuccess {
		if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusConfirmed); err != nil {
			return nil, fmt.Errorf("confirm order: %w", err)
		}
	}

	resp := toPaymentResponse(payment)
	return &resp, nil
}

func (s *PaymentService) GetByID(ctx context.Context, userID, paymentID uuid.UUID) (*dto.PaymentResponse, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}

	resp := toPaymentResponse(payment)
	return &resp, nil
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}
