package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/dto"
	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

var (
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartAccessDenied     = errors.New("cart item belongs to another user")
	ErrNotEnoughStock       = errors.New("not enough stock available")
	ErrNotEnoughStockMerged = errors.New("not enough stock available for the requested quantity")
)

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return toCartResponse(items), nil
}

// AddItem upserts a cart line. A fresh add is validated against stock; when a
// line for the product already exists the summed quantity is re-validated, so
// repeated adds cannot sneak past the stock check.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*dto.CartItemResponse, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, ErrNotEnoughStock
	}

	existing, err := s.cartRepo.GetByUserAndProduct(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	if existing != nil {
		merged := existing.Quantity + quantity
		if product.Stock < merged {
			return nil, ErrNotEnoughStockMerged
		}
		if err := s.cartRepo.UpdateQuantity(ctx, existing.ID, merged); err != nil {
			return nil, fmt.Errorf("merge cart item: %w", err)
		}
		existing.Quantity = merged
		existing.Product = product
		resp := toCartItemResponse(existing)
		return &resp, nil
	}

	item := &model.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	if err := s.cartRepo.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("insert cart item: %w", err)
	}
	item.Product = product
	resp := toCartItemResponse(item)
	return &resp, nil
}

// UpdateItem replaces a line's quantity. Unlike AddItem the new quantity is
// checked against stock as-is, not added to the current one.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*dto.CartItemResponse, error) {
	item, err := s.cartRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}
	if item.UserID != userID {
		return nil, ErrCartAccessDenied
	}

	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, ErrNotEnoughStock
	}

	if err := s.cartRepo.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	item.Quantity = quantity
	item.Product = product
	resp := toCartItemResponse(item)
	return &resp, nil
}

func (s *CartService) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.cartRepo.GetByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("get cart item: %w", err)
	}
	if item == nil {
		return ErrCartItemNotFound
	}
	if item.UserID != userID {
		return ErrCartAccessDenied
	}
	return s.cartRepo.Delete(ctx, itemID)
}

func toCartResponse(items []model.CartItem) *dto.CartResponse {
	resp := &dto.CartResponse{Items: make([]dto.CartItemResponse, 0, len(items))}
	for i := range items {
		resp.Items = append(resp.Items, toCartItemResponse(&items[i]))
	}
	resp.Total = CalculateTotal(items, decimal.Zero)
	return resp
}

func toCartItemResponse(item *model.CartItem) dto.CartItemResponse {
	resp := dto.CartItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Product != nil {
		pr := toProductResponse(item.Product)
		resp.Product = &pr
	}
	return resp
}
