package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cartling/go-shop-api/internal/model"
)

func cartLine(price float64, quantity int) model.CartItem {
	return model.CartItem{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		Quantity:  quantity,
		Product:   &model.Product{ID: uuid.New(), Price: decimal.NewFromFloat(price)},
	}
}

func TestCalculateTotal(t *testing.T) {
	items := []model.CartItem{cartLine(100.00, 2), cartLine(50.00, 3)}

	total := CalculateTotal(items, decimal.Zero)
	assert.True(t, decimal.NewFromFloat(350.00).Equal(total), "got %s", total)

	discounted := CalculateTotal(items, decimal.NewFromFloat(50.00))
	assert.True(t, decimal.NewFromFloat(300.00).Equal(discounted), "got %s", discounted)
}

func TestCalculateTotal_FloorsAtZero(t *testing.T) {
	items := []model.CartItem{cartLine(10.00, 1)}
	total := CalculateTotal(items, decimal.NewFromFloat(25.00))
	assert.True(t, total.IsZero(), "got %s", total)
}

func TestCalculateTotal_Empty(t *testing.T) {
	total := CalculateTotal(nil, decimal.Zero)
	assert.True(t, total.IsZero())
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		total, pct, want float64
	}{
		{100, 10, 90},
		{100, 50, 50},
		{100, 0, 100},
		{100, 100, 0},
	}
	for _, tt := range tests {
		got := ApplyDiscount(decimal.NewFromFloat(tt.total), decimal.NewFromFloat(tt.pct))
		assert.True(t, decimal.NewFromFloat(tt.want).Equal(got), "ApplyDiscount(%v, %v) = %s", tt.total, tt.pct, got)
	}
}

func TestApplyDiscount_FloorsAtZero(t *testing.T) {
	got := ApplyDiscount(decimal.NewFromFloat(100), decimal.NewFromFloat(150))
	assert.True(t, got.IsZero(), "got %s", got)
}
