package service

import (
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/model"
)

// CalculateTotal sums price x quantity over the cart lines and subtracts the
// flat discount. The result is floored at zero.
func CalculateTotal(items []model.CartItem, discount decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	total = total.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ApplyDiscount reduces total by a percentage. Like CalculateTotal it never
// returns a negative amount, so a discount above 100% yields zero.
func ApplyDiscount(total decimal.Decimal, percentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percentage.Div(decimal.NewFromInt(100)))
	discounted := total.Mul(factor)
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}
