package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartling/go-shop-api/internal/repository"
)

// CheckStock rejects an order attempt up front when any cart line already
// exceeds available stock. The checkout transaction re-validates under its own
// locking; this pre-check just fails fast with a friendlier message.
func CheckStock(cartRepo repository.CartRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := cartRepo.ListByUser(c.Request.Context(), GetUserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		for _, item := range items {
			if item.Product != nil && item.Product.Stock < item.Quantity {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("not enough stock for %s, only %d available", item.Product.Name, item.Product.Stock),
				})
				return
			}
		}
		c.Next()
	}
}
