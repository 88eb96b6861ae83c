package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cartling/go-shop-api/internal/dto"
	"github.com/cartling/go-shop-api/internal/middleware"
	"github.com/cartling/go-shop-api/internal/service"
)

type CartHandler struct {
	cartService *service.CartService
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	resp, err := h.cartService.GetCart(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.cartService.AddItem(c.Request.Context(), middleware.GetUserID(c), req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, service.ErrNotEnoughStockMerged):
			c.JSON(http.StatusBadRequest, gin.H{"error": "not enough stock available for the requested quantity"})
		case errors.Is(err, service.ErrNotEnoughStock):
			c.JSON(http.StatusBadRequest, gin.H{"error": "not enough stock available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item ID"})
		return
	}

	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.cartService.UpdateItem(c.Request.Context(), middleware.GetUserID(c), itemID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
		case errors.Is(err, service.ErrCartAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		case errors.Is(err, service.ErrNotEnoughStock):
			c.JSON(http.StatusBadRequest, gin.H{"error": "not enough stock available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item ID"})
		return
	}

	if err := h.cartService.DeleteItem(c.Request.Context(), middleware.GetUserID(c), itemID); err != nil {
		switch {
		case errors.Is(err, service.ErrCartItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
		case errors.Is(err, service.ErrCartAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
