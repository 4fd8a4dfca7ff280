package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopcore/internal/service/cart"
)

type cartQuantityRequest struct {
	// Zero removes the line.
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	ct, err := h.deps.Cart.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var in cart.AddInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeBindError(c, err)
		return
	}
	ct, err := h.deps.Cart.Add(c.Request.Context(), currentUser(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	lineID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	ct, err := h.deps.Cart.UpdateQuantity(c.Request.Context(), currentUser(c), lineID, *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	lineID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.deps.Cart.Remove(c.Request.Context(), currentUser(c), lineID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.deps.Cart.Clear(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
