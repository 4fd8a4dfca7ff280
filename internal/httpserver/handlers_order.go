package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopcore/internal/domain"
	"shopcore/internal/service/order"
)

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required,orderstatus"`
}

func (h *handlers) createOrder(c *gin.Context) {
	var in order.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeBindError(c, err)
		return
	}
	in.CallerID = currentUser(c)

	o, err := h.deps.Orders.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) listMyOrders(c *gin.Context) {
	skip, limit, ok := paging(c)
	if !ok {
		return
	}
	orders, err := h.deps.Orders.ListMine(c.Request.Context(), currentUser(c), skip, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	o, err := h.deps.Orders.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	o, err := h.deps.Orders.UpdateStatus(c.Request.Context(), currentUser(c), id, req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) listShopOrders(c *gin.Context) {
	shopID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	skip, limit, ok := paging(c)
	if !ok {
		return
	}
	var status *domain.OrderStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.OrderStatus(raw)
		if !s.Valid() {
			writeBindError(c, domain.NewValidationError("status", "is not an order status"))
			return
		}
		status = &s
	}
	orders, err := h.deps.Orders.ListForShop(c.Request.Context(), currentUser(c), shopID, status, skip, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

func (h *handlers) listOrderPayments(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	payments, err := h.deps.Payments.ListForOrder(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(payments))
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
