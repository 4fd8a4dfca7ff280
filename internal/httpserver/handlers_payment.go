package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"shopcore/internal/domain"
	"shopcore/internal/service/payment"
)

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type paymentStatusRequest struct {
	Status  domain.PaymentStatus `json:"status" binding:"required,paymentstatus"`
	Details json.RawMessage      `json:"details"`
}

func (h *handlers) initiatePayment(c *gin.Context) {
	orderID, ok := pathUUID(c, "order_id")
	if !ok {
		return
	}
	provider, err := domain.ParseProvider(c.Query("provider"))
	if err != nil {
		writeBindError(c, err)
		return
	}

	res, err := h.deps.Payments.Initiate(c.Request.Context(), payment.InitiateInput{
		OrderID:  orderID,
		Provider: provider,
		CallerID: currentUser(c),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) getPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.deps.Payments.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updatePaymentStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	p, err := h.deps.Payments.UpdateStatus(c.Request.Context(), currentUser(c), id, req.Status, req.Details)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// refundPayment accepts an empty body for a full refund.
func (h *handlers) refundPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}
	res, err := h.deps.Payments.Refund(c.Request.Context(), payment.RefundInput{
		CallerID:  currentUser(c),
		PaymentID: id,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
