package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopcore/internal/domain"
)

const maxWebhookBody = 1 << 20

// paymentWebhook stores the callback for the worker pool and acknowledges
// it. Verification happens when the task is processed, so a bad signature
// still gets 200 and is never revealed to the sender. Only a failed insert
// answers non-2xx.
func (h *handlers) paymentWebhook(c *gin.Context) {
	provider := domain.PaymentProvider(c.Param("provider"))
	if !provider.Valid() {
		h.logger.Warn("webhook for unknown provider dropped",
			zap.String("provider", string(provider)),
			zap.String("request_id", getRequestID(c)),
		)
		acceptWebhook(c)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "webhook body unreadable, dropped"
		if errors.As(err, &tooLarge) {
			msg = "webhook body too large, dropped"
		}
		h.logger.Warn(msg,
			zap.String("provider", string(provider)),
			zap.String("request_id", getRequestID(c)),
			zap.Error(err),
		)
		acceptWebhook(c)
		return
	}

	taskID, err := h.deps.Webhooks.Enqueue(c.Request.Context(), provider, body, c.Request.Header)
	if err != nil {
		// The provider will redeliver on a non-2xx answer.
		h.logger.Error("webhook not queued",
			zap.String("provider", string(provider)),
			zap.String("request_id", getRequestID(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable", RequestID: getRequestID(c)})
		return
	}
	h.logger.Debug("webhook queued", zap.String("provider", string(provider)), zap.String("task_id", taskID))
	acceptWebhook(c)
}

func acceptWebhook(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
