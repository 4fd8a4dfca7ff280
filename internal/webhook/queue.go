// Package webhook queues provider callbacks durably and reconciles them in a
// worker pool with retries and a dead-letter state.
package webhook

import (
	"context"
	"net/http"

	"shopcore/internal/domain"
	"shopcore/internal/logging"
	webhookrepo "shopcore/internal/repository/webhook"

	"go.uber.org/zap"
)

// Headers that never reach the task table.
var droppedHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

// Queue accepts callbacks from the HTTP layer.
type Queue struct {
	store  webhookrepo.Repository
	nudge  chan struct{}
	logger *zap.Logger
}

func NewQueue(store webhookrepo.Repository, logger *zap.Logger) *Queue {
	return &Queue{store: store, nudge: make(chan struct{}, 1), logger: logging.OrNop(logger).Named("webhook_queue")}
}

// Enqueue stores the raw callback and wakes the processor.
func (q *Queue) Enqueue(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) (string, error) {
	h := headers.Clone()
	for _, name := range droppedHeaders {
		h.Del(name)
	}
	t, err := q.store.Enqueue(ctx, provider, body, h)
	if err != nil {
		q.logger.Error("callback not queued", zap.String("provider", string(provider)), zap.Int("bytes", len(body)), zap.Error(err))
		return "", err
	}
	select {
	case q.nudge <- struct{}{}:
	default:
	}
	q.logger.Debug("callback queued", zap.String("task_id", t.ID), zap.String("provider", string(provider)))
	return t.ID, nil
}
