package webhook

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"shopcore/internal/domain"
	"shopcore/internal/logging"
	webhookrepo "shopcore/internal/repository/webhook"
	"shopcore/internal/service/payment"

	"go.uber.org/zap"
)

const bookkeepingTimeout = 5 * time.Second

type Reconciler interface {
	Reconcile(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) error
}

type Options struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	// Lease is how long a claimed task stays invisible to other workers.
	Lease       time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Lease <= 0 {
		o.Lease = time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 8
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 5 * time.Second
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	return o
}

// Processor claims queued callbacks and hands them to the reconciler.
type Processor struct {
	store      webhookrepo.Repository
	reconciler Reconciler
	opts       Options
	nudge      <-chan struct{}
	logger     *zap.Logger
	now        func() time.Time
}

func NewProcessor(store webhookrepo.Repository, reconciler Reconciler, queue *Queue, opts Options, logger *zap.Logger) *Processor {
	p := &Processor{
		store:      store,
		reconciler: reconciler,
		opts:       opts.withDefaults(),
		logger:     logging.OrNop(logger).Named("webhook_processor"),
		now:        time.Now,
	}
	if queue != nil {
		p.nudge = queue.nudge
	}
	return p
}

// Run processes tasks until ctx is done. Tasks in flight finish their
// bookkeeping; claimed tasks not yet started become visible again when their
// lease runs out.
func (p *Processor) Run(ctx context.Context) {
	tasks := make(chan webhookrepo.Task)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				p.process(ctx, t)
			}
		}()
	}
	defer wg.Wait()
	defer close(tasks)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.logger.Info("webhook processor started", zap.Int("workers", p.opts.Workers))
	for {
		p.dispatch(ctx, tasks)
		select {
		case <-ctx.Done():
			p.logger.Info("webhook processor stopped")
			return
		case <-ticker.C:
		case <-p.nudge:
		}
	}
}

// dispatch claims batches until the queue has no more due tasks.
func (p *Processor) dispatch(ctx context.Context, tasks chan<- webhookrepo.Task) {
	for ctx.Err() == nil {
		batch, err := p.store.Claim(ctx, p.opts.BatchSize, p.opts.Lease)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("claim webhook tasks", zap.Error(err))
			}
			return
		}
		for _, t := range batch {
			select {
			case tasks <- t:
			case <-ctx.Done():
				return
			}
		}
		if len(batch) < p.opts.BatchSize {
			return
		}
	}
}

// ProcessOnce claims one batch and processes it in the calling goroutine.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := p.store.Claim(ctx, p.opts.BatchSize, p.opts.Lease)
	if err != nil {
		return 0, err
	}
	for _, t := range batch {
		p.process(ctx, t)
	}
	return len(batch), nil
}

func (p *Processor) process(ctx context.Context, t webhookrepo.Task) {
	log := p.logger.With(zap.String("task_id", t.ID), zap.String("provider", string(t.Provider)), zap.Int("attempt", t.Attempts))
	err := p.reconciler.Reconcile(ctx, t.Provider, t.Body, t.Headers)

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	var storeErr error
	switch {
	case err == nil:
		storeErr = p.store.Complete(bctx, t.ID)
		log.Debug("webhook task done")
	case errors.Is(err, payment.ErrCallbackRejected):
		storeErr = p.store.Bury(bctx, t.ID, err.Error())
		log.Warn("webhook task rejected", zap.Error(err))
	case t.Attempts >= p.opts.MaxAttempts:
		storeErr = p.store.Bury(bctx, t.ID, err.Error())
		log.Error("webhook task dead-lettered", zap.Error(err))
	default:
		delay := p.retryDelay(t.Attempts)
		storeErr = p.store.Retry(bctx, t.ID, p.now().Add(delay), err.Error())
		log.Warn("webhook task will be retried", zap.Duration("delay", delay), zap.Error(err))
	}
	if storeErr != nil {
		log.Error("webhook task state not saved", zap.Error(storeErr))
	}
}

// retryDelay doubles BaseDelay per attempt up to MaxDelay.
func (p *Processor) retryDelay(attempts int) time.Duration {
	d := p.opts.BaseDelay
	for i := 1; i < attempts && d < p.opts.MaxDelay; i++ {
		d *= 2
	}
	if d > p.opts.MaxDelay {
		d = p.opts.MaxDelay
	}
	return d
}
