// Package worker drains the notification queue and hands each intent to
// a sender. Failed sends are logged and dropped, never requeued.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/nudge/internal/adapters/mq/queue"
	"github.com/okian/nudge/pkg/logger"
	"github.com/okian/nudge/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Notification is what workers read off the queue.
type Notification = queue.Notification

// Sender pushes one notification to its user.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dequeuer defines how workers receive notifications.
type Dequeuer interface {
	Dequeue(ctx context.Context) <-chan Notification
}

// DeliveryWorker processes notifications from the queue until stopped.
type DeliveryWorker struct {
	queue  Dequeuer
	sender Sender
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the DeliveryWorker.
type Option func(*DeliveryWorker)

// WithName sets the worker name for logging.
func WithName(name string) Option {
	return func(w *DeliveryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *DeliveryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewDeliveryWorker creates a worker reading from q and sending via s.
func NewDeliveryWorker(q Dequeuer, s Sender, opts ...Option) *DeliveryWorker {
	w := &DeliveryWorker{
		queue:    q,
		sender:   s,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled, the worker is shut
// down, or the queue closes.
func (w *DeliveryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			w.deliver(ctx, n)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *DeliveryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver sends one notification. Errors are terminal for the intent:
// logged, counted, dropped.
func (w *DeliveryWorker) deliver(ctx context.Context, n Notification) {
	start := time.Now()
	err := w.sender.Send(ctx, n)
	metrics.ObserveDeliveryLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordNotificationFailed(string(n.Kind))
		w.logger.Error(ctx, "notification send failed",
			logger.String("id", n.ID),
			logger.String("user", n.UserID),
			logger.String("kind", string(n.Kind)),
			logger.Error(err),
		)
		return
	}

	metrics.RecordNotificationSent(string(n.Kind))
	w.logger.Debug(ctx, "notification sent",
		logger.String("id", n.ID),
		logger.String("user", n.UserID),
		logger.String("kind", string(n.Kind)),
	)
}

// Pool manages a fixed set of delivery workers.
type Pool struct {
	workers []*DeliveryWorker
	logger  logger.Logger
}

// NewPool creates a pool with workerCount workers reading from q.
func NewPool(workerCount int, q Dequeuer, s Sender) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*DeliveryWorker, workerCount),
		logger:  logger.Get().Named("delivery-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewDeliveryWorker(q, s, WithName("delivery-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start runs all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop stops all workers, waiting briefly for each to finish.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		select {
		case <-w.shutdown:
			// Already shut down.
		default:
			close(w.shutdown)
		}
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.logger.Warn(context.Background(), "worker stop timed out",
				logger.String("worker", w.name),
			)
		}
	}
	metrics.UpdateWorkerCount(0)
}
