package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/medlink/telehealth-platform/internal/observability/metrics"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Handler consumes one decoded envelope.
type Handler interface {
	HandleBookingConfirmed(ctx context.Context, evt BookingConfirmedV1) error
	HandleAppointmentCancelled(ctx context.Context, evt AppointmentCancelledV1) error
	HandleLowBalance(ctx context.Context, evt LowBalanceV1) error
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	deleteTimeoutSeconds = 5
)

// Worker consumes side-effect events from the queue. A failing handler is
// logged and counted but the message is still deleted: side effects are
// at-most-once and must never poison the queue or feed back into bookings.
type Worker struct {
	queue   queueClient
	handler Handler
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	workers     int
	waitSecs    int
	batchSize   int
	taskTimeout time.Duration

	wg sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithTaskTimeout bounds the time spent on one event.
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.taskTimeout = d
		}
	}
}

// WithMetrics wires side-effect failure counters.
func WithMetrics(m *metrics.BookingMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker constructs a queue consumer around the provided handler.
func NewWorker(queue queueClient, handler Handler, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if handler == nil {
		panic("dispatch: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{
		queue:       queue,
		handler:     handler,
		logger:      logger,
		workers:     defaultWorkerCount,
		waitSecs:    defaultWaitSeconds,
		batchSize:   defaultBatchSize,
		taskTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dispatch receive failed", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg queueMessage) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil {
		w.logger.Error("dispatch: undecodable envelope dropped", "error", err, "message_id", msg.ID, "kind", msg.Kind)
		w.metrics.ObserveSideEffectFailure("undecodable")
		w.delete(msg)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	err := w.dispatch(taskCtx, env)
	cancel()

	if err != nil {
		w.logger.Error("side effect failed", "error", err, "kind", env.Kind, "event_id", env.ID)
		w.metrics.ObserveSideEffectFailure(string(env.Kind))
	}
	w.delete(msg)
}

func (w *Worker) dispatch(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case KindBookingConfirmed:
		if env.Booking == nil {
			w.logger.Warn("dispatch: envelope missing booking payload", "event_id", env.ID)
			return nil
		}
		return w.handler.HandleBookingConfirmed(ctx, *env.Booking)
	case KindAppointmentCancelled:
		if env.Cancelled == nil {
			w.logger.Warn("dispatch: envelope missing cancellation payload", "event_id", env.ID)
			return nil
		}
		return w.handler.HandleAppointmentCancelled(ctx, *env.Cancelled)
	case KindLowBalance:
		if env.Balance == nil {
			w.logger.Warn("dispatch: envelope missing balance payload", "event_id", env.ID)
			return nil
		}
		return w.handler.HandleLowBalance(ctx, *env.Balance)
	default:
		w.logger.Warn("dispatch: unknown event kind dropped", "kind", env.Kind, "event_id", env.ID)
		return nil
	}
}

func (w *Worker) delete(msg queueMessage) {
	delCtx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(delCtx, msg.ReceiptHandle); err != nil {
		w.logger.Warn("dispatch delete failed", "error", err, "message_id", msg.ID)
	}
}
