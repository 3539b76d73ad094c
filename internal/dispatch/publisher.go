package dispatch

import (
	"context"
	"fmt"

	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Publisher enqueues side-effect events for asynchronous processing. Enqueue
// failures are returned to the caller, but callers treat them as advisory:
// the booking itself has already committed.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// PublishBookingConfirmed enqueues a confirmation event.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, evt BookingConfirmedV1) error {
	return p.publish(ctx, Envelope{Kind: KindBookingConfirmed, Booking: &evt})
}

// PublishAppointmentCancelled enqueues a cancellation event.
func (p *Publisher) PublishAppointmentCancelled(ctx context.Context, evt AppointmentCancelledV1) error {
	return p.publish(ctx, Envelope{Kind: KindAppointmentCancelled, Cancelled: &evt})
}

// PublishLowBalance enqueues a low-balance notice.
func (p *Publisher) PublishLowBalance(ctx context.Context, evt LowBalanceV1) error {
	return p.publish(ctx, Envelope{Kind: KindLowBalance, Balance: &evt})
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, body, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, env.Kind, body); err != nil {
		return fmt.Errorf("dispatch: failed to enqueue event: %w", err)
	}
	p.logger.Debug("side-effect event enqueued", "event_id", env.ID, "kind", env.Kind)
	return nil
}
