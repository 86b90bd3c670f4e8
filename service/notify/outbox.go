package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/service/messaging"
)

// Delivery is one queued channel send.
type Delivery struct {
	Channel approval.Channel `json:"channel"`
	Message *Message         `json:"message"`
}

// Outbox queues deliveries and sends them from a background worker.
type Outbox struct {
	queue      messaging.Queue[Delivery]
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewOutbox creates an outbox draining queue through dispatcher.
func NewOutbox(queue messaging.Queue[Delivery], dispatcher *Dispatcher, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{queue: queue, dispatcher: dispatcher, logger: logger}
}

// Send enqueues one delivery per channel that has a notifier. Only enqueue
// failures are reported; delivery happens in Run.
func (o *Outbox) Send(ctx context.Context, msg *Message, channels ...approval.Channel) map[approval.Channel]error {
	failed := map[approval.Channel]error{}
	for _, channel := range channels {
		if !o.dispatcher.Has(channel) {
			continue
		}
		if err := o.queue.Publish(ctx, &Delivery{Channel: channel, Message: msg}); err != nil {
			o.logger.Warn("notification_enqueue_failed", "channel", string(channel), "request_id", msg.RequestID, "error", err.Error())
			failed[channel] = err
		}
	}
	return failed
}

// Run consumes deliveries until ctx is done. A failed delivery is nacked so
// the queue can retry or dead-letter it.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		msg, err := o.queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("outbox consume failed: %w", err)
		}
		o.handle(ctx, msg)
	}
}

func (o *Outbox) handle(ctx context.Context, msg messaging.Message[Delivery]) {
	delivery := msg.T()
	if delivery.Message == nil {
		_ = msg.Ack()
		return
	}
	err := o.dispatcher.Deliver(ctx, delivery.Channel, delivery.Message)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			o.logger.Warn("notification_ack_failed", "channel", string(delivery.Channel), "error", ackErr.Error())
		}
		o.logger.Debug("notification_sent", "channel", string(delivery.Channel), "request_id", delivery.Message.RequestID, "attempt", msg.Attempt())
		return
	}
	o.logger.Warn("notification_failed", "channel", string(delivery.Channel), "request_id", delivery.Message.RequestID,
		"attempt", msg.Attempt(), "error", err.Error())
	if nackErr := msg.Nack(err); nackErr != nil {
		o.logger.Warn("notification_nack_failed", "channel", string(delivery.Channel), "error", nackErr.Error())
	}
}

var (
	_ Sender = (*Dispatcher)(nil)
	_ Sender = (*Outbox)(nil)
)
