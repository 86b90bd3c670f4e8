package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/tracing"
)

// Notifier delivers a message over one channel.
type Notifier interface {
	Channel() approval.Channel
	Notify(ctx context.Context, msg *Message) error
}

// Sender fans a message out to channels and reports per-channel errors.
type Sender interface {
	Send(ctx context.Context, msg *Message, channels ...approval.Channel) map[approval.Channel]error
}

// Dispatcher sends inline to registered notifiers.
type Dispatcher struct {
	notifiers map[approval.Channel]Notifier
	logger    *slog.Logger
}

// NewDispatcher registers notifiers; a later notifier replaces an earlier
// one for the same channel.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ret := &Dispatcher{notifiers: map[approval.Channel]Notifier{}, logger: logger}
	for _, notifier := range notifiers {
		if notifier != nil {
			ret.notifiers[notifier.Channel()] = notifier
		}
	}
	return ret
}

// Channels returns the registered channels in name order.
func (d *Dispatcher) Channels() []approval.Channel {
	ret := make([]approval.Channel, 0, len(d.notifiers))
	for channel := range d.notifiers {
		ret = append(ret, channel)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Has reports whether channel has a notifier.
func (d *Dispatcher) Has(channel approval.Channel) bool {
	_, ok := d.notifiers[channel]
	return ok
}

// Deliver sends msg over a single channel, converting a panic into an error.
func (d *Dispatcher) Deliver(ctx context.Context, channel approval.Channel, msg *Message) (err error) {
	notifier, ok := d.notifiers[channel]
	if !ok {
		return fmt.Errorf("no notifier for channel %s", channel)
	}
	ctx, span := tracing.StartSpan(ctx, "notify."+string(channel), tracing.KindClient)
	span.WithAttributes(map[string]string{"approval.request_id": msg.RequestID})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier %s panicked: %v", channel, r)
		}
		tracing.EndSpan(span, err)
	}()
	return notifier.Notify(ctx, msg)
}

// Send delivers msg to every channel concurrently. Channels without a
// notifier are skipped. Failures are logged and returned; they never stop
// the remaining deliveries.
func (d *Dispatcher) Send(ctx context.Context, msg *Message, channels ...approval.Channel) map[approval.Channel]error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = map[approval.Channel]error{}
	)
	for _, channel := range channels {
		if !d.Has(channel) {
			continue
		}
		wg.Add(1)
		go func(channel approval.Channel) {
			defer wg.Done()
			if err := d.Deliver(ctx, channel, msg); err != nil {
				d.logger.Warn("notification_failed", "channel", string(channel), "request_id", msg.RequestID, "error", err.Error())
				mu.Lock()
				failed[channel] = err
				mu.Unlock()
				return
			}
			d.logger.Debug("notification_sent", "channel", string(channel), "request_id", msg.RequestID)
		}(channel)
	}
	wg.Wait()
	return failed
}
