package approval

import (
	"context"
	"sync"
	"time"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
)

// DecisionFunc answers a pending request. Returning nil leaves it pending.
type DecisionFunc func(r *approval.Request) *approval.Response

// AutoDecider starts a goroutine that polls ListPending and answers every
// request through Respond with fn's decision. It returns stop(); cancelling
// ctx also stops it.
func AutoDecider(ctx context.Context, svc Service, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, _ := svc.ListPending(ctx)
				for _, r := range requests {
					if resp := fn(r); resp != nil {
						_, _ = svc.Respond(ctx, r.ID, resp)
					}
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// AutoApprove continues every pending request.
func AutoApprove(ctx context.Context, svc Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc, func(*approval.Request) *approval.Response {
		return &approval.Response{Approved: true, Action: checkpoint.ActionContinue, Channel: approval.ChannelAuto, Responder: "auto-approve"}
	}, interval)
}

// AutoReject aborts every pending request with reason.
func AutoReject(ctx context.Context, svc Service, reason string, interval time.Duration) func() {
	return AutoDecider(ctx, svc, func(*approval.Request) *approval.Response {
		return &approval.Response{Action: checkpoint.ActionAbort, Channel: approval.ChannelAuto, Responder: "auto-reject", Notes: reason}
	}, interval)
}
