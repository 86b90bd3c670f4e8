package approval

import (
	"context"
	"time"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/service/messaging"
)

// Service is the approval gateway contract.
type Service interface {
	// RequestApproval creates and announces a request. The returned request
	// carries the plain approval token; only its hash is persisted.
	RequestApproval(ctx context.Context, checkpointID string, kind checkpoint.Kind, cctx *checkpoint.Context, channels ...approval.Channel) (*approval.Request, error)
	// WaitForApproval blocks until the request is resolved. A nil timeout
	// uses the request deadline; a non-positive one waits without bound.
	WaitForApproval(ctx context.Context, id string, timeout *time.Duration) (*approval.Response, error)
	// ReceiveAsyncResponse accepts an untrusted callback; it returns false,
	// without side effects, unless the token matches a pending request.
	ReceiveAsyncResponse(ctx context.Context, callback *approval.Callback) bool
	// Respond deposits a response from a trusted local caller.
	Respond(ctx context.Context, id string, response *approval.Response) (bool, error)
	// CancelRequest cancels a pending request.
	CancelRequest(ctx context.Context, id string) (bool, error)
	ListPending(ctx context.Context) ([]*approval.Request, error)
	Load(ctx context.Context, id string) (*approval.Request, error)
	Events() *messaging.Hub[approval.Event]
}

// Prompter is the synchronous CLI response path.
type Prompter interface {
	Prompt(ctx context.Context, request *approval.Request) (*approval.Response, error)
}
