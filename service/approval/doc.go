// Package approval implements the approval gateway: it turns a checkpoint
// into an approval request, fans it out to notification channels and waits
// for the first of a CLI answer, an authenticated out-of-band callback, a
// timeout or a cancellation.
//
// Out-of-band responses never reach the waiter directly. ReceiveAsyncResponse
// validates the callback token and deposits approvals/<id>_response.json,
// which the waiter consumes. The deposit works across processes sharing the
// state directory, so a callback server or the operator CLI may run
// separately from the agent.
package approval
