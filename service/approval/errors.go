package approval

import "errors"

var (
	// ErrUnknownRequest is returned for request ids that were never created.
	ErrUnknownRequest = errors.New("approval: unknown request")
	// ErrCancelled is returned by WaitForApproval when the request is cancelled.
	ErrCancelled = errors.New("approval: request cancelled")
	// ErrInvalidResponse is returned for responses with an unknown action or
	// a redirect without instructions.
	ErrInvalidResponse = errors.New("approval: invalid response")
)
