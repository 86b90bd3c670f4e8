package approval

import "time"

// Event topics published by the gateway.
const (
	TopicRequestCreated   = "request.created"
	TopicRequestResolved  = "request.resolved"
	TopicRequestTimedOut  = "request.timed_out"
	TopicRequestCancelled = "request.cancelled"
	TopicResponseReceived = "response.received"
)

// Event envelope describing a request lifecycle change.
type Event struct {
	Topic     string    `json:"topic"`
	RequestID string    `json:"requestId"`
	Request   *Request  `json:"request,omitempty"`
	Response  *Response `json:"response,omitempty"`
	At        time.Time `json:"at"`
}
