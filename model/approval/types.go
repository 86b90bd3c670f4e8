package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/overseer/model/checkpoint"
)

// Channel is a delivery/response path for an approval request.
type Channel string

const (
	ChannelCLI     Channel = "cli"
	ChannelSlack   Channel = "slack"
	ChannelEmail   Channel = "email"
	ChannelLinear  Channel = "linear"
	ChannelWebhook Channel = "webhook"
	ChannelCommand Channel = "command"
	// ChannelAuto marks responses produced by an automated proxy.
	ChannelAuto Channel = "auto"
)

// ParseChannel converts a case-insensitive name to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(name))); c {
	case ChannelCLI, ChannelSlack, ChannelEmail, ChannelLinear, ChannelWebhook, ChannelCommand, ChannelAuto:
		return c, nil
	}
	return "", fmt.Errorf("unknown approval channel: %q", name)
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaused    Status = "paused"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Responder names reserved by the gateway.
const (
	ResponderUser    = "user"
	ResponderTimeout = "timeout"
)

// Request is an approval request derived 1:1 from a checkpoint.
type Request struct {
	ID           string              `json:"id"`
	CheckpointID string              `json:"checkpointId"`
	Kind         checkpoint.Kind     `json:"kind"`
	CreatedAt    time.Time           `json:"createdAt"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	Context      *checkpoint.Context `json:"context,omitempty"`
	Channels     []Channel           `json:"channels"`
	Status       Status              `json:"status"`
	// TokenHash is the hex BLAKE2b-256 digest of the approval token; the
	// token itself never touches the state directory.
	TokenHash string    `json:"approvalTokenHash"`
	Response  *Response `json:"response,omitempty"`
	// Token is only populated on the value returned by RequestApproval.
	Token string `json:"-"`
}

// Expired reports whether the request deadline has passed at now.
func (r *Request) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// HasChannel reports whether the request was delivered over c.
func (r *Request) HasChannel(c Channel) bool {
	for _, candidate := range r.Channels {
		if candidate == c {
			return true
		}
	}
	return false
}

// Response is the single outcome of a request.
type Response struct {
	Approved             bool              `json:"approved"`
	Action               checkpoint.Action `json:"action"`
	Channel              Channel           `json:"channel"`
	Responder            string            `json:"responder"`
	Timestamp            time.Time         `json:"timestamp"`
	Notes                string            `json:"notes,omitempty"`
	RedirectInstructions string            `json:"redirectInstructions,omitempty"`
}

// Status maps the response to the terminal request status. A pause settles
// the request as paused while its checkpoint stays pending for a later resume.
func (r *Response) Status() Status {
	switch {
	case r.Responder == ResponderTimeout:
		return StatusTimedOut
	case r.Approved:
		return StatusApproved
	case r.Action == checkpoint.ActionPause:
		return StatusPaused
	default:
		return StatusRejected
	}
}

// Callback is the inbound contract of out-of-band channels.
type Callback struct {
	RequestID            string            `json:"requestId"`
	ApprovalToken        string            `json:"approvalToken"`
	Approved             bool              `json:"approved"`
	Action               checkpoint.Action `json:"action"`
	Channel              Channel           `json:"channel"`
	Responder            string            `json:"responder,omitempty"`
	Notes                string            `json:"notes,omitempty"`
	RedirectInstructions string            `json:"redirectInstructions,omitempty"`
}
