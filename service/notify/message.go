package notify

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
)

// Message is the channel-neutral rendering of an approval request.
type Message struct {
	RequestID    string              `json:"requestId"`
	CheckpointID string              `json:"checkpointId"`
	Kind         checkpoint.Kind     `json:"kind"`
	Title        string              `json:"title"`
	Summary      string              `json:"summary"`
	Context      *checkpoint.Context `json:"context,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	// ApprovalToken authenticates the recipient's callback.
	ApprovalToken string `json:"approvalToken"`
	// CallbackURL accepts a JSON approval.Callback; empty without a callback server.
	CallbackURL string `json:"callbackUrl,omitempty"`
	// Links holds one-click response URLs keyed by action.
	Links map[checkpoint.Action]string `json:"links,omitempty"`
}

// NewMessage renders req; baseURL is the public callback server address.
func NewMessage(req *approval.Request, baseURL string) *Message {
	ret := &Message{
		RequestID:     req.ID,
		CheckpointID:  req.CheckpointID,
		Kind:          req.Kind,
		Title:         fmt.Sprintf("Checkpoint: %s", req.Kind.Title()),
		Context:       req.Context.Clone(),
		CreatedAt:     req.CreatedAt,
		ExpiresAt:     req.ExpiresAt,
		ApprovalToken: req.Token,
	}
	ret.Summary = summary(req.Context)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		ret.CallbackURL = fmt.Sprintf("%s/approvals/%s/response", baseURL, url.PathEscape(req.ID))
		ret.Links = map[checkpoint.Action]string{}
		for _, action := range []checkpoint.Action{checkpoint.ActionContinue, checkpoint.ActionPause, checkpoint.ActionAbort} {
			values := url.Values{}
			values.Set("token", req.Token)
			values.Set("action", string(action))
			values.Set("approved", fmt.Sprint(action.Approves()))
			ret.Links[action] = fmt.Sprintf("%s/approvals/%s/respond?%s", baseURL, url.PathEscape(req.ID), values.Encode())
		}
	}
	return ret
}

func summary(cctx *checkpoint.Context) string {
	if cctx == nil {
		return ""
	}
	var lines []string
	if cctx.TaskID != "" || cctx.TaskTitle != "" {
		lines = append(lines, fmt.Sprintf("Task: %s %s", cctx.TaskID, cctx.TaskTitle))
	}
	if cctx.Action != "" {
		lines = append(lines, "Action: "+cctx.Action)
	}
	lines = append(lines, fmt.Sprintf("Turn: %d  Context: %.0f%%", cctx.TurnNumber, cctx.ContextUsage*100))
	if cctx.Error != "" {
		lines = append(lines, "Error: "+cctx.Error)
	}
	if n := len(cctx.AffectedFiles); n > 0 {
		files := cctx.AffectedFiles
		if n > 5 {
			files = append(append([]string(nil), files[:5]...), fmt.Sprintf("... and %d more", n-5))
		}
		lines = append(lines, "Files: "+strings.Join(files, ", "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Text renders the message as plain text.
func (m *Message) Text() string {
	builder := &strings.Builder{}
	builder.WriteString(m.Title)
	builder.WriteString("\n")
	if m.Summary != "" {
		builder.WriteString(m.Summary)
		builder.WriteString("\n")
	}
	if m.ExpiresAt != nil {
		builder.WriteString(fmt.Sprintf("Expires: %s\n", m.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	builder.WriteString(fmt.Sprintf("Request: %s\n", m.RequestID))
	for _, action := range m.actions() {
		builder.WriteString(fmt.Sprintf("%s: %s\n", action, m.Links[action]))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func (m *Message) actions() []checkpoint.Action {
	ret := make([]checkpoint.Action, 0, len(m.Links))
	for action := range m.Links {
		ret = append(ret, action)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}
