// Package slack posts approval requests to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/service/notify"
)

// Notifier sends block-kit messages to an incoming webhook URL.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a notifier; a nil client uses a 10s timeout client.
func New(webhookURL string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{webhookURL: webhookURL, client: client}
}

// Channel returns approval.ChannelSlack.
func (n *Notifier) Channel() approval.Channel { return approval.ChannelSlack }

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type element struct {
	Type  string `json:"type"`
	Text  *text  `json:"text,omitempty"`
	URL   string `json:"url,omitempty"`
	Style string `json:"style,omitempty"`
}

type block struct {
	Type     string    `json:"type"`
	Text     *text     `json:"text,omitempty"`
	Elements []element `json:"elements,omitempty"`
}

type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func render(msg *notify.Message) *payload {
	ret := &payload{Text: msg.Title}
	ret.Blocks = append(ret.Blocks, block{Type: "header", Text: &text{Type: "plain_text", Text: msg.Title}})
	body := msg.Summary
	if msg.ExpiresAt != nil {
		body += fmt.Sprintf("\n_Expires %s_", msg.ExpiresAt.UTC().Format(time.RFC1123))
	}
	if body = strings.TrimSpace(body); body != "" {
		ret.Blocks = append(ret.Blocks, block{Type: "section", Text: &text{Type: "mrkdwn", Text: body}})
	}
	styles := map[checkpoint.Action]string{checkpoint.ActionContinue: "primary", checkpoint.ActionAbort: "danger"}
	var buttons []element
	for _, action := range []checkpoint.Action{checkpoint.ActionContinue, checkpoint.ActionPause, checkpoint.ActionAbort} {
		link, ok := msg.Links[action]
		if !ok {
			continue
		}
		buttons = append(buttons, element{
			Type:  "button",
			Text:  &text{Type: "plain_text", Text: strings.ToUpper(string(action[:1])) + string(action[1:])},
			URL:   link,
			Style: styles[action],
		})
	}
	if len(buttons) > 0 {
		ret.Blocks = append(ret.Blocks, block{Type: "actions", Elements: buttons})
	}
	ret.Blocks = append(ret.Blocks, block{Type: "context", Elements: []element{{Type: "mrkdwn", Text: &text{Type: "mrkdwn", Text: "request `" + msg.RequestID + "`"}}}})
	return ret
}

// Notify posts the message.
func (n *Notifier) Notify(ctx context.Context, msg *notify.Message) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack webhook URL was empty")
	}
	data, err := json.Marshal(render(msg))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack post failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
