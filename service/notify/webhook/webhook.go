// Package webhook posts approval requests as JSON to generic HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/service/notify"
)

// SignatureHeader carries the keyed BLAKE2b-256 digest of the body when a
// signing secret is configured.
const SignatureHeader = "X-Overseer-Signature"

// Notifier posts the message to every URL.
type Notifier struct {
	urls    []string
	headers map[string]string
	secret  []byte
	client  *http.Client
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithHeaders adds static request headers.
func WithHeaders(headers map[string]string) Option {
	return func(n *Notifier) { n.headers = headers }
}

// WithSecret enables body signing.
func WithSecret(secret string) Option {
	return func(n *Notifier) { n.secret = []byte(secret) }
}

// WithClient sets the HTTP client.
func WithClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

// New creates a notifier for urls.
func New(urls []string, options ...Option) *Notifier {
	ret := &Notifier{urls: urls, client: &http.Client{Timeout: 10 * time.Second}}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Channel returns approval.ChannelWebhook.
func (n *Notifier) Channel() approval.Channel { return approval.ChannelWebhook }

// Sign returns the hex signature of body under secret.
func Sign(secret, body []byte) (string, error) {
	hash, err := blake2b.New256(secret)
	if err != nil {
		return "", err
	}
	hash.Write(body)
	return "blake2b=" + hex.EncodeToString(hash.Sum(nil)), nil
}

// Notify posts to every URL and joins the failures.
func (n *Notifier) Notify(ctx context.Context, msg *notify.Message) error {
	if len(n.urls) == 0 {
		return fmt.Errorf("no webhook URLs configured")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	signature := ""
	if len(n.secret) > 0 {
		if signature, err = Sign(n.secret, body); err != nil {
			return fmt.Errorf("failed to sign webhook body: %w", err)
		}
	}
	var errs []error
	for _, URL := range n.urls {
		if err := n.post(ctx, URL, body, signature); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", URL, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) post(ctx context.Context, URL string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
