// Package secret resolves channel credentials stored as viant/scy resources.
package secret

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/scy"
)

// DefaultKey is the scy key used when a reference names none.
const DefaultKey = "blowfish://default"

// Ref points at an encrypted secret.
type Ref struct {
	URL string `yaml:"url" json:"url"`
	Key string `yaml:"key,omitempty" json:"key,omitempty"`
}

// IsZero reports whether the reference is unset.
func (r *Ref) IsZero() bool {
	return r == nil || strings.TrimSpace(r.URL) == ""
}

func (r *Ref) key() string {
	if r.Key == "" {
		return DefaultKey
	}
	return r.Key
}

// Resolver loads and stores secrets.
type Resolver struct {
	service *scy.Service
}

// New creates a resolver.
func New() *Resolver {
	return &Resolver{service: scy.New()}
}

// Resolve returns plain when set, otherwise the secret ref points at. Both
// empty yields an empty string.
func (r *Resolver) Resolve(ctx context.Context, plain string, ref *Ref) (string, error) {
	if plain != "" || ref.IsZero() {
		return plain, nil
	}
	loaded, err := r.service.Load(ctx, scy.NewResource(nil, ref.URL, ref.key()))
	if err != nil {
		return "", fmt.Errorf("failed to load secret %s: %w", ref.URL, err)
	}
	return strings.TrimSpace(loaded.String()), nil
}

// Store encrypts value at ref.
func (r *Resolver) Store(ctx context.Context, ref *Ref, value string) error {
	if ref.IsZero() {
		return fmt.Errorf("secret URL was empty")
	}
	resource := scy.NewResource(nil, ref.URL, ref.key())
	if err := r.service.Store(ctx, scy.NewSecret(value, resource)); err != nil {
		return fmt.Errorf("failed to store secret %s: %w", ref.URL, err)
	}
	return nil
}
