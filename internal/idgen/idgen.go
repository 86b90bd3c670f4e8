package idgen

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// TokenBytes is the entropy of an approval token.
const TokenBytes = 32

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// NewTokenFunc returns a URL-safe secret suitable for authenticating
// out-of-band approval callbacks.
var NewTokenFunc = func() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func NewToken() (string, error) { return NewTokenFunc() }
