package idgen

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		token, err := NewToken()
		assert.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		assert.NoError(t, err)
		assert.Len(t, raw, TokenBytes)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestNew(t *testing.T) {
	assert.NotEqual(t, New(), New())
}
