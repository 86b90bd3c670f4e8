package secret_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/service/secret"
)

func TestResolver(t *testing.T) {
	ctx := context.Background()
	resolver := secret.New()
	ref := &secret.Ref{URL: filepath.Join(t.TempDir(), "slack.json")}

	require.NoError(t, resolver.Store(ctx, ref, "https://hooks.slack.com/services/T/B/X"))

	type testCase struct {
		name     string
		plain    string
		ref      *secret.Ref
		expected string
	}
	testCases := []testCase{
		{name: "plain wins", plain: "inline", ref: ref, expected: "inline"},
		{name: "scy resource", ref: ref, expected: "https://hooks.slack.com/services/T/B/X"},
		{name: "nothing configured"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := resolver.Resolve(ctx, tc.plain, tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}

	_, err := resolver.Resolve(ctx, "", &secret.Ref{URL: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
	assert.Error(t, resolver.Store(ctx, &secret.Ref{}, "x"))
}
