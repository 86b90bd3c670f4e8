package envexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	env := map[string]string{"SLACK_URL": "https://hooks.slack.com/x", "A": "1", "B": "2"}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	type testCase struct {
		name     string
		input    string
		expected string
	}
	testCases := []testCase{
		{name: "plain", input: "webhookURL: none", expected: "webhookURL: none"},
		{name: "single", input: "webhookURL: ${env.SLACK_URL}", expected: "webhookURL: https://hooks.slack.com/x"},
		{name: "repeated", input: "${env.A}-${env.B}-${env.A}", expected: "1-2-1"},
		{name: "unset", input: "token=${env.MISSING};", expected: "token=;"},
		{name: "empty name", input: "x ${env.} y", expected: "x  y"},
		{name: "unterminated", input: "start ${env.A and ${env.B", expected: "start ${env.A and ${env.B"},
		{name: "invalid name keeps nested", input: "${env.A-${env.B}}", expected: "${env.A-2}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Expand(tc.input, lookup))
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("OVERSEER_TEST_HOOK", "https://example.com/hook")
	assert.Equal(t, "url: https://example.com/hook", ExpandEnv("url: ${env.OVERSEER_TEST_HOOK}"))
}
