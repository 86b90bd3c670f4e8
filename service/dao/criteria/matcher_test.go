package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/overseer/service/dao"
)

func TestFilterByStatus(t *testing.T) {
	type testCase struct {
		name       string
		status     string
		parameters []*dao.Parameter
		expected   bool
	}
	tests := []testCase{
		{name: "no parameters", status: "pending", expected: true},
		{name: "single match", status: "pending", parameters: []*dao.Parameter{dao.NewParameter(StatusParameter, "pending")}, expected: true},
		{name: "single mismatch", status: "approved", parameters: []*dao.Parameter{dao.NewParameter(StatusParameter, "pending")}, expected: false},
		{name: "multi match", status: "approved", parameters: []*dao.Parameter{dao.NewParameter(StatusParameter, "pending", "approved")}, expected: true},
		{name: "other parameter", status: "approved", parameters: []*dao.Parameter{dao.NewParameter("Kind", "deploy")}, expected: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FilterByStatus(tc.status, tc.parameters))
		})
	}
}
