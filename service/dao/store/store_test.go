package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/overseer/service/dao"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/dao/criteria"
)

type record struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	doc := NewDocument[record](repo, "state.json")

	_, err := doc.Load(ctx)
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.True(t, dao.IsAbsent(err))

	assert.NoError(t, doc.Save(ctx, &record{ID: "1"}))
	actual, err := doc.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, &record{ID: "1"}, actual)

	assert.NoError(t, repo.Save(ctx, "state.json", []byte("{not json")))
	_, err = doc.Load(ctx)
	assert.ErrorIs(t, err, dao.ErrCorrupt)
	assert.True(t, dao.IsAbsent(err))

	assert.NoError(t, repo.Save(ctx, "state.json", nil))
	_, err = doc.Load(ctx)
	assert.ErrorIs(t, err, dao.ErrCorrupt)
}

func TestJSONStore(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	s := NewJSONStore[record](repo, "approvals", func(r *record) string { return r.ID },
		WithExclude[record](func(id string) bool { return strings.HasSuffix(id, "_response") }),
		WithFilter[record](func(r *record, parameters []*dao.Parameter) bool {
			return criteria.FilterByStatus(r.Status, parameters)
		}),
	)

	assert.ErrorIs(t, s.Save(ctx, &record{}), dao.ErrInvalidID)
	assert.ErrorIs(t, s.Save(ctx, nil), dao.ErrNilEntity)

	assert.NoError(t, s.Save(ctx, &record{ID: "a", Status: "pending"}))
	assert.NoError(t, s.Save(ctx, &record{ID: "b", Status: "approved"}))
	assert.NoError(t, repo.Save(ctx, "approvals/a_response.json", []byte(`{"id":"x"}`)))
	assert.NoError(t, repo.Save(ctx, "approvals/broken.json", []byte(`{`)))
	assert.Equal(t, "approvals/a.json", s.Key("a"))

	type testCase struct {
		name       string
		parameters []*dao.Parameter
		expected   []string
	}
	tests := []testCase{
		{name: "all", expected: []string{"a", "b"}},
		{name: "pending", parameters: []*dao.Parameter{dao.NewParameter(criteria.StatusParameter, "pending")}, expected: []string{"a"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := s.List(ctx, tc.parameters...)
			assert.NoError(t, err)
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.expected, ids)
		})
	}

	assert.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}
