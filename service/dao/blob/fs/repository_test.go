package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/service/dao"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	baseDir := filepath.Join(t.TempDir(), "state")

	repo, err := New(baseDir)
	require.NoError(t, err)

	_, err = repo.Load(ctx, "turn_counter.json")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, repo.Save(ctx, "turn_counter.json", []byte(`{"totalTurns":1}`)))
	assert.NoError(t, repo.Save(ctx, "turn_counter.json", []byte(`{"totalTurns":2}`)))
	data, err := repo.Load(ctx, "turn_counter.json")
	assert.NoError(t, err)
	assert.Equal(t, `{"totalTurns":2}`, string(data))

	assert.NoError(t, repo.Save(ctx, "approvals/r1.json", []byte(`{}`)))
	assert.NoError(t, repo.Save(ctx, "approvals/r1_response.json", []byte(`{}`)))
	assert.NoError(t, repo.Save(ctx, "approvals/r2.json", []byte(`{}`)))

	keys, err := repo.List(ctx, "approvals/")
	assert.NoError(t, err)
	assert.Equal(t, []string{"approvals/r1.json", "approvals/r1_response.json", "approvals/r2.json"}, keys)

	keys, err = repo.List(ctx, "approvals/r1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"approvals/r1.json", "approvals/r1_response.json"}, keys)

	keys, err = repo.List(ctx, "missing/")
	assert.NoError(t, err)
	assert.Empty(t, keys)

	assert.NoError(t, repo.Delete(ctx, "approvals/r1_response.json"))
	assert.NoError(t, repo.Delete(ctx, "approvals/r1_response.json"))
	_, err = os.Stat(filepath.Join(baseDir, "approvals", "r1_response.json"))
	assert.True(t, os.IsNotExist(err))

	dir, ok := repo.LocalDir("approvals/")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(baseDir, "approvals"), dir)

	entries, err := os.ReadDir(baseDir)
	assert.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), tempMarker)
	}
}
