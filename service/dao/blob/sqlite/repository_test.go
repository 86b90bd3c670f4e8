package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/service/dao"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "overseer.db")

	repo, err := New(dsn)
	require.NoError(t, err)

	_, err = repo.Load(ctx, "checkpoints.json")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, repo.Save(ctx, "checkpoints.json", []byte("v1")))
	assert.NoError(t, repo.Save(ctx, "checkpoints.json", []byte("v2")))
	assert.NoError(t, repo.Save(ctx, "approvals/a.json", []byte("a")))
	assert.NoError(t, repo.Save(ctx, "approvals/b.json", []byte("b")))

	data, err := repo.Load(ctx, "/checkpoints.json")
	assert.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	keys, err := repo.List(ctx, "approvals/")
	assert.NoError(t, err)
	assert.Equal(t, []string{"approvals/a.json", "approvals/b.json"}, keys)

	assert.NoError(t, repo.Delete(ctx, "approvals/a.json"))
	keys, err = repo.List(ctx, "approvals/")
	assert.NoError(t, err)
	assert.Equal(t, []string{"approvals/b.json"}, keys)

	require.NoError(t, repo.Close())

	reopened, err := New(dsn)
	require.NoError(t, err)
	defer reopened.Close()
	data, err = reopened.Load(ctx, "checkpoints.json")
	assert.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
