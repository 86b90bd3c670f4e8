package inspect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/model/checkpoint"
)

const sampleDiff = `diff --git a/internal/old.go b/internal/old.go
deleted file mode 100644
--- a/internal/old.go
+++ /dev/null
@@ -1,3 +0,0 @@
-package internal
-
-func Old() {}
diff --git a/db/migrations/002_orders.sql b/db/migrations/002_orders.sql
new file mode 100644
--- /dev/null
+++ b/db/migrations/002_orders.sql
@@ -0,0 +1,2 @@
+CREATE TABLE orders (id INT);
+CREATE INDEX orders_id ON orders(id);
diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,3 @@
 package main
 // entry point
-func main() {}
+func main() { run() }
`

func TestDiff(t *testing.T) {
	changes, err := Diff(sampleDiff)
	require.NoError(t, err)
	assert.Equal(t, []string{"db/migrations/002_orders.sql", "internal/old.go", "main.go"}, changes.Affected)
	assert.Equal(t, []string{"internal/old.go"}, changes.Deleted)
	assert.Equal(t, []string{"db/migrations/002_orders.sql"}, changes.Schema)
	assert.Equal(t, []checkpoint.Kind{checkpoint.KindFileDelete, checkpoint.KindSchemaChange}, changes.Kinds())
	assert.Equal(t, 3, changes.Added)
	assert.Equal(t, 4, changes.Removed)

	empty, err := Diff("  ")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.Kinds())
}

func TestCompare(t *testing.T) {
	type testCase struct {
		name    string
		before  []byte
		after   []byte
		deleted []string
		empty   bool
	}
	testCases := []testCase{
		{name: "modified", before: []byte("a\nb\n"), after: []byte("a\nc\n")},
		{name: "created", after: []byte("x\n")},
		{name: "deleted", before: []byte("x\ny"), deleted: []string{"pkg/file.go"}},
		{name: "identical", before: []byte("same\n"), after: []byte("same\n"), empty: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Compare("pkg/file.go", tc.before, tc.after, 0)
			require.NoError(t, err)
			if tc.empty {
				assert.Empty(t, text)
				return
			}
			changes, err := Diff(text)
			require.NoError(t, err)
			assert.Equal(t, []string{"pkg/file.go"}, changes.Affected)
			assert.Equal(t, tc.deleted, changes.Deleted)
		})
	}
}

func TestIsSchemaPath(t *testing.T) {
	type testCase struct {
		path     string
		expected bool
	}
	testCases := []testCase{
		{path: "db/migrations/001_init.sql", expected: true},
		{path: "prisma/schema.prisma", expected: true},
		{path: "db/schema.rb", expected: true},
		{path: "alembic/versions/abc.py", expected: true},
		{path: "sql/add_column_migration.sql", expected: true},
		{path: "queries/report.sql"},
		{path: "main.go"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsSchemaPath(tc.path))
		})
	}
}

func TestCommand(t *testing.T) {
	type testCase struct {
		command  string
		expected []checkpoint.Kind
	}
	testCases := []testCase{
		{command: "git push origin main", expected: []checkpoint.Kind{checkpoint.KindGitPush}},
		{command: "git -C repo push --force", expected: []checkpoint.Kind{checkpoint.KindGitPush}},
		{command: "go test ./... && git push", expected: []checkpoint.Kind{checkpoint.KindGitPush}},
		{command: "git status"},
		{command: "git commit -m 'push it'"},
		{command: "rm -rf build", expected: []checkpoint.Kind{checkpoint.KindFileDelete}},
		{command: "git rm old.go", expected: []checkpoint.Kind{checkpoint.KindFileDelete}},
		{command: "sudo kubectl apply -f k8s/", expected: []checkpoint.Kind{checkpoint.KindDeploy}},
		{command: "kubectl get pods"},
		{command: "ENV=prod ./scripts/deploy.sh", expected: []checkpoint.Kind{checkpoint.KindDeploy}},
		{command: "make deploy", expected: []checkpoint.Kind{checkpoint.KindDeploy}},
		{command: "make test"},
		{command: "terraform plan"},
		{command: "alembic upgrade head", expected: []checkpoint.Kind{checkpoint.KindSchemaChange}},
		{command: "npx prisma migrate deploy", expected: []checkpoint.Kind{checkpoint.KindSchemaChange}},
		{command: "rails db:migrate; git push", expected: []checkpoint.Kind{checkpoint.KindSchemaChange, checkpoint.KindGitPush}},
	}
	for _, tc := range testCases {
		t.Run(tc.command, func(t *testing.T) {
			assert.Equal(t, tc.expected, Command(tc.command))
		})
	}
}

func TestWorktree(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)

	write := func(name, content string) {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	write("main.go", "package main\n")
	write("legacy.go", "package main\n")
	_, err = worktree.Add(".")
	require.NoError(t, err)
	_, err = worktree.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()}})
	require.NoError(t, err)

	clean, err := Worktree(dir)
	require.NoError(t, err)
	assert.True(t, clean.IsEmpty())

	require.NoError(t, os.Remove(filepath.Join(dir, "legacy.go")))
	write("migrations/002_users.sql", "ALTER TABLE users ADD COLUMN email TEXT;\n")
	write("main.go", "package main\n\nfunc main() {}\n")

	changes, err := Worktree(filepath.Join(dir, "migrations"))
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy.go", "main.go", "migrations/002_users.sql"}, changes.Affected)
	assert.Equal(t, []string{"legacy.go"}, changes.Deleted)
	assert.Equal(t, []string{"migrations/002_users.sql"}, changes.Schema)
	assert.Equal(t, []checkpoint.Kind{checkpoint.KindFileDelete, checkpoint.KindSchemaChange}, changes.Kinds())

	_, err = Worktree(t.TempDir())
	assert.Error(t, err)
}
