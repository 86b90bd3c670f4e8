// Package inspect classifies pending workspace changes and shell commands
// into the high-risk checkpoint kinds.
package inspect

import (
	"path"
	"sort"
	"strings"

	"github.com/viant/overseer/model/checkpoint"
)

// Changes summarises a set of file modifications.
type Changes struct {
	// Affected lists every touched path, sorted.
	Affected []string `json:"affected,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Schema   []string `json:"schema,omitempty"`
	Added    int      `json:"added,omitempty"`
	Removed  int      `json:"removed,omitempty"`
}

// IsEmpty reports whether nothing changed.
func (c *Changes) IsEmpty() bool {
	return c == nil || len(c.Affected) == 0
}

// Kinds maps the changes to checkpoint kinds in declaration order.
func (c *Changes) Kinds() []checkpoint.Kind {
	if c == nil {
		return nil
	}
	var ret []checkpoint.Kind
	if len(c.Deleted) > 0 {
		ret = append(ret, checkpoint.KindFileDelete)
	}
	if len(c.Schema) > 0 {
		ret = append(ret, checkpoint.KindSchemaChange)
	}
	return ret
}

// Merge folds other into c.
func (c *Changes) Merge(other *Changes) {
	if other == nil {
		return
	}
	c.Affected = union(c.Affected, other.Affected)
	c.Deleted = union(c.Deleted, other.Deleted)
	c.Schema = union(c.Schema, other.Schema)
	c.Added += other.Added
	c.Removed += other.Removed
}

func (c *Changes) add(name string, deleted bool) {
	c.Affected = union(c.Affected, []string{name})
	if deleted {
		c.Deleted = union(c.Deleted, []string{name})
	}
	if IsSchemaPath(name) {
		c.Schema = union(c.Schema, []string{name})
	}
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	ret := make([]string, 0, len(a)+len(b))
	for _, items := range [][]string{a, b} {
		for _, item := range items {
			if !seen[item] {
				seen[item] = true
				ret = append(ret, item)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

var schemaFiles = map[string]bool{
	"schema.rb":      true,
	"schema.prisma":  true,
	"structure.sql":  true,
	"schema.sql":     true,
	"schema.graphql": true,
}

// IsSchemaPath reports whether name looks like a database schema or
// migration file.
func IsSchemaPath(name string) bool {
	name = strings.ToLower(strings.TrimPrefix(name, "./"))
	base := path.Base(name)
	if schemaFiles[base] {
		return true
	}
	for _, segment := range strings.Split(path.Dir(name), "/") {
		switch segment {
		case "migrations", "migration", "migrate", "alembic":
			return true
		}
	}
	return strings.HasSuffix(base, ".sql") && strings.Contains(base, "migrat")
}
