package inspect

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// Diff parses a multi-file unified diff.
func Diff(text string) (*Changes, error) {
	ret := &Changes{}
	if strings.TrimSpace(text) == "" {
		return ret, nil
	}
	files, err := sgdiff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	for _, fd := range files {
		orig := trimSide(fd.OrigName, "a/")
		newer := trimSide(fd.NewName, "b/")
		switch {
		case newer == devNull && orig != devNull:
			ret.add(orig, true)
		case newer != devNull:
			ret.add(newer, false)
			if orig != devNull && orig != newer {
				// a rename removes the original path
				ret.add(orig, true)
			}
		}
		stat := fd.Stat()
		ret.Added += int(stat.Added + stat.Changed)
		ret.Removed += int(stat.Deleted + stat.Changed)
	}
	return ret, nil
}

func trimSide(name, prefix string) string {
	name = strings.TrimSpace(name)
	if idx := strings.IndexByte(name, '\t'); idx != -1 {
		name = name[:idx]
	}
	return strings.TrimPrefix(name, prefix)
}

// Compare renders a git-style unified diff between before and after. A nil
// after marks a deletion, a nil before a creation. Identical content yields
// an empty string.
func Compare(name string, before, after []byte, contextLines int) (string, error) {
	if contextLines <= 0 {
		contextLines = 3
	}
	if before != nil && after != nil && string(before) == string(after) {
		return "", nil
	}
	from, to := "a/"+name, "b/"+name
	if before == nil {
		from = devNull
	}
	if after == nil {
		to = devNull
	}
	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: from,
		ToFile:   to,
		Context:  contextLines,
	})
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", nil
	}
	return fmt.Sprintf("diff --git a/%s b/%s\n%s", name, name, body), nil
}

// splitLines keeps line terminators and terminates a dangling last line.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	last := len(lines) - 1
	if lines[last] == "" {
		return lines[:last]
	}
	lines[last] += "\n"
	return lines
}
