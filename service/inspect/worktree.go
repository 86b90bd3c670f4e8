package inspect

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Worktree reports the uncommitted changes of the git repository
// containing dir. Untracked files count as affected.
func Worktree(dir string) (*Changes, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	ret := &Changes{}
	for name, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		deleted := fileStatus.Staging == git.Deleted || fileStatus.Worktree == git.Deleted
		ret.add(name, deleted)
		if fileStatus.Staging == git.Renamed && fileStatus.Extra != "" {
			ret.add(fileStatus.Extra, true)
		}
	}
	return ret, nil
}
