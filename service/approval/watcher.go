package approval

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/viant/overseer/service/dao/blob"
)

// watch wakes w whenever the pickup artifact of id appears in a local
// approvals directory. It returns nil when the repository is not local or
// the watcher cannot start; polling still covers those cases.
func (g *Gateway) watch(ctx context.Context, id string, w *waiter) func() {
	locator, ok := g.repo.(blob.Locator)
	if !ok {
		return nil
	}
	dir, ok := locator.LocalDir(Prefix)
	if !ok {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		g.logger.Debug("approval_watch_unavailable", "error", err.Error())
		return nil
	}
	if err = watcher.Add(dir); err != nil {
		_ = watcher.Close()
		g.logger.Debug("approval_watch_unavailable", "dir", dir, "error", err.Error())
		return nil
	}
	target := filepath.Base(ResponseKey(id))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) == target && event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					w.signal()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				g.logger.Debug("approval_watch_error", "error", err.Error())
			}
		}
	}()
	return func() {
		_ = watcher.Close()
		<-done
	}
}
