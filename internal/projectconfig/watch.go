package projectconfig

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives each successfully loaded snapshot.
type ReloadFunc func(ctx context.Context, snapshot map[string]any) error

// Watch calls fn with the loaded snapshot of path every time the file
// changes, until ctx is done. Bursts of events within debounce are collapsed
// into one reload. Load and fn errors are logged and watching continues.
//
// The containing directory is watched rather than the file so that editors
// that replace files on save keep being followed.
func Watch(ctx context.Context, path string, debounce time.Duration, fn ReloadFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	reload := func() {
		snapshot, err := Load(abs)
		if err != nil {
			slog.Warn("config reload failed", "path", abs, "error", err)
			return
		}
		if err := fn(ctx, snapshot); err != nil {
			slog.Warn("config apply failed", "path", abs, "error", err)
			return
		}
		slog.Info("config reloaded", "path", abs)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "path", abs, "error", err)
		}
	}
}
