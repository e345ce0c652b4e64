// Package reload detects edits to the files a station configuration was
// loaded from.
package reload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/timzifer/qlab/config"
)

type stamp struct {
	modTime time.Time
	size    int64
}

// Watcher remembers the modification stamp of every configuration source.
type Watcher struct {
	mu    sync.Mutex
	files map[string]stamp
}

// NewWatcher starts tracking the source files of cfg plus root, when root is a file.
func NewWatcher(root string, cfg *config.Config) (*Watcher, error) {
	w := &Watcher{}
	if err := w.Update(root, cfg); err != nil {
		return nil, err
	}
	return w, nil
}

// Update replaces the tracked files with the sources of cfg. Missing files are skipped.
func (w *Watcher) Update(root string, cfg *config.Config) error {
	if w == nil {
		return nil
	}
	paths := config.SourceFiles(cfg)
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			if info, err := os.Stat(abs); err == nil && !info.IsDir() {
				paths = append(paths, abs)
			}
		}
	}
	stamps := make(map[string]stamp, len(paths))
	for _, path := range uniquePaths(paths) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		stamps[path] = stamp{modTime: info.ModTime(), size: info.Size()}
	}
	w.mu.Lock()
	w.files = stamps
	w.mu.Unlock()
	return nil
}

// Tracked returns the sorted list of files under watch.
func (w *Watcher) Tracked() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Check reports the files that were modified or removed since the last Update.
func (w *Watcher) Check() ([]string, error) {
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := make([]string, 0)
	for path, prev := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if info.IsDir() {
			continue
		}
		if info.ModTime().After(prev.modTime) || info.Size() != prev.size {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Run polls Check every interval until ctx is done and hands non-empty
// change sets to onChange. The callback is expected to call Update once the
// new configuration has been applied; otherwise the same files are reported again.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onChange func([]string)) error {
	if w == nil || onChange == nil {
		return nil
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changed, err := w.Check()
			if err != nil {
				return err
			}
			if len(changed) > 0 {
				onChange(changed)
			}
		}
	}
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		result = append(result, path)
	}
	return result
}
