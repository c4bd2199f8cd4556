package template

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watch reloads the template file whenever it changes, until the
// context is cancelled. onReload observes every reload attempt with
// the number of templates applied or the error; a failed reload keeps
// the previous library contents. Rapid event bursts are debounced.
func (l *Library) Watch(ctx context.Context, path string, onReload func(int, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch template dir: %w", err)
	}

	target := filepath.Base(path)
	debounce := newDebouncer(watchDebounce)
	defer debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldReload(event, target) {
				continue
			}
			debounce.trigger(func() {
				count, err := l.LoadFile(path)
				if onReload != nil {
					onReload(count, err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			if onReload != nil {
				onReload(0, fmt.Errorf("watch templates: %w", err))
			}
		}
	}
}

func shouldReload(event fsnotify.Event, target string) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Base(event.Name), target)
}

// debouncer collapses event bursts into one callback after a quiet
// period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, callback)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
