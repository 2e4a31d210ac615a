package devserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fragnav/fragnav/internal/logger"
)

// Watcher monitors a site directory and reports changed files, debounced so
// a burst of editor writes produces a single notification.
type Watcher struct {
	root     string
	debounce time.Duration
	log      *logger.Logger
}

// NewWatcher creates a watcher over the given site root.
func NewWatcher(root string, debounce time.Duration, log *logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{root: root, debounce: debounce, log: log.WithComponent("watcher")}
}

// Watch blocks until ctx is cancelled, invoking onChange with the path of
// each changed file after the debounce window closes.
func (w *Watcher) Watch(ctx context.Context, onChange func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// fsnotify does not recurse; register every subdirectory.
	err = filepath.Walk(w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(p), ".") && p != w.root {
				return filepath.SkipDir
			}
			return fw.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending string
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				fw.Add(event.Name)
				continue
			}
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			w.log.Debugf("Changed: %s", pending)
			onChange(pending)
			timer = nil
			timerC = nil

		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			// Keep watching despite transient errors.
		}
	}
}

// IsCSS reports whether a changed path only requires a stylesheet refresh.
func IsCSS(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".css", ".scss", ".less":
		return true
	}
	return false
}
