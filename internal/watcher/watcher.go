// Package watcher monitors import directories for new or growing hand
// history files and triggers incremental import passes.
package watcher

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher watches a set of directories and invokes OnChange when files
// under them are created or written. Events are debounced so a burst of
// writes from a client flushing a hand triggers a single pass; a periodic
// tick acts as a fallback for filesystems that drop events.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	interval time.Duration
	debounce time.Duration

	onChange func()
	onError  func(err error)
}

type Config struct {
	// Interval is the fallback poll period; zero means 5s.
	Interval time.Duration
	// Debounce is the quiet period after an event before OnChange fires;
	// zero means 1s.
	Debounce time.Duration
	OnChange func()
	OnError  func(err error)
}

// New creates a watcher over dirs. Start must be called to begin delivery.
func New(dirs []string, cfg Config) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	return &DirWatcher{
		watcher:  w,
		done:     make(chan struct{}),
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		onError:  cfg.OnError,
	}, nil
}

// Start launches the watch loop.
func (dw *DirWatcher) Start() {
	slog.Info("watcher starting", "interval", dw.interval)
	go dw.watchLoop()
}

// Stop ends the watch loop.
func (dw *DirWatcher) Stop() {
	dw.stopOnce.Do(func() {
		slog.Info("watcher stopped")
		close(dw.done)
		_ = dw.watcher.Close()
	})
}

func (dw *DirWatcher) watchLoop() {
	ticker := time.NewTicker(dw.interval)
	defer ticker.Stop()

	// The debounce timer is armed on the first event of a burst and fires
	// once the burst has been quiet long enough.
	pending := time.NewTimer(dw.debounce)
	if !pending.Stop() {
		<-pending.C
	}
	armed := false

	for {
		select {
		case <-dw.done:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending.Reset(dw.debounce)
				armed = true
			}
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			if dw.onError != nil {
				dw.onError(err)
			}
		case <-pending.C:
			armed = false
			dw.fire()
		case <-ticker.C:
			// Periodic poll as fallback
			if !armed {
				dw.fire()
			}
		}
	}
}

func (dw *DirWatcher) fire() {
	if dw.onChange != nil {
		dw.onChange()
	}
}
