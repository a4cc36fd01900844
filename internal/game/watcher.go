package game

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Axidify/Terminality-V2-sub001/internal/catalog"
	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
)

const defaultReloadDebounce = 500 * time.Millisecond

// ContentWatcher reloads the catalog when authoring files change. Bursts of
// events are folded into one reload once the directory has been quiet for
// the debounce interval.
type ContentWatcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	dirs      []string
	reload    func() error
	debounce  time.Duration
	pending   bool
	lastEvent time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewContentWatcher watches the system and quest directories below
// contentPath and calls reload after changes settle.
func NewContentWatcher(contentPath string, reload func() error) (*ContentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ContentWatcher{
		watcher:  watcher,
		dirs:     catalog.Dirs(contentPath),
		reload:   reload,
		debounce: defaultReloadDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period. Call it before Start.
func (cw *ContentWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	cw.debounce = d
	cw.mu.Unlock()
}

// Start begins watching in the background.
func (cw *ContentWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	for _, dir := range cw.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.L().Warn("create content directory", logging.String("dir", dir), logging.Err(err))
		}
		if err := cw.watcher.Add(dir); err != nil {
			logging.L().Warn("watch content directory", logging.String("dir", dir), logging.Err(err))
			continue
		}
		logging.L().Debug("watching content", logging.String("dir", dir))
	}
	go cw.run(ctx)
	return nil
}

// Stop ends the watch and waits for the loop to exit.
func (cw *ContentWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh
	if err := cw.watcher.Close(); err != nil {
		logging.L().Error("close content watcher", logging.Err(err))
	}
}

func (cw *ContentWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.L().Error("content watcher", logging.Err(err))
		case <-ticker.C:
			cw.flush()
		}
	}
}

func (cw *ContentWatcher) handleEvent(event fsnotify.Event) {
	if !catalog.IsContentFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	cw.mu.Lock()
	cw.pending = true
	cw.lastEvent = time.Now()
	cw.mu.Unlock()
}

func (cw *ContentWatcher) flush() {
	cw.mu.Lock()
	ready := cw.pending && time.Since(cw.lastEvent) >= cw.debounce
	if ready {
		cw.pending = false
	}
	cw.mu.Unlock()
	if !ready {
		return
	}
	if err := cw.reload(); err != nil {
		logging.L().Warn("content reload failed; keeping previous catalog", logging.Err(err))
	}
}
