package store

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/perflens/perflens/internal/snapshot"
	"github.com/perflens/perflens/pkg/events"
)

// CaptureWatcher watches a capture root for new snapshot bundles. The
// harness writes meta.json last, so its appearance marks a bundle as
// ready; writes are debounced because editors and the harness both
// produce bursts.
type CaptureWatcher struct {
	root     string
	bus      *events.EventBus
	debounce time.Duration

	watcher *fsnotify.Watcher
	bundles chan string
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewCaptureWatcher builds a watcher over root. Bundle directories are
// delivered on Bundles(); bus (optional) additionally gets a
// CaptureDetected event per bundle.
func NewCaptureWatcher(root string, bus *events.EventBus) (*CaptureWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	cw := &CaptureWatcher{
		root:     root,
		bus:      bus,
		debounce: 500 * time.Millisecond,
		watcher:  w,
		bundles:  make(chan string, 16),
		stop:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}
	cw.wg.Add(1)
	go cw.loop()
	return cw, nil
}

// Bundles delivers ready bundle directories.
func (cw *CaptureWatcher) Bundles() <-chan string {
	return cw.bundles
}

// Close stops watching. The bundles channel stays open (and idle) so
// late timer fires cannot panic a receiver.
func (cw *CaptureWatcher) Close() error {
	close(cw.stop)
	err := cw.watcher.Close()
	cw.wg.Wait()
	return err
}

func (cw *CaptureWatcher) loop() {
	defer cw.wg.Done()

	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(ev)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("capture watcher: %v", err)
		case <-cw.stop:
			return
		}
	}
}

func (cw *CaptureWatcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// new bundle directory: watch inside it for meta.json
	if ev.Op&fsnotify.Create != 0 && filepath.Ext(ev.Name) == "" {
		if err := cw.watcher.Add(ev.Name); err == nil {
			return
		}
	}

	if filepath.Base(ev.Name) != snapshot.FileMeta {
		return
	}
	dir := filepath.Dir(ev.Name)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if timer, ok := cw.pending[dir]; ok {
		timer.Stop()
	}
	cw.pending[dir] = time.AfterFunc(cw.debounce, func() {
		cw.mu.Lock()
		delete(cw.pending, dir)
		cw.mu.Unlock()

		select {
		case cw.bundles <- dir:
			if cw.bus != nil {
				cw.bus.Publish(events.Event{
					Type: events.CaptureDetected,
					Data: map[string]interface{}{"dir": dir},
				})
			}
		case <-cw.stop:
		}
	})
}
