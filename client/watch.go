package client

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ownWriteWindow is how long after a session's own write an event for the
// same path is attributed to it.
const ownWriteWindow = 2 * time.Second

// ownWrites remembers paths this process just wrote.
type ownWrites struct {
	mu    sync.Mutex
	paths map[string]time.Time
}

func newOwnWrites() *ownWrites {
	return &ownWrites{paths: map[string]time.Time{}}
}

func (o *ownWrites) record(path string) {
	o.mu.Lock()
	o.paths[filepath.Clean(path)] = time.Now()
	o.mu.Unlock()
}

func (o *ownWrites) isOwn(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	for p, at := range o.paths {
		if now.Sub(at) > ownWriteWindow {
			delete(o.paths, p)
		}
	}
	_, ok := o.paths[filepath.Clean(path)]
	return ok
}

// storeWatcher flags a store stale when another process changes its folder.
type storeWatcher struct {
	watcher *fsnotify.Watcher
	own     *ownWrites
	flags   map[string]*atomic.Bool // folder -> stale flag
	done    chan struct{}
}

func newStoreWatcher(own *ownWrites, flags map[string]*atomic.Bool) (*storeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, serr.Wrap(err, "failed to create store watcher")
	}
	for dir := range flags {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, serr.Wrap(err, "failed to watch store folder")
		}
	}

	sw := &storeWatcher{watcher: w, own: own, flags: flags, done: make(chan struct{})}
	go sw.run()
	return sw, nil
}

func (sw *storeWatcher) run() {
	defer close(sw.done)
	for {
		select {
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(ev)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logger.LogErr(err, "store watcher error")
		}
	}
}

func (sw *storeWatcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, tempFilePrefix) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if sw.own.isOwn(ev.Name) {
		return
	}

	if flag, ok := sw.flags[filepath.Clean(filepath.Dir(ev.Name))]; ok {
		if !flag.Swap(true) {
			logger.Debug("Store changed by another process", "folder", filepath.Dir(ev.Name))
		}
	}
}

func (sw *storeWatcher) Close() error {
	err := sw.watcher.Close()
	<-sw.done
	return err
}
