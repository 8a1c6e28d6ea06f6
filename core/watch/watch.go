/*
Package watch reloads the document when its file changes on disk.

The watcher observes the directory of the file, so that editors which replace the
file by renaming a temporary one are noticed too. Bursts of events are collapsed into
one reload.
*/
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/relabs-tech/jsonserver/core/logger"
)

const defaultDebounce = 100 * time.Millisecond

// Builder is a builder helper for the Watcher
type Builder struct {
	// Path is the file to watch. This is mandatory.
	Path string
	// Debounce is the quiet period before OnChange is called. Defaults to 100ms.
	Debounce time.Duration
	// OnChange is called after the file changed. This is mandatory.
	OnChange func(ctx context.Context)
}

// Watcher watches a single file
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	debouncer *Debouncer
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a new watcher and starts watching
func New(bb *Builder) (*Watcher, error) {
	path, err := filepath.Abs(bb.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", bb.Path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory of %s: %w", path, err)
	}
	debounce := bb.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	onChange := bb.OnChange
	w := &Watcher{
		watcher: watcher,
		path:    path,
		debouncer: NewDebouncer(debounce, func() {
			id, _ := uuid.NewUUID()
			onChange(logger.ContextWithRequestID(context.Background(), "watch-"+id.String()))
		}),
		stopChan: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.watch()
	logger.Default().Infoln("watching", path)
	return w, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
		return nil
	default:
		close(w.stopChan)
	}
	w.wg.Wait()
	w.debouncer.Stop()
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				logger.Default().Debugln("file changed:", event.Name, event.Op)
				w.debouncer.Trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Default().WithError(err).Errorln("Error 4750: file watcher")
		case <-w.stopChan:
			return
		}
	}
}

// Debouncer calls a callback once after a burst of triggers has settled
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	mutex    sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration, callback func()) *Debouncer {
	return &Debouncer{duration: duration, callback: callback}
}

// Trigger (re)starts the quiet period
func (d *Debouncer) Trigger() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.fire)
}

func (d *Debouncer) fire() {
	d.mutex.Lock()
	stopped := d.stopped
	d.mutex.Unlock()
	if !stopped {
		d.callback()
	}
}

// Stop cancels a pending callback
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
