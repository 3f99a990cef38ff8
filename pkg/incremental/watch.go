package incremental

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/janus-lang/dispatch/pkg/logging"
)

// Watcher watches a set of source directories for changes and invokes
// OnChange with the batch of changed file paths, debounced the way the
// teacher's cmd/glyph/server.go watchForChanges debounces editor atomic
// saves (single timer, reset on every event within the window).
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func([]string)
	log      *logging.Logger
	stop     chan struct{}
}

// NewWatcher creates a watcher over dirs, invoking onChange (debounced by
// debounce) whenever a watched file is written or created.
func NewWatcher(dirs []string, debounce time.Duration, onChange func([]string), log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("incremental: creating watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("incremental: watching %s: %w", dir, err)
		}
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if log == nil {
		log = logging.NoOp()
	}

	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		stop:     make(chan struct{}),
	}, nil
}

// Run blocks, dispatching debounced change batches to onChange until
// Stop is called.
func (w *Watcher) Run() {
	var pending []string
	var timer *time.Timer

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		w.log.Debug("incremental: dispatching change batch", map[string]interface{}{"count": len(batch)})
		w.onChange(batch)
	}

	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = append(pending, filepath.Clean(event.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, flush)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("incremental: watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Stop terminates the watch loop and releases the underlying fsnotify
// watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
}
