package source

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is the quiet period a file must observe before a change is emitted.
const Debounce = 100 * time.Millisecond

// Watcher reports edits to catalog files. Parent directories are watched so
// editors that replace files by rename are still noticed.
type Watcher struct {
	Changes <-chan string // cleaned path of the changed file

	changes chan string
	files   map[string]struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
	watcher *fsnotify.Watcher
	errFn   func(error)
}

// NewWatcher creates a watcher for paths. onErr, when non-nil, receives
// watch errors; they are otherwise dropped.
func NewWatcher(paths []string, onErr func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan string, 16)
	w := &Watcher{
		Changes: ch,
		changes: ch,
		files:   make(map[string]struct{}, len(paths)),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		watcher: fw,
		errFn:   onErr,
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
	}
	return w, nil
}

// Start begins watching. A failed Start leaves the watcher stopped.
func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			w.Stop()
			return err
		}
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop ends the watch and closes Changes. It is safe before Start and after
// a failed Start.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
		if w.started {
			<-w.done
		}
		close(w.changes)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if _, tracked := w.files[name]; !tracked {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) < Debounce {
					continue
				}
				delete(pending, file)
				select {
				case w.changes <- file:
				case <-w.stop:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.errFn != nil {
				w.errFn(err)
			}
		}
	}
}
