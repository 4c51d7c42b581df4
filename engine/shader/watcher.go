package shader

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watcher waits after the last write to a file before it
// calls back, so that editors which save in several steps trigger one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls back when watched files change on disk. It watches the parent directory
// of every file so that editors which save by renaming a temporary file are seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu        sync.Mutex
	callbacks map[string]map[int]func(string)
	dirs      map[string]int
	timers    map[string]*time.Timer
	nextID    int
	done      chan struct{}
	closed    bool
}

// NewWatcher starts a watcher goroutine.
//
// Parameters:
//   - debounce: the quiet period before a change is reported; zero uses DefaultDebounce
//
// Returns:
//   - *Watcher: the running watcher
//   - error: error if the platform watcher cannot be created
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader: create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fs:        fw,
		debounce:  debounce,
		callbacks: make(map[string]map[int]func(string)),
		dirs:      make(map[string]int),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers fn to be called with the cleaned path whenever the file changes. The
// callback runs on the watcher goroutine.
//
// Parameters:
//   - path: the file to watch
//   - fn: the callback
//
// Returns:
//   - func(): a function that removes this registration
//   - error: error if the directory cannot be watched
func (w *Watcher) Watch(path string, fn func(path string)) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("shader: watch %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("shader: watch %s: watcher closed", path)
	}
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return nil, fmt.Errorf("shader: watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	if w.callbacks[abs] == nil {
		w.callbacks[abs] = make(map[int]func(string))
	}
	id := w.nextID
	w.nextID++
	w.callbacks[abs][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { w.unwatch(abs, dir, id) })
	}, nil
}

func (w *Watcher) unwatch(abs, dir string, id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.callbacks[abs], id)
	if len(w.callbacks[abs]) == 0 {
		delete(w.callbacks, abs)
	}
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if !w.closed {
			_ = w.fs.Remove(dir)
		}
	}
}

// Watched returns the number of files with at least one callback.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.callbacks)
}

// Close stops the watcher. Pending debounced callbacks are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(filepath.Clean(event.Name))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", "err", err)
		}
	}
}

// schedule restarts the debounce timer of path if anyone watches it.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || len(w.callbacks[path]) == 0 {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if w.closed {
		w.mu.Unlock()
		return
	}
	fns := make([]func(string), 0, len(w.callbacks[path]))
	for _, fn := range w.callbacks[path] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(path)
	}
}
