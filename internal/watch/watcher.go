// Package watch re-renders documents when their source files change and
// pushes the result to open preview windows.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/easyblocks/easyblocks/internal/logger"
)

// DefaultDebounce is the quiet period after the last change before
// onChange runs.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher reports changes to a fixed set of files. It watches their
// directories so files replaced by an editor's atomic save are still
// seen.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	files     map[string]bool
	log       logger.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher for files. onChange receives the
// changed paths, sorted, once per debounce period.
func NewFileWatcher(files []string, debounce time.Duration, onChange func([]string), log logger.Logger) (*FileWatcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounce, onChange),
		files:     make(map[string]bool, len(files)),
		log:       logger.OrNop(log),
		stopChan:  make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.log.Debug("watching directory", map[string]interface{}{"dir": dir})
	}
	return fw, nil
}

// Start begins delivering events.
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go fw.watch()
}

// Stop stops the watcher. Pending debounced changes are dropped.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
		err = fw.watcher.Close()
		fw.wg.Wait()
		fw.debouncer.Stop()
	})
	return err
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !fw.files[abs] {
				continue
			}
			fw.log.Debug("file changed", map[string]interface{}{"file": event.Name, "op": event.Op.String()})
			fw.debouncer.Add(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.WithError(err).Warn("watch error", nil)

		case <-fw.stopChan:
			return
		}
	}
}

// Debouncer collects names and hands them to a callback once no new name
// has arrived for the configured duration.
type Debouncer struct {
	duration time.Duration
	callback func([]string)

	mutex   sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	stopped bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration, callback func([]string)) *Debouncer {
	return &Debouncer{
		duration: duration,
		callback: callback,
		pending:  make(map[string]struct{}),
	}
}

// Add records name and restarts the quiet period.
func (d *Debouncer) Add(name string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.pending[name] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}
	names := make([]string, 0, len(d.pending))
	for name := range d.pending {
		names = append(names, name)
	}
	d.pending = make(map[string]struct{})
	d.mutex.Unlock()

	sort.Strings(names)
	if d.callback != nil {
		d.callback(names)
	}
}

// Stop cancels any pending flush.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
