package launch

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/buildscan/internal/build/classify"
)

// Watcher reports fragments as launchers create them, so progress output
// can show problems while the build is still running.
type Watcher struct {
	watcher *fsnotify.Watcher
	notify  func(classify.Kind)
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]bool

	closeOnce sync.Once
	closeCh   chan struct{}
	closedWg  sync.WaitGroup
}

// Watch starts watching dir, which must exist. notify is called from the
// watcher goroutine once per new fragment.
func Watch(dir string, notify func(classify.Kind), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		notify:  notify,
		logger:  logger,
		seen:    make(map[string]bool),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Count returns the number of distinct fragments seen so far.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.closedWg.Wait()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("launcher directory watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	name := filepath.Base(ev.Name)
	var kind classify.Kind
	switch {
	case IsErrorFragment(name):
		kind = classify.Error
	case IsWarningFragment(name):
		kind = classify.Warning
	default:
		return
	}

	w.mu.Lock()
	if w.seen[name] {
		w.mu.Unlock()
		return
	}
	w.seen[name] = true
	w.mu.Unlock()

	if w.notify != nil {
		w.notify(kind)
	}
}
