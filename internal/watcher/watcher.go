// Package watcher implements spec §4.3: a recursive filesystem observer
// that coalesces raw fsnotify events into a debounced stream of
// per-path change events.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrAlreadyRunning is returned by Start when the watcher is already running.
var ErrAlreadyRunning = errors.New("watcher: already running")

// ErrNoValidPaths is returned by Start when every supplied path was filtered
// out as non-existent.
var ErrNoValidPaths = errors.New("watcher: no valid paths to watch")

const debounceInterval = 200 * time.Millisecond

// EventType is the coalesced event kind emitted for a changed path.
type EventType int

const (
	Add EventType = iota
	Modify
	Delete
)

func (t EventType) String() string {
	switch t {
	case Add:
		return "add"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a single coalesced filesystem change, emitted after debouncing.
type Event struct {
	Path string
	Type EventType
}

// fsWatcher abstracts fsnotify.Watcher so tests can inject a fake.
type fsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWrapper struct{ w *fsnotify.Watcher }

func (f *fsnotifyWrapper) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWrapper) Close() error                  { return f.w.Close() }
func (f *fsnotifyWrapper) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWrapper) Errors() <-chan error          { return f.w.Errors }

type state int

const (
	stateStopped state = iota
	stateRunning
)

// Watcher is a recursive, debounced filesystem observer with the state
// machine Stopped -> Running -> Stopped (spec §4.3).
type Watcher struct {
	logger *slog.Logger

	mu    sync.Mutex
	state state
	stop  chan struct{}
	done  chan struct{}

	newWatcher func() (fsWatcher, error)
}

// New creates a stopped Watcher.
func New(logger *slog.Logger) *Watcher {
	return &Watcher{
		logger: logger,
		state:  stateStopped,
		newWatcher: func() (fsWatcher, error) {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return nil, err
			}

			return &fsnotifyWrapper{w: w}, nil
		},
	}
}

// Start begins watching paths, filtering out any that do not exist and
// logging a warning for each. Fails if zero valid paths remain, or if the
// watcher is already running.
func (w *Watcher) Start(paths []string, out chan<- Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateRunning {
		return ErrAlreadyRunning
	}

	valid := make([]string, 0, len(paths))

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			w.logger.Warn("watcher: skipping non-existent path", slog.String("path", p))
			continue
		}

		valid = append(valid, p)
	}

	if len(valid) == 0 {
		return ErrNoValidPaths
	}

	fsw, err := w.newWatcher()
	if err != nil {
		return fmt.Errorf("watcher: creating fsnotify watcher: %w", err)
	}

	for _, p := range valid {
		if err := addRecursive(fsw, p, w.logger); err != nil {
			fsw.Close()
			return fmt.Errorf("watcher: adding watches under %s: %w", p, err)
		}
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.state = stateRunning

	go w.run(fsw, out, w.stop, w.done)

	return nil
}

// Stop halts watching. Asynchronous and idempotent: a stop mid-flush drains
// the pending map once, then exits (spec §Cancellation).
func (w *Watcher) Stop() {
	w.mu.Lock()

	if w.state != stateRunning {
		w.mu.Unlock()
		return
	}

	stopCh := w.stop
	doneCh := w.done
	w.state = stateStopped
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func addRecursive(fsw fsWatcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("watcher: walk error", slog.String("path", path), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if err := fsw.Add(path); err != nil {
			logger.Warn("watcher: failed to add watch", slog.String("path", path), slog.String("error", err.Error()))
		}

		return nil
	})
}

// run is the coalescing loop: raw fsnotify events are mapped into
// path -> EventType, a debounce timer is (re)armed on every event, and the
// whole map is flushed to out when the timer fires (spec §4.3).
func (w *Watcher) run(fsw fsWatcher, out chan<- Event, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer fsw.Close()

	pending := make(map[string]EventType)

	timer := time.NewTimer(debounceInterval)
	if !timer.Stop() {
		<-timer.C
	}

	armed := false

	flush := func() {
		for path, et := range pending {
			select {
			case out <- Event{Path: path, Type: et}:
			case <-stop:
			}
		}

		pending = make(map[string]EventType)
	}

	for {
		select {
		case <-stop:
			if armed {
				flush()
			}

			return

		case ev, ok := <-fsw.Events():
			if !ok {
				return
			}

			if kind, ok := mapEventKind(ev.Op); ok {
				pending[ev.Name] = kind

				// Re-arm on every raw event, not just the first of a burst,
				// so a steady stream of sub-debounce-interval events keeps
				// pushing the flush out instead of firing mid-burst.
				if armed && !timer.Stop() {
					<-timer.C
				}

				timer.Reset(debounceInterval)
				armed = true
			}

		case err, ok := <-fsw.Errors():
			if !ok {
				return
			}

			w.logger.Warn("watcher: raw fsnotify error", slog.String("error", err.Error()))

		case <-timer.C:
			armed = false
			flush()
		}
	}
}

// mapEventKind implements spec §4.3's kind mapping: create -> Add,
// write/chmod -> Modify, remove/rename(from) -> Delete, everything else
// dropped. fsnotify reports a rename on the old path; the new path arrives
// as a create.
func mapEventKind(op fsnotify.Op) (EventType, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return Add, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return Delete, true
	case op&fsnotify.Write != 0, op&fsnotify.Chmod != 0:
		return Modify, true
	default:
		return 0, false
	}
}
