package scripts

import (
	"context"
	"fmt"
	"os"
	"time"

	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/avast/retry-go/v5"
	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a Catalog in sync with the script files of one directory.
type Watcher struct {
	dir     string
	catalog *Catalog
	fsw     *fsnotify.Watcher

	attempts uint
	delay    time.Duration
	notify   func(ChangeEvent, error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithRetry sets how often a changed file is re-read before giving up.
// Editors often write files in several steps, so the first read can see a
// truncated script.
func WithRetry(attempts uint, delay time.Duration) WatchOption {
	return func(w *Watcher) {
		w.attempts = attempts
		w.delay = delay
	}
}

// WithNotify registers fn to be called after every applied change.
func WithNotify(fn func(ChangeEvent, error)) WatchOption {
	return func(w *Watcher) { w.notify = fn }
}

// NewWatcher starts watching dir. Changes are only processed once Run is
// called.
func NewWatcher(dir string, catalog *Catalog, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch scripts directory %s: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		catalog:  catalog,
		fsw:      fsw,
		attempts: 5,
		delay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch watches dir and applies changes to catalog until ctx is done.
func Watch(ctx context.Context, dir string, catalog *Catalog, opts ...WatchOption) error {
	w, err := NewWatcher(dir, catalog, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !IsScriptFile(event.Name) {
				continue
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Log(logging.WARN, "", "script watcher: "+err.Error())
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	var (
		ev  ChangeEvent
		err error
	)
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		ev = ChangeEvent{Kind: Removed, Path: event.Name}
		err = w.catalog.Apply(ev)
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		ev = ChangeEvent{Kind: Changed, Path: event.Name}
		ev.Source, err = w.read(ctx, event.Name)
		if err != nil {
			w.catalog.RemovePath(event.Name)
		} else {
			err = w.catalog.Apply(ev)
		}
	default:
		return
	}

	if err != nil {
		logging.Log(logging.WARN, event.Name, fmt.Sprintf("script %s: %v", ev.Kind, err))
	}
	if w.notify != nil {
		w.notify(ev, err)
	}
}

// read returns the content of a changed file once it holds a script with
// valid metadata.
func (w *Watcher) read(ctx context.Context, path string) (string, error) {
	var source string
	err := retry.New(
		retry.Attempts(w.attempts),
		retry.Delay(w.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	).Do(func() error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > maxUserScriptBytes {
			return fmt.Errorf("file size %d B exceeds limit of %d B", info.Size(), maxUserScriptBytes)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &ReadError{Path: path, Err: err}
		}
		if _, err := ParseMetadata(string(data)); err != nil {
			return err
		}
		source = string(data)
		return nil
	})
	return source, err
}
