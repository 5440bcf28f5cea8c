package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watcher converts files as they land in a drop folder.
type Watcher struct {
	dir    string
	rules  Rules
	skip   []string // extensions never picked up, e.g. our own outputs
	handle func(InputFile)
	delay  time.Duration
	fsw    *fsnotify.Watcher

	ready   chan settled
	pending map[string]debounced
	seq     uint64
}

// debounced is the live timer for a path and the generation it fires with.
type debounced struct {
	timer *time.Timer
	gen   uint64
}

// settled is sent when a path's timer fires.
type settled struct {
	name string
	gen  uint64
}

// NewWatcher creates a watcher for dir. Files passing rules are handed to
// handle once writes to them have settled.
func NewWatcher(dir string, rules Rules, skipExt []string, handle func(InputFile)) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir: %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}

	return &Watcher{
		dir:    dir,
		rules:  rules,
		skip:   skipExt,
		handle: handle,
		delay:  watchDebounce,
		fsw:    fsw,

		ready:   make(chan settled, 16),
		pending: make(map[string]debounced),
	}, nil
}

// Run blocks, dispatching settled files until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log.Printf("Watching folder: %s", w.dir)

	defer func() {
		for _, d := range w.pending {
			d.timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case s := <-w.ready:
			if w.settle(s) {
				w.dispatch(s.name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// schedule (re)starts the debounce timer for name under a new generation.
// A timer that already fired still delivers its stale generation, which
// settle then drops.
func (w *Watcher) schedule(ctx context.Context, name string) {
	if d, ok := w.pending[name]; ok {
		d.timer.Stop()
	}
	w.seq++
	gen := w.seq
	t := time.AfterFunc(w.delay, func() {
		select {
		case w.ready <- settled{name: name, gen: gen}:
		case <-ctx.Done():
		}
	})
	w.pending[name] = debounced{timer: t, gen: gen}
}

// settle reports whether s is the latest generation for its path and, if
// so, forgets the path.
func (w *Watcher) settle(s settled) bool {
	d, ok := w.pending[s.name]
	if !ok || d.gen != s.gen {
		return false
	}
	delete(w.pending, s.name)
	return true
}

// ignored filters hidden files and excluded extensions.
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, s := range w.skip {
		if ext == s {
			return true
		}
	}
	return false
}

// dispatch reads and validates a settled file before handing it off.
func (w *Watcher) dispatch(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Failed to read %s: %v", path, err)
		return
	}
	f := InputFile{Name: path, MIME: detectMIME(path, data), Data: data}
	if err := validateFile(w.rules, f); err != nil {
		log.Printf("Skipping %s: %v", path, err)
		return
	}
	w.handle(f)
}
