/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package watch turns raw fsnotify notifications into a debounced, strictly
// ordered stream of add/change/remove events with stat snapshots. Consumers
// see one event per settled file, not the burst a copy-in-progress produces.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Op is the event kind.
type Op int

const (
	Added Op = iota
	Changed
	Removed
)

func (o Op) String() string {
	switch o {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one settled filesystem change. Size and ModTime (epoch ms) are
// populated for Added/Changed only.
type Event struct {
	Op      Op
	Path    string
	Size    int64
	ModTime int64
	IsDir   bool
}

// Config holds watcher parameters.
type Config struct {
	Roots []string

	// Debounce is the stability threshold: a changed file must stay quiet
	// this long before its event is emitted.
	Debounce time.Duration

	// FilterMedia restricts events to known media extensions.
	FilterMedia bool
}

// Watcher owns the fsnotify instance and the debounce state.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	events  chan Event
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	known   map[string]struct{}

	sendMu sync.RWMutex
	closed bool
}

// New creates a watcher for the configured roots.
func New(cfg Config, logger zerolog.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		events:  make(chan Event, 1024),
		logger:  logger.With().Str("component", "watch").Logger(),
		pending: make(map[string]*time.Timer),
		known:   make(map[string]struct{}),
	}, nil
}

// Events returns the ordered event stream. Closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run registers the roots, synthesizes Added events for the existing tree so
// a cold start converges, then relays OS notifications until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()
	defer w.fsw.Close()

	for _, root := range w.cfg.Roots {
		if err := w.addTree(ctx, root); err != nil {
			return fmt.Errorf("register root %s: %w", root, err)
		}
		w.logger.Info().Str("root", root).Msg("watching media root")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleRaw(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// addTree watches every directory under root and emits Added for every
// existing file, so entries missed while the scanner was down get scanned.
func (w *Watcher) addTree(ctx context.Context, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("walk error")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if info.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
			}
			return nil
		}
		if !w.wanted(path) {
			return nil
		}
		w.markKnown(path)
		w.emit(ctx, Event{
			Op:      Added,
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixMilli(),
		})
		return nil
	})
}

func (w *Watcher) handleRaw(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancelPending(path)
		if w.isKnown(path) || w.wanted(path) {
			w.forgetKnown(path)
			w.emit(ctx, Event{Op: Removed, Path: path})
		}
		return
	}

	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// New directories join the watch set and get their contents replayed.
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if err := w.addTree(ctx, path); err != nil && err != context.Canceled {
				w.logger.Warn().Err(err).Str("path", path).Msg("failed to watch new directory")
			}
		}
		return
	}

	if !w.wanted(path) {
		return
	}
	w.schedule(ctx, path)
}

// schedule (re)arms the debounce timer for path. Each further write pushes
// the emission out until the file stays quiet for the full threshold.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.cfg.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.settle(ctx, path)
	})
}

// settle emits the debounced event once the file has stopped changing.
func (w *Watcher) settle(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	_, existed := w.known[path]
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		// Gone again before settling; report removal if it was ever known.
		if existed {
			w.forgetKnown(path)
			w.emit(ctx, Event{Op: Removed, Path: path})
		}
		return
	}
	if info.IsDir() {
		return
	}

	op := Added
	if existed {
		op = Changed
	}
	w.markKnown(path)
	w.emit(ctx, Event{
		Op:      op,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixMilli(),
		IsDir:   false,
	})
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	// The read lock orders every send against shutdown: once closed is set
	// under the write lock no sender can reach the closed channel, and a
	// sender already blocked here is released by ctx.Done before shutdown
	// acquires the write lock.
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// shutdown disarms pending debounce timers and closes the event channel. A
// timer callback that already fired is fenced off by the closed flag, so a
// late settle cannot send on the closed channel.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.sendMu.Lock()
	w.closed = true
	w.sendMu.Unlock()
	close(w.events)
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) markKnown(path string) {
	w.mu.Lock()
	w.known[path] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) forgetKnown(path string) {
	w.mu.Lock()
	delete(w.known, path)
	w.mu.Unlock()
}

func (w *Watcher) isKnown(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.known[path]
	return ok
}

func (w *Watcher) wanted(path string) bool {
	if !w.cfg.FilterMedia {
		return true
	}
	return IsMediaFile(path)
}

// IsMediaFile reports whether the extension is one the playout engine can
// use: motion video, stills, or audio.
func IsMediaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mxf", ".mov", ".mp4", ".m4v", ".avi", ".mkv", ".webm", ".mpg", ".mpeg", ".ts", ".wmv", ".dv", ".flv",
		".png", ".jpg", ".jpeg", ".tga", ".tif", ".tiff", ".bmp", ".gif",
		".wav", ".mp3", ".flac", ".ogg", ".m4a", ".aac", ".wma", ".opus":
		return true
	default:
		return false
	}
}
