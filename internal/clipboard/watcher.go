// Package clipboard polls the OS clipboard on a fixed cadence and hands each
// distinct non-empty value to a consumer exactly once, classified as either a
// source URL or pending content.
package clipboard

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ReadFunc reads the current clipboard text. Implementations return an empty
// string when the clipboard is empty or unavailable; read failures are
// common and transient on some platforms and must not surface as errors.
type ReadFunc func() string

// urlPattern matches a full URL shape: scheme://host[:port][/path].
var urlPattern = regexp.MustCompile(`^https?://[\w\-.]+(:\d+)?(/\S*)?$`)

// LooksLikeURL reports whether s is a bare URL rather than content.
func LooksLikeURL(s string) bool {
	return urlPattern.MatchString(strings.TrimSpace(s))
}

// Watcher polls the clipboard on its own goroutine. It never blocks on the
// consumer: new content is appended to an internal pending list and a
// non-blocking signal is raised for the consumer to drain.
type Watcher struct {
	read     ReadFunc
	interval time.Duration
	notify   chan struct{}

	mu         sync.Mutex
	suspended  bool
	lastSeen   string
	lastSource string
	pending    []string
}

// NewWatcher creates a watcher that reads via read every interval.
func NewWatcher(read ReadFunc, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		read:     read,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Start launches the polling loop. It stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Notify signals that pending content or a new source URL is available.
// The channel has a one-slot buffer; multiple captures between drains
// coalesce into a single signal.
func (w *Watcher) Notify() <-chan struct{} {
	return w.notify
}

// Drain returns all pending content items in capture order and clears the
// list.
func (w *Watcher) Drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := w.pending
	w.pending = nil
	return items
}

// LastSourceURL returns the most recently captured URL, or empty.
func (w *Watcher) LastSourceURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSource
}

// SetSuspended toggles the watcher. While suspended, polling continues but
// every observed value is discarded without updating the comparison state.
// Resuming clears the last-seen value, so whatever is then on the clipboard
// is treated as new exactly once, even if it was seen before the pause.
func (w *Watcher) SetSuspended(suspended bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.suspended && !suspended {
		w.lastSeen = ""
	}
	w.suspended = suspended
}

// Suspended reports the current suspend flag.
func (w *Watcher) Suspended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspended
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Observe(w.read())
		}
	}
}

// Observe processes one clipboard reading. Exposed so tests can drive the
// watcher without a timer.
func (w *Watcher) Observe(txt string) {
	txt = strings.TrimSpace(txt)

	w.mu.Lock()
	if w.suspended || txt == "" || txt == w.lastSeen {
		w.mu.Unlock()
		return
	}
	w.lastSeen = txt
	if LooksLikeURL(txt) {
		w.lastSource = txt
	} else {
		w.pending = append(w.pending, txt)
	}
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}
