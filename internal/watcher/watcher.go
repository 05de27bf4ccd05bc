// Package watcher detects when the newest published release changes.
//
// Only Poll and Prime write the last seen release; they are called from the
// scheduler loop, which never runs two jobs at once. Readers use Current.
package watcher

import (
	"context"
	"sync"
	"time"

	"releasebot/internal/release"
	logx "releasebot/pkg/logx"
)

const defaultFetchTimeout = 30 * time.Second

// Change describes a newly detected release. Previous is empty when nothing
// had been seen before.
type Change struct {
	Previous release.ID
	Payload  release.Payload
}

type Config struct {
	FetchTimeout time.Duration
}

type Watcher struct {
	src     release.Source
	timeout time.Duration
	log     logx.Logger

	mu       sync.RWMutex
	current  release.Payload
	seen     bool
	lastErr  error
	lastPoll time.Time
}

func New(src release.Source, cfg Config, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Watcher{src: src, timeout: cfg.FetchTimeout, log: log}
}

func (w *Watcher) fetch(ctx context.Context) (release.Payload, error) {
	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	p, err := w.src.Fetch(cctx)
	if err == nil && p.IsZero() {
		err = release.ErrSourceUnavailable
	}

	w.mu.Lock()
	w.lastPoll = time.Now()
	w.lastErr = err
	w.mu.Unlock()
	return p, err
}

// Prime records the current release without reporting it as a change.
// On failure the watcher stays in the "unknown" state, so the first
// successful Poll is reported.
func (w *Watcher) Prime(ctx context.Context) error {
	p, err := w.fetch(ctx)
	if err != nil {
		w.log.Warn("initial release fetch failed", logx.Err(err))
		return err
	}
	w.mu.Lock()
	w.current, w.seen = p, true
	w.mu.Unlock()
	w.log.Info("current release", logx.String("release", string(p.ID)))
	return nil
}

// Poll fetches the newest release and reports whether it differs from the
// last one seen. Fetch failures leave state untouched and report no change.
func (w *Watcher) Poll(ctx context.Context) (Change, bool) {
	p, err := w.fetch(ctx)
	if err != nil {
		w.log.Warn("release fetch failed", logx.Err(err))
		return Change{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen && w.current.ID == p.ID {
		return Change{}, false
	}
	prev := release.ID("")
	if w.seen {
		prev = w.current.ID
	}
	w.current, w.seen = p, true
	w.log.Info("new release detected",
		logx.String("release", string(p.ID)),
		logx.String("previous", string(prev)),
	)
	return Change{Previous: prev, Payload: p}, true
}

// Current returns the last successfully fetched release, if any.
func (w *Watcher) Current() (release.Payload, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.seen
}

// Status is a point-in-time view for diagnostics.
type Status struct {
	Current  release.ID
	Known    bool
	LastPoll time.Time
	LastErr  error
}

func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{Current: w.current.ID, Known: w.seen, LastPoll: w.lastPoll, LastErr: w.lastErr}
}
