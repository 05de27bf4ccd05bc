package app

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"releasebot/internal/broadcast"
	"releasebot/internal/eventbus"
	"releasebot/internal/scheduler"
	"releasebot/internal/watcher"
)

// statusTracker remembers the latest release and broadcast events for the
// admin status report.
type statusTracker struct {
	started time.Time

	mu          sync.Mutex
	lastChange  eventbus.ReleaseChanged
	changedAt   time.Time
	lastSummary broadcast.Summary
	summaryAt   time.Time
	reloads     int
}

func newStatusTracker(now time.Time) *statusTracker { return &statusTracker{started: now} }

func (t *statusTracker) run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t.observe(e)
		}
	}
}

func (t *statusTracker) observe(e eventbus.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.Type {
	case eventbus.TypeReleaseChanged:
		if v, ok := e.Data.(eventbus.ReleaseChanged); ok {
			t.lastChange, t.changedAt = v, e.Time
		}
	case eventbus.TypeBroadcastSummary:
		if v, ok := e.Data.(broadcast.Summary); ok {
			t.lastSummary, t.summaryAt = v, e.Time
		}
	case eventbus.TypeConfigReloaded:
		t.reloads++
	}
}

type statusView struct {
	Now         time.Time
	Subscribers int
	Watcher     watcher.Status
	Scheduler   scheduler.Snapshot
}

func (t *statusTracker) render(v statusView) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	line := func(k, val string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(html.EscapeString(val))
		b.WriteString("\n")
	}

	b.WriteString("<strong>Status</strong>\n")
	line("uptime", v.Now.Sub(t.started).Round(time.Second).String())
	line("subscribers", fmt.Sprint(v.Subscribers))
	if v.Watcher.Known {
		line("current release", string(v.Watcher.Current))
	} else {
		line("current release", "unknown")
	}
	if !v.Watcher.LastPoll.IsZero() {
		poll := ago(v.Now, v.Watcher.LastPoll)
		if v.Watcher.LastErr != nil {
			poll += " (failed: " + v.Watcher.LastErr.Error() + ")"
		}
		line("last poll", poll)
	}

	s := v.Scheduler
	line("schedule", fmt.Sprintf("%s, runs %d, failures %d", s.Schedule, s.Runs, s.Failures))
	if !s.Next.IsZero() {
		if s.Running {
			line("next poll", "running now")
		} else {
			line("next poll", "in "+s.Next.Sub(v.Now).Round(time.Second).String())
		}
	}

	if !t.changedAt.IsZero() {
		line("last change", fmt.Sprintf("%s, %s", t.lastChange.Current, ago(v.Now, t.changedAt)))
	}
	if !t.summaryAt.IsZero() {
		sum := t.lastSummary
		line("last broadcast", fmt.Sprintf("%s: delivered %d, removed %d, failed %d in %s",
			sum.Release, sum.Delivered, sum.Removed, sum.Failed, sum.Took.Round(time.Millisecond)))
	}
	if t.reloads > 0 {
		line("config reloads", fmt.Sprint(t.reloads))
	}
	return strings.TrimRight(b.String(), "\n")
}

func ago(now, t time.Time) string {
	return now.Sub(t).Round(time.Second).String() + " ago"
}
