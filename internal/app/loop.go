package app

import (
	"context"

	"releasebot/internal/broadcast"
	"releasebot/internal/eventbus"
	"releasebot/internal/watcher"
)

type snapshotter interface {
	Snapshot() []int64
}

// releaseLoop is the scheduled job: poll, and on a new release broadcast it
// to a snapshot of the subscribers.
type releaseLoop struct {
	watcher *watcher.Watcher
	engine  *broadcast.Engine
	subs    snapshotter
	bus     eventbus.Bus
}

func (l *releaseLoop) run(ctx context.Context) error {
	ch, changed := l.watcher.Poll(ctx)
	if !changed {
		// Surface fetch failures in the scheduler's failure count.
		return l.watcher.Status().LastErr
	}
	l.bus.Publish(eventbus.Event{
		Type: eventbus.TypeReleaseChanged,
		Data: eventbus.ReleaseChanged{Previous: string(ch.Previous), Current: string(ch.Payload.ID)},
	})
	sum := l.engine.Deliver(ctx, ch.Payload, l.subs.Snapshot())
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastSummary, Data: sum})
	return nil
}
