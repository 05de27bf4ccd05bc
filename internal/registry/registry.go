// Package registry holds the set of chats subscribed to release notices.
//
// All mutations go through one mutex and are written through to the backing
// store before they return. When the write fails the in-memory set is rolled
// back, so memory never holds an id the store does not.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"releasebot/internal/storage"
	logx "releasebot/pkg/logx"
)

// Subscriber is a Telegram chat id.
type Subscriber = int64

type Registry struct {
	store storage.SubscriberStore
	log   logx.Logger

	mu  sync.Mutex
	set map[Subscriber]struct{}
}

// Open loads the persisted set. A store that was never written yields an
// empty registry; corrupt or unreadable stores are returned as errors.
func Open(ctx context.Context, store storage.SubscriberStore, log logx.Logger) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry: nil store")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	ids, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	r := &Registry{store: store, log: log, set: make(map[Subscriber]struct{}, len(ids))}
	for _, id := range ids {
		r.set[id] = struct{}{}
	}
	if dups := len(ids) - len(r.set); dups > 0 {
		log.Info("dropped duplicate subscriber records", logx.Int("duplicates", dups))
	}
	log.Info("subscribers loaded", logx.Int("count", len(r.set)))
	return r, nil
}

// Add subscribes id. It reports false when id was already present, in which
// case nothing is written.
func (r *Registry) Add(ctx context.Context, id Subscriber) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return false, nil
	}
	r.set[id] = struct{}{}
	if err := r.store.Save(ctx, r.sortedLocked()); err != nil {
		delete(r.set, id)
		return false, fmt.Errorf("persist add %d: %w", id, err)
	}
	return true, nil
}

// RemoveAll drops every id in ids that is present and returns how many were
// removed. Ids not present are ignored; when none are present nothing is written.
func (r *Registry) RemoveAll(ctx context.Context, ids []Subscriber) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Subscriber
	for _, id := range ids {
		if _, ok := r.set[id]; ok {
			delete(r.set, id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := r.store.Save(ctx, r.sortedLocked()); err != nil {
		for _, id := range removed {
			r.set[id] = struct{}{}
		}
		return 0, fmt.Errorf("persist remove: %w", err)
	}
	return len(removed), nil
}

// Snapshot returns a sorted copy of the current set. Later mutations do not
// affect it.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}

func (r *Registry) Contains(id Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[id]
	return ok
}

func (r *Registry) sortedLocked() []Subscriber {
	out := make([]Subscriber, 0, len(r.set))
	for id := range r.set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
