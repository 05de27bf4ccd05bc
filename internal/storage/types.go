package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCorrupt means a persisted record is not a valid subscriber id.
	ErrCorrupt = errors.New("subscriber store corrupt")
	// ErrUnavailable means the backing store exists but could not be read or written.
	ErrUnavailable = errors.New("subscriber store unavailable")
)

// SubscriberStore is the durable backing of the subscriber registry.
//
// Load returns (nil, nil) when the store has never been written (first run).
// Save replaces the persisted set with ids atomically.
type SubscriberStore interface {
	Load(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, ids []int64) error
	Close() error
}

// Config configures storage.
//
// Driver values: "file" (default), "sqlite", "gcs".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Bucket      string // gcs
	Object      string // gcs; default "subscribers.txt"
	Credentials string // gcs; optional service account json file
}
