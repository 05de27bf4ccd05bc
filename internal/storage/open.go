package storage

import (
	"context"
	"errors"
	"strings"

	logx "releasebot/pkg/logx"
)

const defaultFilePath = "./users/users_database.db"

// Open initializes the configured subscriber store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (SubscriberStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = defaultFilePath
		}
		return NewFileStore(path, log), nil
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "gcs":
		return openGCS(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
