package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DurationOr parses a Go duration field at path. Empty or zero yields def;
// negative values are rejected.
func DurationOr(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case d == 0:
		return def, nil
	}
	return d, nil
}

// Validate checks the fields every startup path depends on. Durations are
// parsed here so a bad hot reload is rejected before commit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	for i, id := range cfg.Telegram.AdminUserIDs {
		if id == 0 {
			return fmt.Errorf("telegram.admin_user_ids[%d]: must be non-zero", i)
		}
	}
	if _, err := DurationOr("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
		return err
	}

	feed := strings.TrimSpace(cfg.Watch.FeedURL)
	if feed == "" {
		return errors.New("watch.feed_url is required")
	}
	if u, err := url.Parse(feed); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("watch.feed_url: invalid http(s) url %q", feed)
	}
	for path, raw := range map[string]string{
		"watch.initial_delay":    cfg.Watch.InitialDelay,
		"watch.fetch_timeout":    cfg.Watch.FetchTimeout,
		"broadcast.send_timeout": cfg.Broadcast.SendTimeout,
		"storage.busy_timeout":   cfg.Storage.BusyTimeout,
	} {
		if _, err := DurationOr(path, raw, 0); err != nil {
			return err
		}
	}
	if cfg.Broadcast.Workers < 0 {
		return errors.New("broadcast.workers must be >= 0")
	}
	if cfg.Broadcast.RatePerSec < 0 {
		return errors.New("broadcast.rate_per_sec must be >= 0")
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "file":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required when storage.driver=sqlite")
		}
	case "gcs":
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return errors.New("storage.bucket is required when storage.driver=gcs")
		}
	default:
		return fmt.Errorf("unknown storage.driver: %s", cfg.Storage.Driver)
	}
	return nil
}
