package app

import (
	"strconv"
	"strings"
	"time"

	"releasebot/internal/broadcast"
	"releasebot/internal/config"
	"releasebot/internal/release/feed"
	"releasebot/internal/scheduler"
	"releasebot/internal/storage"
	"releasebot/internal/watcher"
	logx "releasebot/pkg/logx"
)

const (
	defaultSchedule     = "15m"
	defaultInitialDelay = 10 * time.Second
	defaultFetchTimeout = 30 * time.Second
	defaultSendTimeout  = 15 * time.Second
	defaultStoragePath  = "./users/users_database.db"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.DurationOr("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		path = defaultStoragePath
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        path,
		BusyTimeout: busy,
		Bucket:      sc.Bucket,
		Object:      sc.Object,
		Credentials: sc.Credentials,
	}, nil
}

type watchSettings struct {
	feed      feed.Config
	watcher   watcher.Config
	scheduler scheduler.Config
}

func mapWatchConfig(cfg *config.Config) (watchSettings, error) {
	wc := cfg.Watch
	delay, err := config.DurationOr("watch.initial_delay", wc.InitialDelay, defaultInitialDelay)
	if err != nil {
		return watchSettings{}, err
	}
	fetch, err := config.DurationOr("watch.fetch_timeout", wc.FetchTimeout, defaultFetchTimeout)
	if err != nil {
		return watchSettings{}, err
	}
	spec := strings.TrimSpace(wc.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}
	if _, err := scheduler.Parse(spec); err != nil {
		return watchSettings{}, err
	}
	return watchSettings{
		feed: feed.Config{
			URL:          strings.TrimSpace(wc.FeedURL),
			ChangelogURL: strings.TrimSpace(wc.ChangelogURL),
			ForumURL:     strings.TrimSpace(wc.ForumURL),
			ForumTitle:   strings.TrimSpace(wc.ForumTitle),
		},
		watcher:   watcher.Config{FetchTimeout: fetch},
		scheduler: scheduler.Config{Spec: spec, InitialDelay: delay},
	}, nil
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	bc := cfg.Broadcast
	send, err := config.DurationOr("broadcast.send_timeout", bc.SendTimeout, defaultSendTimeout)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		Workers:     bc.Workers,
		RatePerSec:  bc.RatePerSec,
		SendTimeout: send,
		Admins:      append([]int64(nil), cfg.Telegram.AdminUserIDs...),
	}, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// groupLogChat parses telegram.group_log; 0 means unset or invalid.
func groupLogChat(cfg *config.Config) int64 {
	s := strings.TrimSpace(cfg.Telegram.GroupLog)
	if s == "" {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
