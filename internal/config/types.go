package config

// Config is the on-disk configuration (JSON or YAML).
//
// Only the logging section is applied on hot reload; every other section is
// read once at startup.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Watch     WatchConfig     `json:"watch"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminUserIDs is the fixed allow-list for admin commands (restart, status)
	// and the recipients of broadcast summaries.
	AdminUserIDs []int64 `json:"admin_user_ids"`
	GroupLog     string  `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// WatchConfig controls the release feed poller.
//
// Schedule accepts a Go duration ("15m"), an HH:MM interval ("00:15"), or a
// cron expression ("*/15 * * * *", "@every 15m", "cron:0 * * * *").
//
// Defaults:
//   - schedule: "15m"
//   - initial_delay: "10s"
//   - fetch_timeout: "30s"
type WatchConfig struct {
	FeedURL      string `json:"feed_url"`
	Schedule     string `json:"schedule,omitempty"`
	InitialDelay string `json:"initial_delay,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	ChangelogURL string `json:"changelog_url,omitempty"`
	ForumURL     string `json:"forum_url,omitempty"`
	ForumTitle   string `json:"forum_title,omitempty"`
}

// BroadcastConfig controls release fan-out.
//
// Defaults: workers 8, rate_per_sec 25, send_timeout "15s".
type BroadcastConfig struct {
	Workers     int    `json:"workers,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the subscriber store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./users/users_database.db" }
//
// Drivers: "file" (default), "sqlite", "gcs" (bucket + object).
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Bucket      string `json:"bucket,omitempty"`       // gcs
	Object      string `json:"object,omitempty"`       // gcs
	Credentials string `json:"credentials,omitempty"`  // gcs service account file (optional)
}
