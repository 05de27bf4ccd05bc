package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_user_ids: [11, 22]
  poll_timeout: 10s
logging:
  level: info
  console: true
watch:
  feed_url: "http://kantjer.com/category/abcrom/feed/"
  schedule: "15m"
  initial_delay: "10s"
storage:
  driver: file
  path: ./users/users_database.db
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Telegram.AdminUserIDs[1] != 22 {
		t.Fatalf("admins = %v", cfg.Telegram.AdminUserIDs)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode("config.json", []byte(`{"telegram":{"token":"x"},"plugins":{}}`))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	t.Parallel()
	_, err := Decode("config.json", []byte(`{"telegram":{"token":"x"}} {}`))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing data error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", AdminUserIDs: []int64{1}},
			Watch:    WatchConfig{FeedURL: "https://example.com/feed/"},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantErr: "telegram.token"},
		{name: "zero admin", mutate: func(c *Config) { c.Telegram.AdminUserIDs = []int64{0} }, wantErr: "admin_user_ids"},
		{name: "bad feed", mutate: func(c *Config) { c.Watch.FeedURL = "ftp://x" }, wantErr: "watch.feed_url"},
		{name: "bad duration", mutate: func(c *Config) { c.Watch.FetchTimeout = "soon" }, wantErr: "watch.fetch_timeout"},
		{name: "negative workers", mutate: func(c *Config) { c.Broadcast.Workers = -1 }, wantErr: "broadcast.workers"},
		{name: "sqlite needs path", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "storage.path"},
		{name: "gcs needs bucket", mutate: func(c *Config) { c.Storage.Driver = "gcs" }, wantErr: "storage.bucket"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "unknown storage.driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 3 * time.Second, false},
		{"0s", 3 * time.Second, false},
		{" 2m ", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		d, err := DurationOr("watch.fetch_timeout", tt.raw, 3*time.Second)
		if (err != nil) != tt.wantErr || d != tt.want {
			t.Fatalf("DurationOr(%q) = %v, %v", tt.raw, d, err)
		}
		if err != nil && !strings.Contains(err.Error(), "watch.fetch_timeout") {
			t.Fatalf("error should name the field: %v", err)
		}
	}
}

func TestDecodeYAMLAliasesAndUnknownKeys(t *testing.T) {
	t.Parallel()
	doc := `
x-admins: &admins [11, 22]
telegram: { token: "t", admin_user_ids: *admins }
watch: { feed_url: "https://example.com/feed" }
`
	if _, err := Decode("c.yaml", []byte(doc)); err == nil || !strings.Contains(err.Error(), "x-admins") {
		t.Fatalf("unknown top-level key should be rejected, got %v", err)
	}

	doc = `
telegram: { token: "t", admin_user_ids: [11, 22] }
watch: { feed_url: "https://example.com/feed", schedule: "00:15" }
`
	cfg, err := Decode("c.yml", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Watch.Schedule != "00:15" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestManagerLoadAndSubscribe(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return committed config")
	}

	ch := m.Subscribe(1)
	m.publish(cfg)
	m.publish(cfg) // full buffer: oldest dropped, newest kept
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("unexpected config published")
		}
	default:
		t.Fatal("expected a published config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := &Config{Logging: LoggingConfig{Level: "info"}}
	b := &Config{Logging: LoggingConfig{Level: "debug"}}
	sections, _ := SummarizeConfigChange(a, b)
	if len(sections) != 1 || sections[0] != "logging" {
		t.Fatalf("sections = %v", sections)
	}
	if RestartRequired(sections) {
		t.Fatal("logging-only change must not require restart")
	}
	b.Storage.Driver = "sqlite"
	sections, _ = SummarizeConfigChange(a, b)
	if !RestartRequired(sections) {
		t.Fatalf("storage change must require restart: %v", sections)
	}
}
