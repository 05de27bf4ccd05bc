// Package feed implements release.Source on top of an RSS 2.0 or Atom feed.
// Parsing is done by gofeed; the HTTP fetch stays here so it can be retried.
//
// The newest entry is the first one in document order. Its content HTML is
// searched for the first link to a .zip archive; the archive file name is the
// release ID.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mmcdole/gofeed"

	"releasebot/internal/release"
	logx "releasebot/pkg/logx"
)

const maxFeedBytes = 8 << 20

type Config struct {
	URL          string
	ChangelogURL string
	ForumURL     string
	ForumTitle   string

	// Attempts per Fetch; 0 means 3.
	Attempts  uint
	RetryBase time.Duration
	UserAgent string
	Client    *http.Client
}

type Source struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "releasebot/1.0 (+https://core.telegram.org/bots)"
	}
	c := cfg.Client
	if c == nil {
		c = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{cfg: cfg, client: c, log: log}
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

// Fetch downloads and parses the feed. Every failure wraps
// release.ErrSourceUnavailable.
func (s *Source) Fetch(ctx context.Context) (release.Payload, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := s.get(ctx)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.RetryBase),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(s.cfg.RetryBase),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("retrying feed fetch", logx.Uint64("attempt", uint64(n)), logx.Err(err))
		}),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				// 4xx other than 429 will not fix itself.
				return se.Code >= 500 || se.Code == http.StatusTooManyRequests
			}
			return true
		}),
	)
	if err != nil {
		return release.Payload{}, fmt.Errorf("%w: %v", release.ErrSourceUnavailable, err)
	}

	entry, err := parseFeed(body)
	if err != nil {
		return release.Payload{}, fmt.Errorf("%w: %v", release.ErrSourceUnavailable, err)
	}
	p, err := buildPayload(entry, s.cfg)
	if err != nil {
		return release.Payload{}, fmt.Errorf("%w: %v", release.ErrSourceUnavailable, err)
	}
	return p, nil
}

func (s *Source) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	s.log.Debug("feed fetched",
		logx.String("url", s.cfg.URL),
		logx.Int("status", resp.StatusCode),
		logx.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
}

// entry is the newest feed item, normalized across feed formats.
type entry struct {
	Title   string
	Link    string
	GUID    string
	Content string
}

// parseFeed returns the first item of an RSS, Atom or JSON feed.
func parseFeed(b []byte) (entry, error) {
	f, err := gofeed.NewParser().ParseString(string(b))
	if err != nil {
		return entry{}, fmt.Errorf("parse feed: %w", err)
	}
	if len(f.Items) == 0 || f.Items[0] == nil {
		return entry{}, errors.New("feed has no entries")
	}
	it := f.Items[0]
	content := it.Content
	if strings.TrimSpace(content) == "" {
		content = it.Description
	}
	return entry{Title: it.Title, Link: it.Link, GUID: it.GUID, Content: content}, nil
}
