// Package release defines what a published build looks like to the rest of
// the bot and the contract for fetching the newest one.
package release

import (
	"context"
	"errors"
	"html"
	"strings"
)

// ErrSourceUnavailable covers every failure to obtain the latest release:
// network errors, timeouts, unexpected status codes and unparsable markup.
var ErrSourceUnavailable = errors.New("release source unavailable")

// ID identifies a build. Two releases are the same iff their IDs are equal.
type ID string

// Payload is the user-facing bundle for one release. It is built once per
// fetch and shared read-only by every send.
type Payload struct {
	ID           ID
	DownloadURL  string
	ChangelogURL string
	ForumURL     string
	ForumTitle   string
	Title        string
	// Body is the rendered HTML announcement.
	Body string
}

func (p Payload) IsZero() bool { return p.ID == "" }

// Source fetches the newest published release.
type Source interface {
	Fetch(ctx context.Context) (Payload, error)
}

const (
	LeadNew     = "New build available"
	LeadCurrent = "The current release is"
)

// Render formats p as Telegram HTML with the given lead line.
func Render(lead string, p Payload) string {
	var b strings.Builder
	b.WriteString("<strong>")
	b.WriteString(html.EscapeString(lead))
	b.WriteString("</strong>:\n")
	name := html.EscapeString(string(p.ID))
	if p.DownloadURL != "" {
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(p.DownloadURL))
		b.WriteString(`">`)
		b.WriteString(name)
		b.WriteString("</a>\n")
	} else {
		b.WriteString(name)
		b.WriteString("\n")
	}
	if t := strings.TrimSpace(p.Title); t != "" && t != string(p.ID) {
		b.WriteString(html.EscapeString(t))
		b.WriteString("\n")
	}
	if p.ChangelogURL != "" {
		u := html.EscapeString(p.ChangelogURL)
		b.WriteString("\n<strong>Changelog here:</strong>\n")
		b.WriteString(`<a href="` + u + `">` + u + "</a>\n")
	}
	if p.ForumURL != "" {
		title := p.ForumTitle
		if strings.TrimSpace(title) == "" {
			title = p.ForumURL
		}
		b.WriteString("<strong>Forum thread here:</strong>\n")
		b.WriteString(`<a href="` + html.EscapeString(p.ForumURL) + `">` + html.EscapeString(title) + "</a>\n")
	}
	return b.String()
}
