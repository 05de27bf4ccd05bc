package feed

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"releasebot/internal/release"
)

// buildPayload extracts the release from the newest entry's content HTML.
func buildPayload(e entry, cfg Config) (release.Payload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(e.Content))
	if err != nil {
		return release.Payload{}, err
	}

	var id, dl string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		name := archiveName(href, strings.TrimSpace(a.Text()))
		if name == "" {
			return true
		}
		id, dl = name, strings.TrimSpace(href)
		return false
	})
	if id == "" {
		return release.Payload{}, errors.New("no .zip download link in newest entry")
	}

	p := release.Payload{
		ID:           release.ID(id),
		DownloadURL:  dl,
		ChangelogURL: cfg.ChangelogURL,
		ForumURL:     cfg.ForumURL,
		ForumTitle:   cfg.ForumTitle,
		Title:        strings.TrimSpace(e.Title),
	}
	if p.ChangelogURL == "" {
		p.ChangelogURL = strings.TrimSpace(e.Link)
	}
	p.Body = release.Render(release.LeadNew, p)
	return p, nil
}

// archiveName returns the .zip file name a link points to, preferring the
// URL path and falling back to the anchor text.
func archiveName(href, text string) string {
	if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
		if base := path.Base(u.Path); isZip(base) {
			if unescaped, err := url.PathUnescape(base); err == nil {
				return unescaped
			}
			return base
		}
	}
	if isZip(text) && !strings.ContainsAny(text, " \t\n/") {
		return text
	}
	return ""
}

func isZip(s string) bool {
	return len(s) > len(".zip") && strings.EqualFold(path.Ext(s), ".zip")
}
