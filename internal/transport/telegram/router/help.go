package router

import (
	"html"
	"strings"
)

const helpIntro = "The <strong>release bot</strong> is really simple to use.\n\n" +
	"You just need to activate it with /start.\n\n" +
	"The bot will notify you when a new build is available."

// HelpText lists the commands visible to the caller.
func (r *Router) HelpText(admin bool) string {
	var b strings.Builder
	b.WriteString(helpIntro)
	b.WriteString("\n\n<strong>Commands</strong>\n")
	for _, c := range r.cmds {
		if c.Hidden || c.Handle == nil {
			continue
		}
		if c.Access == AccessAdmin && !admin {
			continue
		}
		b.WriteString("/")
		b.WriteString(c.Name)
		if d := strings.TrimSpace(c.Description); d != "" {
			b.WriteString(" - ")
			b.WriteString(html.EscapeString(d))
		}
		if c.Access == AccessAdmin {
			b.WriteString(" (admin)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
