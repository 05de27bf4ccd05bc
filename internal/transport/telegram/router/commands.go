package router

import (
	"context"
	"time"

	"releasebot/internal/access"
	"releasebot/internal/release"
	kit "releasebot/internal/transport"
	logx "releasebot/pkg/logx"
)

const (
	welcomeHeader  = "<strong>Welcome to the release bot</strong>\n\nIt will notify you when a new build is available.\n\n"
	unknownRelease = "The current release is not known yet. You will be notified as soon as it is published."
	goodbyeText    = "You will no longer receive release notifications. Send /start to subscribe again."
	restartText    = "Bot is restarting..."
)

// Subscribers is the registry surface the commands need.
type Subscribers interface {
	Add(ctx context.Context, id int64) (bool, error)
	RemoveAll(ctx context.Context, ids []int64) (int, error)
}

// Releases exposes the last known release without touching watcher state.
type Releases interface {
	Current() (release.Payload, bool)
}

type Deps struct {
	Subscribers Subscribers
	Releases    Releases
	// Status renders the admin status report.
	Status func(ctx context.Context) string
	// Restart asks the app to stop and re-exec itself. It must not block.
	Restart func()
}

// WelcomeText is sent on every /start.
func WelcomeText(p release.Payload, known bool) string {
	if !known {
		return welcomeHeader + unknownRelease
	}
	return welcomeHeader + release.Render(release.LeadCurrent, p)
}

// NewBot builds the router with the bot's command set.
func NewBot(log logx.Logger, sender Sender, gate *access.Gate, deps Deps) *Router {
	var r *Router
	h := &handlers{deps: deps, sender: sender}
	r = New(log, sender, gate,
		Command{Name: "start", Description: "subscribe to release notifications", Timeout: 30 * time.Second, Handle: h.start},
		Command{Name: "help", Aliases: []string{"h"}, Description: "show help", Handle: func(ctx context.Context, req *Request) error {
			return h.reply(ctx, req, r.HelpText(req.IsAdmin), true)
		}},
		Command{Name: "stop", Description: "unsubscribe", Timeout: 30 * time.Second, Handle: h.stop},
		Command{Name: "status", Description: "bot status", Access: AccessAdmin, Timeout: 15 * time.Second, Handle: h.status},
		Command{Name: "r", Aliases: []string{"restart"}, Description: "restart the bot", Access: AccessAdmin, Handle: h.restart},
	)
	return r
}

type handlers struct {
	deps   Deps
	sender Sender
}

func (h *handlers) reply(ctx context.Context, req *Request, text string, html bool) error {
	opt := &kit.SendOptions{DisablePreview: true}
	if html {
		opt.ParseMode = "HTML"
	}
	_, err := h.sender.SendText(ctx, req.Chat, text, opt)
	return err
}

// start subscribes the chat and always answers with the welcome, even when
// persisting the subscription failed.
func (h *handlers) start(ctx context.Context, req *Request) error {
	id := req.Chat.ChatID
	added, err := h.deps.Subscribers.Add(ctx, id)
	switch {
	case err != nil:
		req.Logger.Error("failed to persist subscription", logx.Err(err))
	case added:
		req.Logger.Info("subscriber added")
	}
	p, known := h.deps.Releases.Current()
	return h.reply(ctx, req, WelcomeText(p, known), true)
}

func (h *handlers) stop(ctx context.Context, req *Request) error {
	n, err := h.deps.Subscribers.RemoveAll(ctx, []int64{req.Chat.ChatID})
	if err != nil {
		req.Logger.Error("failed to persist unsubscribe", logx.Err(err))
		return h.reply(ctx, req, "Could not unsubscribe right now, please try again later.", false)
	}
	if n > 0 {
		req.Logger.Info("subscriber removed")
	}
	return h.reply(ctx, req, goodbyeText, false)
}

func (h *handlers) status(ctx context.Context, req *Request) error {
	text := "status unavailable"
	if h.deps.Status != nil {
		text = h.deps.Status(ctx)
	}
	return h.reply(ctx, req, text, true)
}

func (h *handlers) restart(ctx context.Context, req *Request) error {
	_ = h.reply(ctx, req, restartText, false)
	req.Logger.Warn("restart requested")
	if h.deps.Restart != nil {
		h.deps.Restart()
	}
	return nil
}
