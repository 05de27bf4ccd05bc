// Package router turns Telegram updates into command invocations.
//
// Commands run on a bounded worker pool so a slow handler never blocks
// update intake. Admin-only commands are checked against the access gate
// before they are queued.
package router

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"releasebot/internal/access"
	rtsup "releasebot/internal/runtime/supervisor"
	kit "releasebot/internal/transport"
	logx "releasebot/pkg/logx"
)

const (
	deniedText = "You are not authorized to run this command"

	replyTimeout = 5 * time.Second
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdmin
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access
	// Hidden commands are left out of help and the menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string
	IsAdmin bool
	Logger  logx.Logger
}

// Sender is the outbound half of the transport adapter.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

type Router struct {
	log    logx.Logger
	sender Sender
	gate   *access.Gate

	cmds  []Command
	index map[string]*Command

	workers int
	jobs    chan func()
}

func New(log logx.Logger, sender Sender, gate *access.Gate, cmds ...Command) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	r := &Router{
		log:     log,
		sender:  sender,
		gate:    gate,
		index:   map[string]*Command{},
		workers: workers,
		jobs:    make(chan func(), 256),
	}
	r.cmds = append(r.cmds, cmds...)
	for i := range r.cmds {
		c := &r.cmds[i]
		if c.Handle == nil || c.Name == "" {
			continue
		}
		r.index[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				r.index[a] = c
			}
		}
	}
	return r
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command { return append([]Command(nil), r.cmds...) }

// DispatchLoop consumes updates until ctx ends or updates is closed, then
// waits briefly for queued commands to finish.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log))
	for i := 0; i < r.workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					job()
				}
			}
		}, 200*time.Millisecond, 5*time.Second)
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers), logx.Int("job_queue_cap", cap(r.jobs)))

	defer func() {
		close(r.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := r.index[name]
	if !ok {
		r.log.Debug("unknown command ignored", logx.String("cmd", name), logx.Int64("chat_id", msg.ChatID))
		return
	}

	isAdmin := r.gate.Allowed(msg.FromID)
	if cmd.Access == AccessAdmin {
		if err := r.gate.Authorize(msg.FromID); err != nil {
			r.log.Warn("unauthorized access denied", logx.Int64("from_id", msg.FromID), logx.String("cmd", cmd.Name))
			r.enqueue(name, func() {
				rctx, cancel := context.WithTimeout(ctx, replyTimeout)
				defer cancel()
				_, _ = r.sender.SendText(rctx, chat, deniedText, nil)
			})
			return
		}
	}

	rid := uuid.NewString()[:8]
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		IsAdmin: isAdmin,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	final := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(cmd.Timeout))

	r.enqueue(cmd.Name, func() { _ = final(ctx, req) })
}

// enqueue hands job to the worker pool. Intake never sends inline: when the
// queue is full the job is dropped.
func (r *Router) enqueue(cmd string, job func()) {
	select {
	case r.jobs <- job:
	default:
		r.log.Warn("command queue full; dropping", logx.String("cmd", cmd), logx.Int("queue_cap", cap(r.jobs)))
	}
}

// parseCommand splits "/name@bot arg1 arg2" into ("name", [arg1 arg2]).
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
