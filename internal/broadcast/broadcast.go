// Package broadcast fans a release announcement out to every subscriber.
//
// Sends run on a bounded worker pool behind a shared rate limiter and each
// one has its own timeout. Recipients whose send comes back Undeliverable are
// removed from the registry once all sends finished; transient failures are
// counted and kept.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"releasebot/internal/release"
	kit "releasebot/internal/transport"
	logx "releasebot/pkg/logx"
)

const (
	defaultWorkers     = 8
	defaultRatePerSec  = 25
	defaultSendTimeout = 15 * time.Second
	pruneTimeout       = 30 * time.Second
	summaryTimeout     = 10 * time.Second
)

// Messenger delivers messages to chats.
type Messenger interface {
	// Send delivers the release announcement and classifies the result.
	Send(ctx context.Context, to int64, p release.Payload) kit.Outcome
	// SendPlain sends a plain-text notice.
	SendPlain(ctx context.Context, to int64, text string) error
}

// Remover is the slice of the subscriber registry the engine mutates.
type Remover interface {
	RemoveAll(ctx context.Context, ids []int64) (int, error)
}

type Config struct {
	Workers     int
	RatePerSec  int // 0 means default; negative disables limiting
	SendTimeout time.Duration
	// SummaryTimeout bounds delivery of the summary to all admins together.
	SummaryTimeout time.Duration
	// Admins receive the delivery summary.
	Admins []int64
}

type Engine struct {
	msg     Messenger
	reg     Remover
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
}

func New(msg Messenger, reg Remover, cfg Config, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = summaryTimeout
	}
	cfg.Admins = append([]int64(nil), cfg.Admins...)

	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Engine{msg: msg, reg: reg, cfg: cfg, limiter: lim, log: log}
}

// Summary is the result of one Deliver call.
type Summary struct {
	ID            string
	Release       release.ID
	Total         int
	Delivered     int
	Undeliverable int
	Removed       int
	Failed        int
	Took          time.Duration
}

// Text renders the summary sent to admins.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for %s:\n", s.Release)
	fmt.Fprintf(&b, "  * active users notified: %d\n", s.Delivered)
	fmt.Fprintf(&b, "  * inactive users (removed): %d", s.Removed)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "\n  * temporary failures (kept): %d", s.Failed)
	}
	return b.String()
}

// Deliver sends p to each recipient once, prunes the undeliverable ones and
// reports the summary to admins. Recipients not yet contacted when ctx ends
// count as failed and are never pruned.
func (e *Engine) Deliver(ctx context.Context, p release.Payload, recipients []int64) Summary {
	start := time.Now()
	sum := Summary{ID: uuid.NewString(), Release: p.ID, Total: len(recipients)}
	log := e.log.With(logx.String("broadcast_id", sum.ID), logx.String("release", string(p.ID)))
	log.Info("broadcast started", logx.Int("recipients", len(recipients)))

	outcomes := e.sendAll(ctx, p, recipients, log)

	var gone []int64
	for i, o := range outcomes {
		switch o.Status {
		case kit.Delivered:
			sum.Delivered++
		case kit.Undeliverable:
			sum.Undeliverable++
			gone = append(gone, recipients[i])
		default:
			sum.Failed++
		}
	}

	if len(gone) > 0 {
		// Pruning completed results must survive a cancelled broadcast.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pruneTimeout)
		n, err := e.reg.RemoveAll(pctx, gone)
		cancel()
		if err != nil {
			log.Error("failed to prune undeliverable subscribers", logx.Int("count", len(gone)), logx.Err(err))
		}
		sum.Removed = n
	}
	sum.Took = time.Since(start)

	log.Info("broadcast finished",
		logx.Int("delivered", sum.Delivered),
		logx.Int("removed", sum.Removed),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", sum.Took),
	)

	e.notifyAdmins(ctx, sum, log)
	return sum
}

func (e *Engine) sendAll(ctx context.Context, p release.Payload, recipients []int64, log logx.Logger) []kit.Outcome {
	outcomes := make([]kit.Outcome, len(recipients))
	for i := range outcomes {
		outcomes[i] = kit.Outcome{Status: kit.TransientFailure, Err: context.Canceled}
	}
	if len(recipients) == 0 {
		return outcomes
	}

	workers := e.cfg.Workers
	if workers > len(recipients) {
		workers = len(recipients)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.sendOne(ctx, recipients[i], p, log)
			}
		}()
	}

feed:
	for i := range recipients {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (e *Engine) sendOne(ctx context.Context, to int64, p release.Payload, log logx.Logger) (out kit.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during send", logx.Int64("chat_id", to), logx.Any("panic", r))
			out = kit.Outcome{Status: kit.TransientFailure, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := e.limiter.Wait(ctx); err != nil {
		return kit.Outcome{Status: kit.TransientFailure, Err: err}
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	out = e.msg.Send(sctx, to, p)
	if out.Status != kit.Delivered {
		log.Debug("send failed",
			logx.Int64("chat_id", to),
			logx.String("status", out.Status.String()),
			logx.Err(out.Err),
		)
	}
	return out
}

func (e *Engine) notifyAdmins(ctx context.Context, sum Summary, log logx.Logger) {
	if len(e.cfg.Admins) == 0 {
		return
	}
	text := sum.Text()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SummaryTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, admin := range e.cfg.Admins {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			if err := e.msg.SendPlain(sctx, admin, text); err != nil {
				log.Debug("summary not delivered", logx.Int64("admin_id", admin), logx.Err(err))
			}
		}(admin)
	}
	wg.Wait()
}
