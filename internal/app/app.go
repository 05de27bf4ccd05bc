package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"releasebot/internal/access"
	"releasebot/internal/broadcast"
	"releasebot/internal/config"
	"releasebot/internal/eventbus"
	"releasebot/internal/lifecycle"
	"releasebot/internal/registry"
	"releasebot/internal/release/feed"
	"releasebot/internal/runtime/supervisor"
	"releasebot/internal/scheduler"
	"releasebot/internal/storage"
	kit "releasebot/internal/transport"
	"releasebot/internal/transport/telegram/adapter"
	"releasebot/internal/transport/telegram/router"
	"releasebot/internal/watcher"
	logx "releasebot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	log  logx.Logger
	logs *logx.Service

	adapter  *adapter.Adapter
	store    storage.SubscriberStore
	registry *registry.Registry
	watcher  *watcher.Watcher
	engine   *broadcast.Engine
	sched    *scheduler.Scheduler
	router   *router.Router
	bus      eventbus.Bus
	status   *statusTracker

	restarter *lifecycle.Restarter

	updates chan kit.Update

	mu       sync.Mutex
	sup      *supervisor.Supervisor
	stopOnce sync.Once
}

// New loads the config and builds every component. Nothing talks to the
// network until Start, except the adapter's getMe check.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)
	cfgm.SetLogger(bootLog)

	pollTimeout, err := config.DurationOr("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	tg, err := adapter.New(adapter.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	// The Telegram sink stays off until its target chat is known.
	lc := mapLoggingConfig(cfg)
	tgEnabled := lc.Telegram.Enabled
	lc.Telegram.Enabled = false
	logs, log := logx.New(lc, tg)
	if chat := groupLogChat(cfg); chat != 0 {
		logs.SetTelegramTarget(chat, lc.Telegram.ThreadID)
	} else if tgEnabled {
		log.Warn("logging.telegram enabled but telegram.group_log is not a chat id; sink stays off")
	}
	lc.Telegram.Enabled = tgEnabled && groupLogChat(cfg) != 0
	logs.Apply(lc)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logs,
		adapter:   tg,
		bus:       eventbus.New(),
		status:    newStatusTracker(time.Now()),
		restarter: lifecycle.NewRestarter(),
		updates:   make(chan kit.Update, 256),
	}
	if err := a.build(cfg); err != nil {
		_ = logs.Close()
		return nil, err
	}

	cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		return validateMappings(next)
	})
	return a, nil
}

func validateMappings(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapWatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapBroadcastConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) build(cfg *config.Config) error {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	ws, err := mapWatchConfig(cfg)
	if err != nil {
		return err
	}
	bc, err := mapBroadcastConfig(cfg)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(openCtx, sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	reg, err := registry.Open(openCtx, store, a.log.With(logx.String("comp", "registry")))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("registry: %w", err)
	}
	a.store, a.registry = store, reg

	src := feed.New(ws.feed, a.log.With(logx.String("comp", "feed")))
	a.watcher = watcher.New(src, ws.watcher, a.log.With(logx.String("comp", "watcher")))
	a.engine = broadcast.New(a.adapter, reg, bc, a.log.With(logx.String("comp", "broadcast")))

	loop := &releaseLoop{watcher: a.watcher, engine: a.engine, subs: reg, bus: a.bus}
	sched, err := scheduler.New(ws.scheduler, loop.run, a.log.With(logx.String("comp", "scheduler")))
	if err != nil {
		_ = store.Close()
		return err
	}
	a.sched = sched

	gate := access.New(cfg.Telegram.AdminUserIDs)
	a.router = router.NewBot(a.log.With(logx.String("comp", "router")), a.adapter, gate, router.Deps{
		Subscribers: reg,
		Releases:    a.watcher,
		Status:      a.statusText,
		Restart:     a.restarter.Request,
	})

	a.log.Info("app built",
		logx.Int("subscribers", reg.Len()),
		logx.Int("admins", len(gate.Admins())),
		logx.String("storage", sc.Driver),
		logx.String("schedule", sched.Spec().String()),
	)
	return nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Restarter is signalled by the admin restart command.
func (a *App) Restarter() *lifecycle.Restarter { return a.restarter }

func (a *App) statusText(context.Context) string {
	return a.status.render(statusView{
		Now:         time.Now(),
		Subscribers: a.registry.Len(),
		Watcher:     a.watcher.Status(),
		Scheduler:   a.sched.Snapshot(),
	})
}

func (a *App) Start(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	a.mu.Lock()
	a.sup = sup
	a.mu.Unlock()

	if err := a.adapter.Start(sup.Context(), a.updates); err != nil {
		sup.Cancel()
		return err
	}

	events, unsubscribe := a.bus.Subscribe(64)
	sup.Go0("status.tracker", func(c context.Context) {
		defer unsubscribe()
		a.status.run(c, events)
	})

	sup.Go0("commands.menu", func(c context.Context) {
		var updater kit.CommandMenuUpdater = a.adapter
		mctx, cancel := context.WithTimeout(c, 15*time.Second)
		defer cancel()
		if err := updater.UpdateMenuCommands(mctx, a.router.Menu()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	})

	sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	sup.Go("release.loop", func(c context.Context) error {
		pctx, cancel := context.WithTimeout(c, 2*time.Minute)
		if err := a.watcher.Prime(pctx); err != nil {
			a.log.Warn("initial release fetch failed; next successful poll will be announced", logx.Err(err))
		}
		cancel()
		return a.sched.Run(c)
	})

	sup.Go0("systemd.watchdog", func(c context.Context) { lifecycle.Watchdog(c, a.log) })
	a.startConfigReload(sup)

	lifecycle.NotifyReady(a.log)
	a.log.Info("app started")
	return nil
}

func (a *App) startConfigReload(sup *supervisor.Supervisor) {
	ch := a.cfgm.Subscribe(4)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(ch)
		prev := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-ch:
				if !ok {
					return
				}
				a.applyConfig(prev, next)
				prev = next
			}
		}
	})
	sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
}

// applyConfig hot-applies the logging section and the log chat. Everything
// else is only reported.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		return
	}
	lifecycle.NotifyReloading(a.log)
	defer lifecycle.NotifyReady(a.log)

	lc := mapLoggingConfig(next)
	chat := groupLogChat(next)
	if chat != 0 {
		a.logs.SetTelegramTarget(chat, lc.Telegram.ThreadID)
	}
	lc.Telegram.Enabled = lc.Telegram.Enabled && chat != 0
	a.logs.Apply(lc)

	attrs = append(attrs, logx.Strs("sections", sections))
	a.log.Info("config reloaded", attrs...)
	if config.RestartRequired(sections) {
		a.log.Warn("config change needs a restart to take effect", logx.String("sections", strings.Join(sections, ",")))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
}

// Done is closed when the app's supervisor stops (fatal error or parent cancel).
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Context().Done()
}

// Err is the first fatal component error, if any.
func (a *App) Err() error {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Err()
}

func (a *App) Stop(ctx context.Context, reason StopReason) {
	a.stopOnce.Do(func() { a.stop(ctx, reason) })
}

func (a *App) stop(ctx context.Context, reason StopReason) {
	start := time.Now()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	lifecycle.NotifyStopping(a.log)

	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		t := time.Now()
		if err := fn(sctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step failed", logx.String("step", name), logx.Duration("took", time.Since(t)), logx.Err(err))
			return
		}
		a.log.Debug("stop step done", logx.String("step", name), logx.Duration("took", time.Since(t)))
	}

	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup != nil {
		sup.Cancel()
	}

	step("adapter", 10*time.Second, a.adapter.Stop)
	if sup != nil {
		step("supervisor", 20*time.Second, sup.Wait)
	}
	step("storage", 5*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped", logx.String("reason", string(reason)), logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
}
