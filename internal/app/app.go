package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"hwbot/internal/commands"
	"hwbot/internal/config"
	"hwbot/internal/notifier"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	rtsup "hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	receive bool
	// chatID is fixed at startup; commands and notifications both use it.
	chatID  int64

	notif *notifier.Service
	poll  *poller.Poller
	cmds  *commands.Handler

	updates chan kit.Update
}

type options struct {
	adapter kit.Adapter
	fetcher poller.Fetcher
}

type Option func(*options)

// WithAdapter replaces the Telegram adapter.
func WithAdapter(ad kit.Adapter) Option { return func(o *options) { o.adapter = ad } }

// WithFetcher replaces the homework API client.
func WithFetcher(f poller.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// New loads the config and wires every component. Nothing runs until Start.
func New(cfgm *config.ConfigManager, opts ...Option) (*App, error) {
	if cfgm == nil {
		return nil, errors.New("app: config manager is nil")
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	closeOnErr := func(err error) (*App, error) {
		_ = logSvc.Close()
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return closeOnErr(err)
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return closeOnErr(fmt.Errorf("storage: %w", err))
		}
		store = st
		appLog.Info("delivery journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}
	closeAll := func(err error) (*App, error) {
		if store != nil {
			_ = store.Close()
		}
		return closeOnErr(err)
	}

	tcfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return closeAll(err)
	}
	ad := o.adapter
	if ad == nil {
		ta, err := telegram.New(tcfg, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return closeAll(fmt.Errorf("telegram: %w", err))
		}
		ad = ta
	}

	fetch := o.fetcher
	if fetch == nil {
		pcfg, err := mapPracticumConfig(cfg)
		if err != nil {
			return closeAll(err)
		}
		c, err := practicum.NewClient(pcfg)
		if err != nil {
			return closeAll(err)
		}
		fetch = c
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return closeAll(err)
	}
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), store)

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		receive: tcfg.Receive,
		chatID:  cfg.Telegram.ChatID,
		notif:   notif,
		updates: make(chan kit.Update, 64),
	}

	p, err := poller.New(poller.Config{
		Schedule: cfg.Poller.Schedule,
		FromDate: cfg.Poller.FromDate,
	}, fetch, notif, log.With(logx.String("comp", "poller")),
		poller.WithIterationHook(func() { a.sdNotify(daemon.SdNotifyWatchdog) }),
	)
	if err != nil {
		return closeAll(err)
	}
	a.poll = p
	a.cmds = commands.New(commands.Config{ChatID: a.chatID}, ad, p, notif, log.With(logx.String("comp", "commands")))
	return a, nil
}

// Poller exposes the poll loop for status inspection.
func (a *App) Poller() *poller.Poller { return a.poll }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if a.receive {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.cmds.DispatchLoop(c, a.updates)
		})
	}

	// The poll loop only returns on cancel; a panic inside an iteration
	// restarts it with backoff.
	a.sup.GoRestart("poller", a.poll.Run,
		rtsup.WithRestartBackoff(time.Second, time.Minute),
	)

	if every := watchdogInterval(); every > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) { a.watchdogLoop(c, every) })
	}

	if a.cfgm.Path() != "" {
		sub := a.cfgm.Subscribe(4)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.Go("config.watch", a.cfgm.Watch)
	}

	a.sdNotify(daemon.SdNotifyReady)
	a.log.Info("app started", logx.Bool("commands", a.receive), logx.String("config", a.cfgm.Path()))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig applies the live-reloadable sections of next.
func (a *App) applyConfig(prev, next *config.Config) {
	sections := changedSections(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if restartOnly[s] {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		// The chat id is restart-only.
		ncfg.Target.ChatID = a.chatID
		a.notif.Apply(ncfg)
	}

	if err := a.poll.Apply(next.Poller.Schedule); err != nil {
		a.log.Warn("invalid poller.schedule; keeping previous", logx.Err(err))
	}

	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sdNotify(daemon.SdNotifyStopping)

	// Cancel first so every loop starts unwinding.
	a.sup.Cancel()

	// step runs fn with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	err := a.sup.Err()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
