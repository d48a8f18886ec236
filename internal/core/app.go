// Package core wires the reminder bot together: config, logging, storage,
// the Telegram adapter, the command router and the trigger dispatcher.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/dispatcher"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	"remindbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter
	store   reminder.Store
	rems    *reminder.Service
	notif   *notifier.Service
	disp    *dispatcher.Service
	router  *bot.Router

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	store, err := reminder.OpenStore(storeConfig(cfg.Storage), logSvc.Logger().With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	zone := time.UTC
	if tz := strings.TrimSpace(cfg.Time.DisplayTimezone); tz != "" {
		zone, err = time.LoadLocation(tz)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("time.display_timezone: %w", err)
		}
	}
	rems := reminder.NewService(store, zone, logSvc.Logger().With(logx.String("comp", "reminder")))

	notif := notifier.New(notifierConfig(cfg.Notifier), ad, logSvc.Logger().With(logx.String("comp", "notifier")))
	notif.SetOperatorTarget(cfg.Telegram.OperatorChat, 0)

	dispCfg, err := dispatcherConfig(cfg.Dispatcher)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	disp := dispatcher.New(dispCfg, store, rems, notif, notif,
		logSvc.Logger().With(logx.String("comp", "dispatcher")))

	router := bot.NewRouter(ad, logSvc.Logger().With(logx.String("comp", "commands")), cfg.Telegram.OwnerUserIDs)
	router.Register(bot.Commands(rems)...)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		rems:    rems,
		notif:   notif,
		disp:    disp,
		router:  router,
		updates: make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if a.disp.Enabled() {
		a.disp.Start(a.sup.Context())
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// Telegram /menu sync is cosmetic; failures only log.
	if menu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		a.sup.Go0("menu.update", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := menu.UpdateMenuCommands(mctx, a.router.MenuCommands()); err != nil {
				a.log.Warn("menu update failed", logx.Err(err))
			}
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated hot-reloaded config into the running
// services. Storage and the Telegram token are fixed at startup; changing
// them requires a restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.notif.Apply(notifierConfig(cfg.Notifier))
	a.notif.SetOperatorTarget(cfg.Telegram.OperatorChat, 0)

	// Display timezone changes re-render times; stored instants stay put.
	zone := time.UTC
	if tz := strings.TrimSpace(cfg.Time.DisplayTimezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			// Validator should have caught this; keep the old zone.
			a.log.Warn("invalid display timezone kept out", logx.String("tz", tz), logx.Err(err))
		} else {
			zone = loc
		}
	}
	a.rems.SetDisplayZone(zone)

	prevEnabled := a.disp.Enabled()
	dispCfg, err := dispatcherConfig(cfg.Dispatcher)
	if err != nil {
		a.log.Warn("invalid dispatcher config ignored", logx.Err(err))
	} else {
		a.disp.Apply(dispCfg)
		if prevEnabled && !dispCfg.Enabled {
			a.log.Info("dispatcher disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.disp.Stop(stopCtx)
			cancel()
		} else if !prevEnabled && dispCfg.Enabled {
			a.log.Info("dispatcher enabled via config")
			a.disp.Start(ctx)
		}
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

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
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Order: stop producing triggers, then the chat transport, then wait for
	// the supervised loops, then release storage.
	step("dispatcher", 2*time.Second, func(c context.Context) error { a.disp.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("store", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func storeConfig(s *config.StorageConfig) reminder.StoreConfig {
	if s == nil {
		return reminder.StoreConfig{Driver: "memory"}
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	if err != nil {
		busy = 0
	}
	return reminder.StoreConfig{
		Driver:      s.Driver,
		Path:        s.Path,
		BusyTimeout: busy,
	}
}

func notifierConfig(n *config.NotifierConfig) notifier.Config {
	if n == nil {
		return notifier.Config{}
	}
	return notifier.Config{RatePerSec: n.RatePerSec}
}

func dispatcherConfig(d config.DispatcherConfig) (dispatcher.Config, error) {
	every, err := config.ParseDurationField("dispatcher.poll_interval", d.PollInterval)
	if err != nil {
		return dispatcher.Config{}, err
	}
	return dispatcher.Config{
		Enabled:      d.Enabled,
		PollInterval: every,
		Workers:      d.Workers,
		QueueSize:    d.QueueSize,
	}, nil
}
