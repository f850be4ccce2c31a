package app

import (
	"context"
	"os"
	"time"

	"congratbot/internal/config"
	"congratbot/internal/content"
	"congratbot/internal/runtime/supervisor"
	"congratbot/internal/sender"
	"congratbot/internal/storage"
	"congratbot/internal/transport/telegram"
	logx "congratbot/pkg/logx"
)

// App wires config, logging, the Telegram adapter, the content provider, the
// optional history store, and the sender core into one start/stop unit.
type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	logs *logx.Service
	log  logx.Logger

	sup *supervisor.Supervisor

	adapter  *telegram.Adapter
	provider *content.HTTPProvider
	store    storage.Store
	pruner   *storage.Pruner
	snd      *sender.Service

	// lastCfg backs config-change summaries on reload.
	lastCfg *config.Config
	cfgCh   chan *config.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgPath: cfgPath, cfgm: cfgm, logs: logs, log: log, lastCfg: cfg}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	// Env wins over the config file so the token can stay out of it.
	token := cfg.Telegram.Token
	if v := os.Getenv("CONGRATBOT_TOKEN"); v != "" {
		token = v
	}
	a.adapter, err = telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	reqTimeout, err := config.ParseDurationOrDefault("content.request_timeout", cfg.Content.RequestTimeout, 8*time.Second)
	if err != nil {
		return nil, err
	}
	a.provider, err = content.NewHTTP(content.Config{
		BaseURL:        cfg.Content.BaseURL,
		RequestTimeout: reqTimeout,
	}, log.With(logx.String("comp", "content")))
	if err != nil {
		return nil, err
	}

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		retention := time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour
		storeLog := log.With(logx.String("comp", "storage"))
		a.store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
			Retention:   retention,
		}, storeLog)
		if err != nil {
			return nil, err
		}
		if a.store != nil {
			a.pruner = storage.NewPruner(a.store, cfg.Storage.PruneSchedule, retention, storeLog)
		}
	}

	senderCfg, err := senderConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	var recorder sender.DispatchRecorder
	if a.store != nil {
		recorder = a.store
	}
	a.snd = sender.New(
		senderCfg,
		a.adapter,
		a.provider,
		parseDelay,
		recorder,
		log.With(logx.String("comp", "sender")),
	)

	return a, nil
}

// parseDelay is the DelayParser wired into the registry: plain Go duration
// strings ("15m", "2h").
func parseDelay(raw string) (time.Duration, error) {
	return config.ParseDurationField("sender.repeat_delay", raw)
}

func senderConfigFrom(cfg *config.Config) (sender.Config, error) {
	interval, err := config.ParseDurationOrDefault("sender.check_interval", cfg.Sender.CheckInterval, time.Second)
	if err != nil {
		return sender.Config{}, err
	}
	return sender.Config{
		CheckInterval:      interval,
		DefaultRepeatDelay: cfg.Sender.DefaultRepeatDelay,
		PollingQueueSize:   cfg.Sender.PollingQueueSize,
		GenerateQueueSize:  cfg.Sender.GenerateQueueSize,
	}, nil
}

// Sender exposes the command intake for the front end feeding the queues.
func (a *App) Sender() *sender.Service { return a.snd }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.cfgCh = a.cfgm.Subscribe(4)
	a.sup.Go0("config.apply", a.applyLoop)

	if a.pruner != nil {
		if err := a.pruner.Start(); err != nil {
			return err
		}
	}
	if err := a.snd.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.GoEvery("stats", time.Minute, func(ctx context.Context) error {
		poll, gen := a.snd.Backlog()
		attrs := []logx.Field{
			logx.Int("active_jobs", a.snd.ActiveJobs()),
			logx.Int("polling_backlog", poll),
			logx.Int("generate_backlog", gen),
			logx.Int64("goroutines", a.sup.Counters().Active),
		}
		if a.store != nil {
			if last, err := a.store.RecentDispatches(ctx, 0, 1); err == nil && len(last) == 1 {
				attrs = append(attrs,
					logx.Time("last_dispatch", last[0].At),
					logx.Int64("last_dispatch_chat", last[0].ChatID),
				)
			}
		}
		a.log.Debug("sender stats", attrs...)
		return nil
	})

	a.log.Info("congratbot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	// Order: stop the core first (no dispatch after this returns), then the
	// periphery, then the shared runtime.
	if err := a.snd.Stop(ctx); err != nil {
		a.log.Warn("sender stop", logx.Err(err))
	}
	if a.pruner != nil {
		a.pruner.Stop(ctx)
	}
	_ = a.adapter.Stop(ctx)

	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}
	if a.store != nil {
		_ = a.store.Close()
	}

	a.log.Info("congratbot stopped")
	_ = a.logs.Close()
	return nil
}

func (a *App) applyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

// applyConfig handles hot-reloadable settings: log level/sinks and the sender
// cycle cadence. Everything else (token, storage driver) needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(a.lastCfg, cfg)
	a.lastCfg = cfg
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append(attrs, logx.Any("changed", changed))...)

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if senderCfg, err := senderConfigFrom(cfg); err == nil {
		a.snd.Apply(senderCfg)
	} else {
		a.log.Warn("sender config rejected", logx.Err(err))
	}
}
