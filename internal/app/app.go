// Package app wires the daemon together: config, logging, transport,
// scheduler, notifications, history.
package app

import (
	"context"
	"sync"
	"time"

	"promptpilot/internal/autopilot"
	"promptpilot/internal/config"
	"promptpilot/internal/eventbus"
	"promptpilot/internal/notify"
	"promptpilot/internal/storage"
	cdp "promptpilot/internal/transport/cdp"
	logx "promptpilot/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	client *cdp.Client
	pilot  *autopilot.Service
	notif  *notify.Service

	pollEvery time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
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

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled := mapStorageConfig(cfg); enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("run history enabled", logx.String("driver", sc.Driver))
	}

	tcfg, pollEvery, err := mapTransportConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := cdp.New(tcfg, log.With(logx.String("comp", "transport")))

	pcfg, err := mapAutopilotConfig(cfg)
	if err != nil {
		return nil, err
	}
	pilot := autopilot.New(pcfg, client, log.With(logx.String("comp", "autopilot")), bus)

	notif := notify.New(mapNotifyConfig(cfg), log.With(logx.String("comp", "notify")), bus)

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		client:    client,
		pilot:     pilot,
		notif:     notif,
		pollEvery: pollEvery,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		// Mapping failures must reject the reload, not surface mid-apply.
		if _, _, err := mapTransportConfig(cfg); err != nil {
			return err
		}
		_, err := mapAutopilotConfig(cfg)
		return err
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()

	// The app target may not be up yet; the poll loop keeps trying.
	if err := a.client.Start(runCtx); err != nil {
		a.log.Warn("automation endpoint not reachable yet", logx.Err(err))
	}
	a.wg.Add(1)
	go a.pollLoop(runCtx)

	if a.notif.Enabled() {
		a.notif.Start(runCtx)
	}

	if a.store != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			recordHistory(runCtx, a.store, a.bus, a.log.With(logx.String("comp", "history")))
		}()
	}

	a.wg.Add(1)
	go a.reloadLoop(runCtx)

	if a.pilot.Enabled() {
		if err := a.pilot.Start(runCtx); err != nil {
			a.log.Warn("autopilot did not start", logx.Err(err))
		}
	} else {
		a.log.Info("autopilot disabled; waiting for config")
	}
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.pilot.Stop(ctx)
	a.notif.Stop(ctx)
	a.client.Stop()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	return a.logs.Close()
}

// Status is the operator diagnostics snapshot.
type Status struct {
	Transport bool
	Autopilot autopilot.Status
	BusDrops  uint64
}

func (a *App) Status(ctx context.Context) Status {
	return Status{
		Transport: a.client.IsAvailable(ctx),
		Autopilot: a.pilot.Status(),
		BusDrops:  a.bus.Drops(),
	}
}

// LogStatus writes the diagnostics snapshot to the log, for signal-driven
// inspection of a running daemon.
func (a *App) LogStatus(ctx context.Context) {
	st := a.Status(ctx)
	ap := st.Autopilot
	a.log.Info("status",
		logx.Bool("transport_up", st.Transport),
		logx.Bool("running", ap.Running),
		logx.Bool("paused", ap.Paused),
		logx.String("mode", string(ap.Mode)),
		logx.Int("queue_index", ap.QueueIndex),
		logx.Int("queue_length", ap.QueueLength),
		logx.Int("attempts", ap.Attempts),
		logx.Duration("silence_for", ap.SilenceFor),
		logx.Bool("interval_active", ap.IntervalActive),
		logx.Uint64("bus_drops", st.BusDrops),
	)
}

// pollLoop is the transport keepalive: reconnect when the app restarts,
// reinstall the page monitor when the chat page reloads.
func (a *App) pollLoop(ctx context.Context) {
	defer a.wg.Done()
	every := a.pollEvery
	if every <= 0 {
		every = 15 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.client.Poll(ctx); err != nil {
				a.log.Debug("transport poll", logx.Err(err))
			}
		}
	}
}

// reloadLoop applies config hot reloads, coalescing bursts to the newest
// snapshot.
func (a *App) reloadLoop(ctx context.Context) {
	defer a.wg.Done()
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyReload(ctx, cfg)
		}
	}
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.log.Info("applying config reload")

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	prevEnabled := a.pilot.Enabled()
	pcfg, err := mapAutopilotConfig(cfg)
	if err != nil {
		// The validator rejects these before commit; seeing one here means
		// the snapshot predates the validator.
		a.log.Warn("invalid autopilot config; keeping previous", logx.Err(err))
	} else {
		a.pilot.Apply(pcfg)
		switch {
		case prevEnabled && !pcfg.Enabled:
			a.log.Info("autopilot disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.pilot.Stop(stopCtx)
			cancel()
		case !prevEnabled && pcfg.Enabled:
			a.log.Info("autopilot enabled via config")
			if err := a.pilot.Start(ctx); err != nil {
				a.log.Warn("autopilot did not start", logx.Err(err))
			}
		}
	}

	prevNotif := a.notif.Enabled()
	ncfg := mapNotifyConfig(cfg)
	a.notif.Apply(ncfg)
	switch {
	case prevNotif && !ncfg.Enabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !prevNotif && ncfg.Enabled:
		a.notif.Start(ctx)
	}

	if _, enabled := mapStorageConfig(cfg); enabled != (a.store != nil) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
}
