// Package core wires the daemon together: config manager, logger, services
// and the restart orchestrator, plus the tick loop that drives them.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"shutdownd/internal/config"
	"shutdownd/internal/host"
	"shutdownd/internal/restart"
	"shutdownd/internal/services/broadcast"
	"shutdownd/internal/services/events"
	"shutdownd/internal/storage"
	"shutdownd/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log logx.Logger

	bcast  *broadcast.Service
	events *events.Service
	world  *host.World
	store  storage.Store
	orch   *restart.Orchestrator

	tickInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	tick, err := cfg.TickDuration()
	if err != nil {
		return nil, err
	}

	bcast := broadcast.New(broadcast.Config{
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, log.With(logx.String("comp", "broadcast")))

	evts := events.New(mapEvents(cfg.Events), log.With(logx.String("comp", "events")))

	world := host.New(bcast, log.With(logx.String("comp", "host")))

	store, err := storage.Open(cfg.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	orch := restart.New(restart.Deps{
		Broadcast: bcast,
		Events:    evts,
		Host:      world,
		History:   store,
	}, log.With(logx.String("comp", "restart")))

	return &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log.With(logx.String("comp", "app")),
		bcast:        bcast,
		events:       evts,
		world:        world,
		store:        store,
		orch:         orch,
		tickInterval: tick,
	}, nil
}

// Broadcaster exposes the session registry so transports can attach.
func (a *App) Broadcaster() *broadcast.Service { return a.bcast }

// Run starts the services and blocks in the tick loop until ctx is
// cancelled. Config reloads are applied on the tick goroutine, so
// Initialize never races a Tick.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.bcast.Start(ctx)
	a.events.Start(ctx)

	// console session: server notices always reach the local operator
	a.bcast.Attach(consoleSession{log: a.log.With(logx.String("comp", "notice"))})

	updates := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(ctx)
	}()

	a.orch.Initialize(a.cfgm.Get().Shutdown)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("shutdownd running", logx.Duration("tick", a.tickInterval))

	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			if cfg == nil {
				continue
			}
			a.log.Info("applying reloaded config")
			a.bcast.Apply(broadcast.Config{RatePerSec: cfg.Broadcast.RatePerSec})
			a.events.Apply(mapEvents(cfg.Events))
			a.orch.Initialize(cfg.Shutdown)
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			a.orch.Tick(elapsed)
			a.world.Update(elapsed)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.events.Stop(ctx)
	a.bcast.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("shutdownd stopped")
	return a.log.Close()
}

func mapEvents(cfg config.EventsConfig) events.Config {
	out := events.Config{Timezone: cfg.Timezone}
	for _, d := range cfg.Defs {
		out.Defs = append(out.Defs, events.Def{
			ID:          d.ID,
			Description: d.Description,
			Schedule:    d.Schedule,
		})
	}
	return out
}

// consoleSession mirrors broadcast notices into the process log.
type consoleSession struct {
	log logx.Logger
}

func (c consoleSession) Send(message string) error {
	c.log.Info(message)
	return nil
}
