// Package orchestrator wires the engine together and supervises the
// periodic drivers: the sector ticker, the discussion lifecycle loop, the
// stall watchdog, and the price simulation. It also exposes the inbound
// control operations.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/comms"
	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/confidence"
	"github.com/ayushsreejith06/sectorflow/internal/discussion"
	"github.com/ayushsreejith06/sectorflow/internal/manager"
	"github.com/ayushsreejith06/sectorflow/internal/market"
	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/store"
	"github.com/ayushsreejith06/sectorflow/internal/ticker"
)

// System modes. Simulation drives the internal price model; realtime
// leaves prices to an external writer.
const (
	ModeSimulation = "simulation"
	ModeRealtime   = "realtime"
)

// System is the top-level supervisor.
type System struct {
	cfg *config.Config
	log zerolog.Logger

	store      *store.Store
	agents     *registry.AgentRegistry
	sectors    *registry.SectorRegistry
	discussion *discussion.Engine
	manager    *manager.Controller
	ticker     *ticker.Ticker
	bus        *comms.Bus
	metricsSrv *metrics.Server

	modeMu sync.RWMutex
	mode   string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

// New builds the full engine from configuration.
func New(cfg *config.Config, log zerolog.Logger) (*System, error) {
	st, err := store.New(cfg.Storage.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var orc oracle.ReasoningOracle = oracle.Disabled{}
	if cfg.Oracle.Enabled {
		orc = oracle.NewClient(oracle.ClientConfig{
			BaseURL:        cfg.Oracle.BaseURL,
			Model:          cfg.Oracle.Model,
			APIKey:         cfg.Oracle.APIKey,
			ResponseFormat: cfg.Oracle.ResponseFormat,
			Timeout:        cfg.Oracle.Timeout,
			MaxRetries:     cfg.Oracle.MaxRetries,
			RequestsPerMin: cfg.Oracle.RequestsPerMin,
		}, log)
	}

	agents := registry.NewAgentRegistry(st, orc, cfg.Engine, log)
	sectors := registry.NewSectorRegistry(st, agents, cfg.Engine, log)
	engine := discussion.NewEngine(st, agents, sectors, orc, cfg.Engine, log)

	bus := comms.NewBus(st, log)
	if cfg.Comms.NATSEnabled {
		if err := bus.ConnectNATS(cfg.Comms.NATSURL); err != nil {
			log.Warn().Err(err).Msg("NATS bridge unavailable, durable comms only")
		}
	}

	mgr := manager.NewController(st, agents, sectors, engine, bus, cfg.Engine, log)
	conf := confidence.NewEngine(nil, log)
	sim := market.NewSimulator(nil, log)
	tick := ticker.NewTicker(st, agents, sectors, conf, sim, mgr, cfg.Engine, log)

	sys := &System{
		cfg:        cfg,
		log:        log.With().Str("component", "orchestrator").Logger(),
		store:      st,
		agents:     agents,
		sectors:    sectors,
		discussion: engine,
		manager:    mgr,
		ticker:     tick,
		bus:        bus,
		mode:       cfg.App.Mode,
	}
	if cfg.Metrics.Enabled {
		sys.metricsSrv = metrics.NewServer(cfg.Metrics.Port, log)
	}
	return sys, nil
}

// Start launches the periodic drivers. Idempotent; a second call is a
// no-op.
func (s *System) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Start(); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.runDriver(runCtx, "sector_ticker", s.cfg.Engine.TickInterval, s.ticker.TickAll)
	s.runDriver(runCtx, "lifecycle", s.cfg.Engine.LifecycleInterval, func(ctx context.Context) {
		s.discussion.Advance(ctx)
		s.manager.ProcessClosed(ctx)
	})
	s.runDriver(runCtx, "watchdog", s.cfg.Engine.WatchdogInterval, s.discussion.SweepStalled)
	s.runDriver(runCtx, "price_tick", s.cfg.Engine.PriceTickInterval, func(ctx context.Context) {
		if s.Mode() == ModeSimulation {
			s.ticker.PriceTick(ctx)
		}
	})

	s.log.Info().
		Dur("tick_interval", s.cfg.Engine.TickInterval).
		Dur("lifecycle_interval", s.cfg.Engine.LifecycleInterval).
		Dur("watchdog_interval", s.cfg.Engine.WatchdogInterval).
		Str("mode", s.Mode()).
		Msg("Orchestrator started")
	return nil
}

// runDriver runs fn at the interval until the context ends. Each driver
// is non-reentrant: an iteration still running when the next tick fires
// makes that tick a no-op instead of overlapping.
func (s *System) runDriver(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var inProgress atomic.Bool
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Debug().Str("driver", name).Msg("Driver stopped")
				return
			case <-t.C:
				if !inProgress.CompareAndSwap(false, true) {
					s.log.Warn().Str("driver", name).Msg("Previous iteration still running, skipping tick")
					continue
				}
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					defer inProgress.Store(false)
					fn(ctx)
				}()
			}
		}
	}()
}

// Stop cancels the drivers, waits for in-flight iterations to finish
// their persistence step, and releases external connections.
func (s *System) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.bus.Close()
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	s.log.Info().Msg("Orchestrator stopped")
}

// Mode returns the current system mode.
func (s *System) Mode() string {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// SetMode switches between simulation and realtime.
func (s *System) SetMode(mode string) error {
	switch mode {
	case ModeSimulation, ModeRealtime:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
	s.log.Info().Str("mode", mode).Msg("System mode changed")
	return nil
}
