// Package ticker drives the periodic per-sector work: confidence drift
// and discussion readiness on the orchestration tick, price simulation on
// the slower price tick.
package ticker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ayushsreejith06/sectorflow/internal/confidence"
	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/manager"
	"github.com/ayushsreejith06/sectorflow/internal/market"
	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// maxParallelSectors bounds concurrent per-sector work within one tick.
// Work for a single sector stays serialized.
const maxParallelSectors = 4

// executionDriftWindow is how far back the price model looks for a
// committed action to derive manager impact.
const executionDriftWindow = 10 * time.Minute

// maxPriceSamples bounds the global priceHistory document.
const maxPriceSamples = 5000

// TickResult is what a single sector tick produced.
type TickResult struct {
	Sector          model.Sector
	DiscussionReady bool
}

// Ticker runs the periodic sector updates.
type Ticker struct {
	store      *store.Store
	agents     *registry.AgentRegistry
	sectors    *registry.SectorRegistry
	confidence *confidence.Engine
	simulator  *market.Simulator
	manager    *manager.Controller
	cfg        config.EngineConfig
	metrics    *metrics.Set
	log        zerolog.Logger
	now        func() time.Time
}

// NewTicker creates a sector ticker.
func NewTicker(st *store.Store, agents *registry.AgentRegistry, sectors *registry.SectorRegistry, conf *confidence.Engine, sim *market.Simulator, mgr *manager.Controller, cfg config.EngineConfig, log zerolog.Logger) *Ticker {
	return &Ticker{
		store:      st,
		agents:     agents,
		sectors:    sectors,
		confidence: conf,
		simulator:  sim,
		manager:    mgr,
		cfg:        cfg,
		metrics:    metrics.Default(),
		log:        log.With().Str("component", "ticker").Logger(),
		now:        time.Now,
	}
}

// TickAll runs one orchestration tick over every sector. Distinct sectors
// proceed in parallel; a failure in one is logged and does not abort the
// others.
func (t *Ticker) TickAll(ctx context.Context) {
	start := t.now()
	sectors, err := t.sectors.List()
	if err != nil {
		t.metrics.TickErrors.Inc()
		t.log.Error().Err(err).Msg("Tick could not load sectors")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSectors)
	for _, sector := range sectors {
		g.Go(func() error {
			if _, err := t.TickSector(gctx, sector.ID); err != nil {
				t.metrics.TickErrors.Inc()
				t.log.Warn().Err(err).Str("sector_id", sector.ID).Msg("Sector tick failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	t.metrics.TicksTotal.Inc()
	t.metrics.TickDuration.Observe(t.now().Sub(start).Seconds())
}

// TickSector runs one orchestration tick for a single sector: recompute
// every member's confidence, evaluate readiness, and hand the sector to
// the manager controller, which decides whether a discussion opens.
func (t *Ticker) TickSector(ctx context.Context, sectorID string) (TickResult, error) {
	sector, err := t.sectors.Get(sectorID)
	if err != nil {
		return TickResult{}, err
	}

	// The agents document, not the sector mirror, is authoritative for
	// membership.
	members, err := t.agents.ListBySector(sectorID)
	if err != nil {
		return TickResult{}, err
	}

	now := t.now()
	updates := make(map[string]float64, len(members))
	for _, a := range members {
		updates[a.ID] = t.confidence.Tick(a)
	}
	if len(updates) > 0 {
		if _, err := t.agents.ApplyConfidences(updates, now); err != nil {
			return TickResult{}, err
		}
	}

	nonManagers := 0
	for _, a := range members {
		if a.IsManager() {
			continue
		}
		nonManagers++
		if updates[a.ID] < t.cfg.ReadinessThreshold {
			nonManagers = -1
			break
		}
	}
	ready := nonManagers > 0

	if t.manager != nil {
		if _, err := t.manager.MaybeOpen(ctx, sector, ready); err != nil {
			t.log.Warn().Err(err).Str("sector_id", sectorID).Msg("Discussion open attempt failed")
		}
		if _, err := t.manager.DrainMailbox(sectorID); err != nil {
			t.log.Warn().Err(err).Str("sector_id", sectorID).Msg("Mailbox drain failed")
		}
	}

	sector, err = t.sectors.Get(sectorID)
	if err != nil {
		return TickResult{}, err
	}
	return TickResult{Sector: sector, DiscussionReady: ready}, nil
}

// PriceTick advances every sector's price by one simulation step and
// appends the samples to the global price history.
func (t *Ticker) PriceTick(ctx context.Context) {
	sectors, err := t.sectors.List()
	if err != nil {
		t.metrics.TickErrors.Inc()
		t.log.Error().Err(err).Msg("Price tick could not load sectors")
		return
	}

	logs, err := store.ExecutionLogs(t.store)
	if err != nil {
		t.metrics.TickErrors.Inc()
		t.log.Error().Err(err).Msg("Price tick could not load execution logs")
		return
	}

	now := t.now()
	var samples []model.PriceSample
	for _, sector := range sectors {
		update := t.simulator.Advance(sector, managerImpact(logs, sector.ID, now), now)
		samples = append(samples, update.Sample)

		_, err := store.Update(t.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
			s := store.FindSector(cur, sector.ID)
			if s == nil {
				return cur, nil
			}
			s.CurrentPrice = update.Price
			s.Volatility = update.Volatility
			s.RiskScore = update.RiskScore
			s.RecordPrice(update.Price, now)
			s.UpdatedAt = now
			return cur, nil
		})
		if err != nil {
			t.metrics.TickErrors.Inc()
			t.log.Warn().Err(err).Str("sector_id", sector.ID).Msg("Price persist failed")
		}
		if ctx.Err() != nil {
			return
		}
	}

	if len(samples) > 0 {
		_, err := store.Update(t.store, store.DocPriceHistory, func(cur []model.PriceSample) ([]model.PriceSample, error) {
			cur = append(cur, samples...)
			if n := len(cur); n > maxPriceSamples {
				cur = cur[n-maxPriceSamples:]
			}
			return cur, nil
		})
		if err != nil {
			t.log.Warn().Err(err).Msg("Price history persist failed")
		}
	}
}

// managerImpact derives the price drift direction from the sector's most
// recent committed action inside the drift window.
func managerImpact(logs []model.ExecutionLog, sectorID string, now time.Time) int {
	var latest *model.ExecutionLog
	for i := range logs {
		l := &logs[i]
		if l.SectorID != sectorID || now.Sub(l.Timestamp) > executionDriftWindow {
			continue
		}
		if latest == nil || l.Timestamp.After(latest.Timestamp) {
			latest = l
		}
	}
	if latest == nil {
		return 0
	}
	switch latest.Action {
	case model.ActionBuy:
		return 1
	case model.ActionSell:
		return -1
	default:
		return 0
	}
}
