package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// SectorPatch lists the mutable sector fields. Nil fields are untouched;
// id and createdAt are immutable.
type SectorPatch struct {
	Name                   *string
	Symbol                 *string
	CurrentPrice           *float64
	Volatility             *float64
	RiskScore              *float64
	Balance                *float64
	Discussion             *string
	NeedsRefinement        *bool
	ActiveRefinementCycles *int
}

// SectorRegistry owns sector CRUD, deposits and execution records.
type SectorRegistry struct {
	store  *store.Store
	agents *AgentRegistry
	cfg    config.EngineConfig
	log    zerolog.Logger
	now    func() time.Time
}

// NewSectorRegistry creates a sector registry. The agent registry is used
// to auto-create a manager agent for new sectors when configured.
func NewSectorRegistry(st *store.Store, agents *AgentRegistry, cfg config.EngineConfig, log zerolog.Logger) *SectorRegistry {
	return &SectorRegistry{
		store:  st,
		agents: agents,
		cfg:    cfg,
		log:    log.With().Str("component", "sector_registry").Logger(),
		now:    time.Now,
	}
}

// Create persists a new sector. Price starts at zero; the simulator seeds
// it on the first price tick. When auto_manager is on, a manager agent is
// created alongside; a manager creation failure is logged but does not
// undo the sector.
func (r *SectorRegistry) Create(ctx context.Context, name, symbol string) (model.Sector, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Sector{}, &model.ValidationError{Field: "name", Reason: "must be nonempty"}
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = model.DefaultSymbol(name)
	}

	now := r.now()
	sector := model.Sector{
		ID:           uuid.NewString(),
		Name:         name,
		Symbol:       symbol,
		Volatility:   0.1,
		Agents:       []string{},
		PriceHistory: []model.PricePoint{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		return append(cur, sector), nil
	})
	if err != nil {
		return model.Sector{}, err
	}

	r.log.Info().Str("sector_id", sector.ID).Str("name", name).Str("symbol", symbol).Msg("Sector created")

	if r.cfg.AutoManager && r.agents != nil {
		if _, err := r.agents.Create(ctx, "Sector manager for "+name, sector.ID, model.RoleManager); err != nil {
			r.log.Warn().Err(err).Str("sector_id", sector.ID).Msg("Auto manager creation failed")
		}
	}
	return sector, nil
}

// Get returns the sector with the given id.
func (r *SectorRegistry) Get(id string) (model.Sector, error) {
	sectors, err := store.Sectors(r.store)
	if err != nil {
		return model.Sector{}, err
	}
	if s := store.FindSector(sectors, id); s != nil {
		return *s, nil
	}
	return model.Sector{}, fmt.Errorf("sector %s: %w", id, model.ErrNotFound)
}

// List returns all sectors.
func (r *SectorRegistry) List() ([]model.Sector, error) {
	return store.Sectors(r.store)
}

// Update applies the patch to the sector. Out-of-range numeric fields are
// rejected with a ValidationError.
func (r *SectorRegistry) Update(id string, patch SectorPatch) (model.Sector, error) {
	if err := validateSectorPatch(patch); err != nil {
		return model.Sector{}, err
	}

	now := r.now()
	var updated model.Sector
	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		s := store.FindSector(cur, id)
		if s == nil {
			return cur, fmt.Errorf("sector %s: %w", id, model.ErrNotFound)
		}
		applySectorPatch(s, patch)
		s.UpdatedAt = now
		updated = *s
		return cur, nil
	})
	if err != nil {
		return model.Sector{}, err
	}
	return updated, nil
}

// Deposit adds funds to the sector balance. This and ApplyExecution are
// the only balance mutations; ticks never touch it.
func (r *SectorRegistry) Deposit(id string, amount float64) (model.Sector, error) {
	if amount <= 0 {
		return model.Sector{}, &model.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	now := r.now()
	var updated model.Sector
	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		s := store.FindSector(cur, id)
		if s == nil {
			return cur, fmt.Errorf("sector %s: %w", id, model.ErrNotFound)
		}
		s.Balance += amount
		s.UpdatedAt = now
		updated = *s
		return cur, nil
	})
	if err != nil {
		return model.Sector{}, err
	}

	r.log.Info().Str("sector_id", id).Float64("amount", amount).Float64("balance", updated.Balance).Msg("Deposit recorded")
	return updated, nil
}

// ApplyExecution records a committed decision against the sector: appends
// an execution log entry and moves the balance (BUY spends, SELL returns,
// HOLD records only).
func (r *SectorRegistry) ApplyExecution(sectorID string, action model.Action, amount float64, results []string) (model.ExecutionLog, error) {
	if amount < 0 {
		return model.ExecutionLog{}, &model.ValidationError{Field: "amount", Reason: "must be non-negative"}
	}

	now := r.now()
	entry := model.ExecutionLog{
		ID:        uuid.NewString(),
		SectorID:  sectorID,
		Action:    action,
		Amount:    amount,
		Timestamp: now,
		Results:   results,
	}

	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		s := store.FindSector(cur, sectorID)
		if s == nil {
			return cur, fmt.Errorf("sector %s: %w", sectorID, model.ErrNotFound)
		}
		switch action {
		case model.ActionBuy:
			if amount > s.Balance {
				return cur, &model.ValidationError{Field: "amount", Reason: "exceeds sector balance"}
			}
			s.Balance -= amount
		case model.ActionSell:
			s.Balance += amount
		}
		s.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return model.ExecutionLog{}, err
	}

	_, err = store.Update(r.store, store.DocExecutionLogs, func(cur []model.ExecutionLog) ([]model.ExecutionLog, error) {
		return append(cur, entry), nil
	})
	if err != nil {
		return model.ExecutionLog{}, err
	}

	r.log.Info().
		Str("sector_id", sectorID).
		Str("action", string(action)).
		Float64("amount", amount).
		Msg("Execution recorded")
	return entry, nil
}

// SetDiscussion points the sector at its current open discussion; empty
// clears it.
func (r *SectorRegistry) SetDiscussion(sectorID, discussionID string) error {
	now := r.now()
	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		s := store.FindSector(cur, sectorID)
		if s == nil {
			return cur, fmt.Errorf("sector %s: %w", sectorID, model.ErrNotFound)
		}
		s.Discussion = discussionID
		s.UpdatedAt = now
		return cur, nil
	})
	return err
}

func validateSectorPatch(patch SectorPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return &model.ValidationError{Field: "name", Reason: "must be nonempty"}
	}
	if patch.CurrentPrice != nil && *patch.CurrentPrice < 0.01 {
		return &model.ValidationError{Field: "currentPrice", Reason: "must be at least 0.01"}
	}
	if patch.Volatility != nil && (*patch.Volatility < 0 || *patch.Volatility > 1) {
		return &model.ValidationError{Field: "volatility", Reason: "must be in [0,1]"}
	}
	if patch.RiskScore != nil && (*patch.RiskScore < 0 || *patch.RiskScore > 100) {
		return &model.ValidationError{Field: "riskScore", Reason: "must be in [0,100]"}
	}
	if patch.Balance != nil && *patch.Balance < 0 {
		return &model.ValidationError{Field: "balance", Reason: "must be non-negative"}
	}
	return nil
}

func applySectorPatch(s *model.Sector, patch SectorPatch) {
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Symbol != nil {
		s.Symbol = strings.ToUpper(strings.TrimSpace(*patch.Symbol))
	}
	if patch.CurrentPrice != nil {
		s.CurrentPrice = *patch.CurrentPrice
	}
	if patch.Volatility != nil {
		s.Volatility = *patch.Volatility
	}
	if patch.RiskScore != nil {
		s.RiskScore = *patch.RiskScore
	}
	if patch.Balance != nil {
		s.Balance = *patch.Balance
	}
	if patch.Discussion != nil {
		s.Discussion = *patch.Discussion
	}
	if patch.NeedsRefinement != nil {
		s.NeedsRefinement = *patch.NeedsRefinement
	}
	if patch.ActiveRefinementCycles != nil {
		s.ActiveRefinementCycles = *patch.ActiveRefinementCycles
	}
}
