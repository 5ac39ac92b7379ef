// Package manager holds the per-sector policy around discussions: when to
// open one, what to do with a committed decision, and the cross-sector
// mailbox of the sector's manager agent.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/comms"
	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/discussion"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// decisionAnnouncement is the payload managers broadcast after execution.
type decisionAnnouncement struct {
	SectorID     string       `json:"sectorId"`
	DiscussionID string       `json:"discussionId"`
	Action       model.Action `json:"action"`
	Confidence   float64      `json:"confidence"`
	Amount       float64      `json:"amount"`
}

// Controller owns discussion-opening policy and decision follow-through
// for all sectors.
type Controller struct {
	store   *store.Store
	agents  *registry.AgentRegistry
	sectors *registry.SectorRegistry
	engine  *discussion.Engine
	bus     *comms.Bus
	cfg     config.EngineConfig
	log     zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	lastOpened map[string]time.Time
}

// NewController creates a manager controller.
func NewController(st *store.Store, agents *registry.AgentRegistry, sectors *registry.SectorRegistry, engine *discussion.Engine, bus *comms.Bus, cfg config.EngineConfig, log zerolog.Logger) *Controller {
	return &Controller{
		store:      st,
		agents:     agents,
		sectors:    sectors,
		engine:     engine,
		bus:        bus,
		cfg:        cfg,
		log:        log.With().Str("component", "manager").Logger(),
		now:        time.Now,
		lastOpened: make(map[string]time.Time),
	}
}

// MaybeOpen opens a discussion for the sector when readiness holds, or
// when the sector is funded and nothing was opened within the debounce
// window. An existing non-terminal discussion suppresses creation either
// way. Returns the room when one was opened or already existed.
func (c *Controller) MaybeOpen(ctx context.Context, sector model.Sector, ready bool) (*model.DiscussionRoom, error) {
	now := c.now()

	if !ready {
		c.mu.Lock()
		last, seen := c.lastOpened[sector.ID]
		c.mu.Unlock()
		if sector.Balance <= 0 || (seen && now.Sub(last) < c.cfg.DebounceWindow) {
			return nil, nil
		}
	}

	title := fmt.Sprintf("%s deliberation %s", sector.Name, now.Format(time.RFC3339))
	room, err := c.engine.Start(ctx, sector.ID, title, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastOpened[sector.ID] = now
	c.mu.Unlock()
	return &room, nil
}

// ForceResolve closes the discussion immediately, producing a decision
// first if needed.
func (c *Controller) ForceResolve(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	return c.engine.Close(ctx, discussionID, "forced")
}

// ProcessClosed follows through on closed decisions that have not been
// executed yet: applies the allocation against the sector balance,
// records the execution log, and announces the outcome on the comms bus.
// Execution logs are keyed by discussion id so the pass is idempotent.
func (c *Controller) ProcessClosed(ctx context.Context) {
	rooms, err := c.engine.List()
	if err != nil {
		c.log.Error().Err(err).Msg("Decision pass could not load discussions")
		return
	}
	logs, err := store.ExecutionLogs(c.store)
	if err != nil {
		c.log.Error().Err(err).Msg("Decision pass could not load execution logs")
		return
	}

	executed := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		if l.ChecklistID != "" {
			executed[l.ChecklistID] = struct{}{}
		}
	}

	for _, room := range rooms {
		if room.Status != model.DiscussionClosed && room.Status != model.DiscussionArchived {
			continue
		}
		if room.FinalDecision == nil {
			continue
		}
		if _, done := executed[room.ID]; done {
			continue
		}
		if err := c.execute(room); err != nil {
			c.log.Warn().Err(err).Str("discussion_id", room.ID).Msg("Decision execution failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Controller) execute(room model.DiscussionRoom) error {
	decision := *room.FinalDecision

	sector, err := c.sectors.Get(room.SectorID)
	if err != nil {
		return err
	}

	// Allocation picks the trade size from the selected agent's signal,
	// bounded by what the sector can actually spend.
	allocation := allocationFor(room, decision)
	amount := sector.Balance * allocation / 100
	if decision.Action == model.ActionHold {
		amount = 0
	}

	entry := model.ExecutionLog{}
	if amount > 0 || decision.Action == model.ActionHold {
		entry, err = c.applyExecution(room, decision, amount)
		if err != nil {
			return err
		}
	}

	managerID := c.managerID(room.SectorID)
	payload, _ := json.Marshal(decisionAnnouncement{
		SectorID:     room.SectorID,
		DiscussionID: room.ID,
		Action:       decision.Action,
		Confidence:   decision.Confidence,
		Amount:       amount,
	})
	if _, err := c.bus.Publish(managerID, model.BroadcastRecipient, "decision", payload); err != nil {
		c.log.Warn().Err(err).Str("discussion_id", room.ID).Msg("Decision announcement failed")
	}

	if managerID != "" {
		content := fmt.Sprintf("Executed %s for %.2f on discussion %s", decision.Action, amount, room.ID)
		if err := c.agents.Remember(managerID, "execution", content); err != nil {
			c.log.Warn().Err(err).Str("agent_id", managerID).Msg("Manager memory write failed")
		}
	}

	c.log.Info().
		Str("discussion_id", room.ID).
		Str("sector_id", room.SectorID).
		Str("action", string(decision.Action)).
		Float64("amount", amount).
		Str("execution_id", entry.ID).
		Msg("Decision executed")
	return nil
}

func (c *Controller) applyExecution(room model.DiscussionRoom, decision model.DiscussionDecision, amount float64) (model.ExecutionLog, error) {
	entry, err := c.sectors.ApplyExecution(room.SectorID, decision.Action, amount,
		[]string{fmt.Sprintf("decision confidence %.2f", decision.Confidence)})
	if err != nil {
		return model.ExecutionLog{}, err
	}

	// Stamp the discussion id so ProcessClosed can tell this room is done.
	_, err = store.Update(c.store, store.DocExecutionLogs, func(cur []model.ExecutionLog) ([]model.ExecutionLog, error) {
		for i := range cur {
			if cur[i].ID == entry.ID {
				cur[i].ChecklistID = room.ID
			}
		}
		return cur, nil
	})
	return entry, err
}

// allocationFor picks the allocation percent from the selected agent's
// final-round signal, defaulting to the decision confidence scaled to a
// conservative percent when no signal is on file.
func allocationFor(room model.DiscussionRoom, decision model.DiscussionDecision) float64 {
	if n := len(room.RoundHistory); n > 0 {
		for _, sig := range room.RoundHistory[n-1].Signals {
			if sig.AgentID == decision.SelectedAgent {
				return model.ClampPercent(sig.AllocationPercent)
			}
		}
	}
	for _, m := range room.Messages {
		if m.Proposal != nil && m.AgentID == decision.SelectedAgent {
			return model.ClampPercent(m.Proposal.AllocationPercent)
		}
	}
	return model.ClampPercent(decision.Confidence * 20)
}

// managerID returns the sector's manager agent id, or empty.
func (c *Controller) managerID(sectorID string) string {
	members, err := c.agents.ListBySector(sectorID)
	if err != nil {
		return ""
	}
	for _, a := range members {
		if a.IsManager() {
			return a.ID
		}
	}
	return ""
}

// DrainMailbox consumes the pending cross-sector messages for the
// sector's manager, recording each in the manager's memory.
func (c *Controller) DrainMailbox(sectorID string) ([]model.CrossSectorMessage, error) {
	managerID := c.managerID(sectorID)
	if managerID == "" {
		return nil, nil
	}
	msgs, err := c.bus.Drain(managerID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		content := fmt.Sprintf("Received %s from %s", m.Type, m.From)
		if err := c.agents.Remember(managerID, "comms", content); err != nil {
			c.log.Warn().Err(err).Str("agent_id", managerID).Msg("Mailbox memory write failed")
			break
		}
	}
	return msgs, nil
}
