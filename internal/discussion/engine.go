// Package discussion owns the deliberation room state machine: argument
// collection rounds, decision production via the voting engine, closing,
// archival, and the stall watchdog. Rooms only ever move forward through
// CREATED, IN_PROGRESS, DECIDED, CLOSED, ARCHIVED.
package discussion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/confidence"
	"github.com/ayushsreejith06/sectorflow/internal/market"
	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/store"
	"github.com/ayushsreejith06/sectorflow/internal/voting"
)

// Morale deltas applied after a decision.
const (
	moraleSelected = 2
	moraleAligned  = 1
	moraleOpposed  = -1
)

// Engine drives discussion rooms through their lifecycle.
type Engine struct {
	store   *store.Store
	agents  *registry.AgentRegistry
	sectors *registry.SectorRegistry
	oracle  oracle.ReasoningOracle
	votes   *voting.Engine
	cfg     config.EngineConfig
	metrics *metrics.Set
	log     zerolog.Logger
	now     func() time.Time
}

// NewEngine creates a discussion engine.
func NewEngine(st *store.Store, agents *registry.AgentRegistry, sectors *registry.SectorRegistry, orc oracle.ReasoningOracle, cfg config.EngineConfig, log zerolog.Logger) *Engine {
	return &Engine{
		store:   st,
		agents:  agents,
		sectors: sectors,
		oracle:  orc,
		votes:   voting.NewEngine(cfg.ConflictThreshold, log),
		cfg:     cfg,
		metrics: metrics.Default(),
		log:     log.With().Str("component", "discussion").Logger(),
		now:     time.Now,
	}
}

// Get returns the room with the given id.
func (e *Engine) Get(id string) (model.DiscussionRoom, error) {
	rooms, err := store.Discussions(e.store)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	if d := store.FindDiscussion(rooms, id); d != nil {
		return *d, nil
	}
	return model.DiscussionRoom{}, fmt.Errorf("discussion %s: %w", id, model.ErrNotFound)
}

// List returns all rooms.
func (e *Engine) List() ([]model.DiscussionRoom, error) {
	return store.Discussions(e.store)
}

// Start opens a discussion for the sector and immediately runs up to
// MaxRounds argument-collection rounds. A sector with an existing open
// discussion gets that room back instead of a new one; closed and
// archived rooms do not suppress creation. When agentIDs is empty, all
// non-manager members of the sector participate.
func (e *Engine) Start(ctx context.Context, sectorID, title string, agentIDs []string) (model.DiscussionRoom, error) {
	if _, err := e.sectors.Get(sectorID); err != nil {
		return model.DiscussionRoom{}, err
	}

	rooms, err := store.Discussions(e.store)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	for _, d := range rooms {
		if d.SectorID == sectorID && d.Status.IsOpen() {
			return d, nil
		}
	}

	if len(agentIDs) == 0 {
		members, err := e.agents.ListBySector(sectorID)
		if err != nil {
			return model.DiscussionRoom{}, err
		}
		for _, a := range members {
			if !a.IsManager() {
				agentIDs = append(agentIDs, a.ID)
			}
		}
	}

	now := e.now()
	room := model.DiscussionRoom{
		ID:           uuid.NewString(),
		SectorID:     sectorID,
		Title:        title,
		AgentIDs:     agentIDs,
		Messages:     []model.Message{},
		Status:       model.DiscussionCreated,
		CurrentRound: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		for _, d := range cur {
			if d.SectorID == sectorID && d.Status.IsOpen() {
				room = d
				return cur, nil
			}
		}
		return append(cur, room), nil
	})
	if err != nil {
		return model.DiscussionRoom{}, err
	}

	if err := e.sectors.SetDiscussion(sectorID, room.ID); err != nil {
		return model.DiscussionRoom{}, err
	}

	e.metrics.DiscussionsOpened.Inc()
	e.publishOpenGauge()
	e.log.Info().
		Str("discussion_id", room.ID).
		Str("sector_id", sectorID).
		Int("participants", len(room.AgentIDs)).
		Msg("Discussion started")

	for round := 0; round < e.cfg.MaxRounds; round++ {
		updated, cerr := e.CollectArguments(ctx, room.ID)
		if cerr != nil {
			e.log.Warn().Err(cerr).Str("discussion_id", room.ID).Msg("Argument round failed")
			break
		}
		room = updated
	}
	return room, nil
}

// CollectArguments runs one argument round: every participant produces a
// signal (oracle first, deterministic fallback on any failure), a message
// per participant is appended, and the round is snapshotted. The first
// recorded message moves the room to IN_PROGRESS.
func (e *Engine) CollectArguments(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	room, err := e.Get(discussionID)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	if room.Status != model.DiscussionCreated && room.Status != model.DiscussionInProgress {
		return model.DiscussionRoom{}, &model.IllegalTransitionError{From: room.Status, To: model.DiscussionInProgress}
	}

	sector, err := e.sectors.Get(room.SectorID)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	mkt := marketContext(sector)

	prior := priorArguments(room)
	roundStart := e.now()
	var msgs []model.Message
	var signals []model.AgentSignal

	for _, agentID := range room.AgentIDs {
		agent, aerr := e.agents.Get(agentID)
		if aerr != nil {
			e.log.Warn().Str("agent_id", agentID).Msg("Participant missing, skipping")
			continue
		}

		sig := e.agentSignal(ctx, agent, mkt, room.CurrentRound, prior)
		if sig.Symbol == "" {
			sig.Symbol = sector.Symbol
		}
		now := e.now()
		msgs = append(msgs, model.Message{
			ID:           uuid.NewString(),
			DiscussionID: room.ID,
			AgentID:      agent.ID,
			AgentName:    agent.Name,
			Role:         agent.Role,
			Content:      sig.Reasoning,
			Timestamp:    now,
			Proposal: &model.Proposal{
				Action:            sig.Action,
				Symbol:            sig.Symbol,
				AllocationPercent: sig.AllocationPercent,
				Confidence:        sig.Confidence,
			},
		})
		signals = append(signals, sig)
		prior = append(prior, sig.Reasoning)
	}

	now := e.now()
	var updated model.DiscussionRoom
	_, err = store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		d := store.FindDiscussion(cur, discussionID)
		if d == nil {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		if d.Status == model.DiscussionCreated && len(msgs) > 0 {
			if terr := d.Transition(model.DiscussionInProgress, now); terr != nil {
				return cur, terr
			}
		}
		if d.Status != model.DiscussionInProgress {
			return cur, &model.IllegalTransitionError{From: d.Status, To: model.DiscussionInProgress}
		}

		snapshot := model.RoundSnapshot{
			Round:     d.CurrentRound,
			Signals:   signals,
			StartedAt: roundStart,
			EndedAt:   now,
		}
		for _, m := range msgs {
			d.AppendMessage(m)
			snapshot.MessageIDs = append(snapshot.MessageIDs, m.ID)
		}
		d.RoundHistory = append(d.RoundHistory, snapshot)
		if d.CurrentRound < e.cfg.MaxRounds {
			d.CurrentRound++
		}
		d.UpdatedAt = now
		updated = *d
		return cur, nil
	})
	if err != nil {
		return model.DiscussionRoom{}, err
	}

	e.log.Debug().
		Str("discussion_id", discussionID).
		Int("round", updated.CurrentRound).
		Int("messages", len(msgs)).
		Msg("Arguments collected")
	return updated, nil
}

// ProduceDecision commits a decision for the room: collects arguments if
// none are recorded, enriches signals with win rates, runs the vote, and
// adjusts agent confidence and morale from the outcome. Calling it on a
// DECIDED room is a no-op; closed and archived rooms reject with an
// IllegalTransitionError.
func (e *Engine) ProduceDecision(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	room, err := e.Get(discussionID)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	if room.Status == model.DiscussionDecided {
		return room, nil
	}
	if room.Status != model.DiscussionCreated && room.Status != model.DiscussionInProgress {
		return model.DiscussionRoom{}, &model.IllegalTransitionError{From: room.Status, To: model.DiscussionDecided}
	}

	if room.MessagesCount == 0 {
		room, err = e.CollectArguments(ctx, discussionID)
		if err != nil {
			return model.DiscussionRoom{}, err
		}
	}

	signals := e.enrichWinRates(roomSignals(room))
	decision := e.votes.Decide(signals)
	return e.commitDecision(discussionID, decision)
}

// commitDecision persists the decision and moves the room to DECIDED,
// then applies the consensus confidence adjustment, morale nudges and
// memory entries for the sector's agents.
func (e *Engine) commitDecision(discussionID string, decision model.DiscussionDecision) (model.DiscussionRoom, error) {
	now := e.now()
	var updated model.DiscussionRoom
	_, err := store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		d := store.FindDiscussion(cur, discussionID)
		if d == nil {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		if d.FinalDecision != nil {
			updated = *d
			return cur, nil
		}
		if d.Status == model.DiscussionCreated {
			if terr := d.Transition(model.DiscussionInProgress, now); terr != nil {
				return cur, terr
			}
		}
		if terr := d.Transition(model.DiscussionDecided, now); terr != nil {
			return cur, terr
		}
		d.FinalDecision = &decision
		d.DecidedAt = &now
		updated = *d
		return cur, nil
	})
	if err != nil {
		return model.DiscussionRoom{}, err
	}

	e.applyOutcome(updated)
	e.log.Info().
		Str("discussion_id", discussionID).
		Str("action", string(decision.Action)).
		Float64("confidence", decision.Confidence).
		Float64("conflict_score", decision.ConflictScore).
		Msg("Decision committed")
	return updated, nil
}

// applyOutcome rewrites agent confidence from the decision signals and
// nudges morale: the selected agent gains the most, aligned voters gain a
// little, opposed voters lose a little.
func (e *Engine) applyOutcome(room model.DiscussionRoom) {
	if room.FinalDecision == nil {
		return
	}
	decision := *room.FinalDecision
	signals := roomSignals(room)

	signalConf := make(map[string]float64, len(signals))
	votedFor := make(map[string]model.Action, len(signals))
	for _, sig := range signals {
		signalConf[sig.AgentID] = sig.Confidence
		votedFor[sig.AgentID] = sig.Action
	}

	now := e.now()
	summary := fmt.Sprintf("Discussion %s decided %s (confidence %.2f)", room.ID, decision.Action, decision.Confidence)

	_, err := store.Update(e.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		confidence.ApplyConsensus(cur, room.SectorID, signalConf)
		for i := range cur {
			a := &cur[i]
			if a.SectorID != room.SectorID {
				continue
			}
			action, voted := votedFor[a.ID]
			switch {
			case a.ID == decision.SelectedAgent:
				a.Morale = model.ClampMorale(a.Morale + moraleSelected)
			case voted && action == decision.Action:
				a.Morale = model.ClampMorale(a.Morale + moraleAligned)
			case voted:
				a.Morale = model.ClampMorale(a.Morale + moraleOpposed)
			}
			if voted || a.IsManager() {
				a.Remember("decision", summary, now)
			}
			a.UpdatedAt = now
		}
		return cur, nil
	})
	if err != nil {
		e.log.Error().Err(err).Str("discussion_id", room.ID).Msg("Outcome adjustment failed")
	}
}

// Close moves the room to CLOSED, producing a decision first if none is
// set. The sector's current-discussion pointer is cleared because a
// closed room no longer counts as open.
func (e *Engine) Close(ctx context.Context, discussionID, reason string) (model.DiscussionRoom, error) {
	room, err := e.Get(discussionID)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	if room.FinalDecision == nil {
		if room, err = e.ProduceDecision(ctx, discussionID); err != nil {
			return model.DiscussionRoom{}, err
		}
	}
	if room.Status == model.DiscussionClosed || room.Status == model.DiscussionArchived {
		return room, nil
	}
	if reason == "" {
		reason = "decided"
	}

	now := e.now()
	var updated model.DiscussionRoom
	_, err = store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		d := store.FindDiscussion(cur, discussionID)
		if d == nil {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		if terr := d.Transition(model.DiscussionClosed, now); terr != nil {
			return cur, terr
		}
		d.ClosedAt = &now
		d.CloseReason = reason
		updated = *d
		return cur, nil
	})
	if err != nil {
		return model.DiscussionRoom{}, err
	}

	if serr := e.sectors.SetDiscussion(updated.SectorID, ""); serr != nil {
		e.log.Warn().Err(serr).Str("sector_id", updated.SectorID).Msg("Failed to clear sector discussion pointer")
	}
	e.publishOpenGauge()
	e.log.Info().Str("discussion_id", discussionID).Str("reason", reason).Msg("Discussion closed")
	return updated, nil
}

// Archive moves the room to its terminal state, closing it first if
// needed, and mirrors it into the legacy debates document without the
// decision fields. The periodic lifecycle only archives after
// ArchiveDelay; direct calls archive immediately.
func (e *Engine) Archive(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	room, err := e.Get(discussionID)
	if err != nil {
		return model.DiscussionRoom{}, err
	}
	if room.Status == model.DiscussionArchived {
		return room, nil
	}
	if room.Status != model.DiscussionClosed {
		if room, err = e.Close(ctx, discussionID, ""); err != nil {
			return model.DiscussionRoom{}, err
		}
	}

	now := e.now()
	var updated model.DiscussionRoom
	_, err = store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		d := store.FindDiscussion(cur, discussionID)
		if d == nil {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		if terr := d.Transition(model.DiscussionArchived, now); terr != nil {
			return cur, terr
		}
		updated = *d
		return cur, nil
	})
	if err != nil {
		return model.DiscussionRoom{}, err
	}

	legacy := updated
	legacy.FinalDecision = nil
	legacy.DecidedAt = nil
	_, err = store.Update(e.store, store.DocDebates, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		return append(cur, legacy), nil
	})
	if err != nil {
		e.log.Warn().Err(err).Str("discussion_id", discussionID).Msg("Legacy debates mirror failed")
	}

	e.log.Info().Str("discussion_id", discussionID).Msg("Discussion archived")
	return updated, nil
}

// Delete removes the room entirely and clears the sector pointer if it
// still references it.
func (e *Engine) Delete(discussionID string) error {
	var sectorID string
	_, err := store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		idx := -1
		for i := range cur {
			if cur[i].ID == discussionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		sectorID = cur[idx].SectorID
		return append(cur[:idx], cur[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	_, err = store.Update(e.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		if s := store.FindSector(cur, sectorID); s != nil && s.Discussion == discussionID {
			s.Discussion = ""
			s.UpdatedAt = e.now()
		}
		return cur, nil
	})
	if err != nil {
		return err
	}
	e.publishOpenGauge()
	e.log.Info().Str("discussion_id", discussionID).Msg("Discussion deleted")
	return nil
}

// AddMessage is the user message path. Unlike oracle-proposed messages,
// content is validated non-empty.
func (e *Engine) AddMessage(discussionID, agentID, content, role string) (model.Message, error) {
	if content == "" {
		return model.Message{}, &model.ValidationError{Field: "content", Reason: "must be nonempty"}
	}

	agentName := agentID
	if agent, err := e.agents.Get(agentID); err == nil {
		agentName = agent.Name
		if role == "" {
			role = agent.Role
		}
	}

	now := e.now()
	msg := model.Message{
		ID:           uuid.NewString(),
		DiscussionID: discussionID,
		AgentID:      agentID,
		AgentName:    agentName,
		Role:         role,
		Content:      content,
		Timestamp:    now,
	}

	_, err := store.Update(e.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		d := store.FindDiscussion(cur, discussionID)
		if d == nil {
			return cur, fmt.Errorf("discussion %s: %w", discussionID, model.ErrNotFound)
		}
		if d.Status == model.DiscussionClosed || d.Status == model.DiscussionArchived {
			return cur, &model.IllegalTransitionError{From: d.Status, To: d.Status}
		}
		d.AppendMessage(msg)
		d.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (e *Engine) publishOpenGauge() {
	rooms, err := store.Discussions(e.store)
	if err != nil {
		return
	}
	open := 0
	for _, d := range rooms {
		if d.Status.IsOpen() {
			open++
		}
	}
	e.metrics.OpenDiscussions.Set(float64(open))
}

// enrichWinRates stamps each signal with its agent's recorded win rate.
// Signals from agents no longer on file keep a neutral vote weight.
func (e *Engine) enrichWinRates(signals []model.AgentSignal) []model.AgentSignal {
	agents, err := e.agents.List()
	if err != nil {
		return signals
	}
	byID := make(map[string]model.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	for i := range signals {
		if a, ok := byID[signals[i].AgentID]; ok {
			signals[i].WinRate = a.Performance.WinRate
			signals[i].WinRateKnown = true
		}
	}
	return signals
}

// roomSignals reconstructs the vote input for a room: the latest round
// snapshot when present, otherwise the message proposals.
func roomSignals(room model.DiscussionRoom) []model.AgentSignal {
	if n := len(room.RoundHistory); n > 0 {
		last := room.RoundHistory[n-1]
		if len(last.Signals) > 0 {
			return append([]model.AgentSignal(nil), last.Signals...)
		}
	}
	var out []model.AgentSignal
	for _, m := range room.Messages {
		if m.Proposal == nil {
			continue
		}
		out = append(out, model.AgentSignal{
			AgentID:           m.AgentID,
			Action:            m.Proposal.Action,
			Confidence:        m.Proposal.Confidence,
			Symbol:            m.Proposal.Symbol,
			AllocationPercent: m.Proposal.AllocationPercent,
			Reasoning:         m.Content,
		})
	}
	return out
}

func priorArguments(room model.DiscussionRoom) []string {
	var out []string
	for _, m := range room.Messages {
		if m.Content != "" {
			out = append(out, m.Content)
		}
	}
	return out
}

func marketContext(sector model.Sector) oracle.MarketContext {
	return oracle.MarketContext{
		SectorName:    sector.Name,
		Symbol:        sector.Symbol,
		CurrentPrice:  sector.CurrentPrice,
		ChangePercent: market.ChangePercent(sector),
		Volatility:    sector.Volatility,
		RiskScore:     sector.RiskScore,
	}
}
