package orchestrator

import (
	"context"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/ticker"
)

// Inbound control operations. These are the entry points a transport
// layer calls; periodic drivers use the same underlying components.

// CreateSector creates a sector and, when configured, its manager agent.
func (s *System) CreateSector(ctx context.Context, name, symbol string) (model.Sector, error) {
	return s.sectors.Create(ctx, name, symbol)
}

// GetSector returns one sector.
func (s *System) GetSector(id string) (model.Sector, error) {
	return s.sectors.Get(id)
}

// ListSectors returns all sectors.
func (s *System) ListSectors() ([]model.Sector, error) {
	return s.sectors.List()
}

// UpdateSector applies a patch to a sector.
func (s *System) UpdateSector(id string, patch registry.SectorPatch) (model.Sector, error) {
	return s.sectors.Update(id, patch)
}

// Deposit adds funds to a sector balance.
func (s *System) Deposit(sectorID string, amount float64) (model.Sector, error) {
	return s.sectors.Deposit(sectorID, amount)
}

// CreateAgent creates an agent in a sector.
func (s *System) CreateAgent(ctx context.Context, description, sectorID, roleOverride string) (model.Agent, error) {
	return s.agents.Create(ctx, description, sectorID, roleOverride)
}

// GetAgent returns one agent.
func (s *System) GetAgent(id string) (model.Agent, error) {
	return s.agents.Get(id)
}

// ListAgents returns all agents.
func (s *System) ListAgents() ([]model.Agent, error) {
	return s.agents.List()
}

// UpdateAgent applies a patch to an agent.
func (s *System) UpdateAgent(id string, patch registry.AgentPatch) (model.Agent, error) {
	return s.agents.Update(id, patch)
}

// DeleteAgent removes an agent and its sector mirror entry.
func (s *System) DeleteAgent(id string) error {
	return s.agents.Delete(id)
}

// TickSector drives a single sector tick manually and reports whether
// the sector was discussion-ready.
func (s *System) TickSector(ctx context.Context, id string) (ticker.TickResult, error) {
	return s.ticker.TickSector(ctx, id)
}

// StartDiscussion opens a discussion for a sector.
func (s *System) StartDiscussion(ctx context.Context, sectorID, title string, agentIDs []string) (model.DiscussionRoom, error) {
	return s.discussion.Start(ctx, sectorID, title, agentIDs)
}

// GetDiscussion returns one discussion room.
func (s *System) GetDiscussion(id string) (model.DiscussionRoom, error) {
	return s.discussion.Get(id)
}

// ListDiscussions returns all discussion rooms.
func (s *System) ListDiscussions() ([]model.DiscussionRoom, error) {
	return s.discussion.List()
}

// AddDiscussionMessage appends a user message to a discussion.
func (s *System) AddDiscussionMessage(discussionID, agentID, content, role string) (model.Message, error) {
	return s.discussion.AddMessage(discussionID, agentID, content, role)
}

// ProduceDecision commits a decision for a discussion.
func (s *System) ProduceDecision(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	return s.discussion.ProduceDecision(ctx, discussionID)
}

// CloseDiscussion closes a discussion, deciding first if needed.
func (s *System) CloseDiscussion(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	return s.discussion.Close(ctx, discussionID, "")
}

// ArchiveDiscussion moves a discussion to its terminal state.
func (s *System) ArchiveDiscussion(ctx context.Context, discussionID string) (model.DiscussionRoom, error) {
	return s.discussion.Archive(ctx, discussionID)
}

// DeleteDiscussion removes a discussion room entirely.
func (s *System) DeleteDiscussion(discussionID string) error {
	return s.discussion.Delete(discussionID)
}

// GetSystemMode returns the current mode.
func (s *System) GetSystemMode() string { return s.Mode() }

// SetSystemMode switches between simulation and realtime.
func (s *System) SetSystemMode(mode string) error { return s.SetMode(mode) }
