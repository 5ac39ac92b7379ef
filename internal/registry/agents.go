// Package registry implements CRUD over agents and sectors. Capacity
// limits, id de-duplication and the sector<->agent mirror are enforced on
// every save, with limit checks re-run inside the store transform so
// concurrent creates cannot slip past them.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// AgentPatch lists the mutable agent fields. Nil fields are untouched; id
// and createdAt are immutable.
type AgentPatch struct {
	Name        *string
	Role        *string
	SectorID    *string
	Confidence  *float64
	Morale      *float64
	Status      *model.AgentStatus
	Personality *model.Personality
	Preferences *model.Preferences
	Performance *model.AgentPerformance
}

// AgentRegistry owns agent CRUD and the agent-side invariants.
type AgentRegistry struct {
	store   *store.Store
	oracle  oracle.ReasoningOracle
	cfg     config.EngineConfig
	metrics *metrics.Set
	log     zerolog.Logger
	now     func() time.Time
}

// NewAgentRegistry creates an agent registry backed by the store. The
// oracle proposes agent identities and profiles; pass oracle.Disabled{}
// to always use the role templates.
func NewAgentRegistry(st *store.Store, orc oracle.ReasoningOracle, cfg config.EngineConfig, log zerolog.Logger) *AgentRegistry {
	return &AgentRegistry{
		store:   st,
		oracle:  orc,
		cfg:     cfg,
		metrics: metrics.Default(),
		log:     log.With().Str("component", "agent_registry").Logger(),
		now:     time.Now,
	}
}

// Create builds a new agent for the sector. The oracle is asked for a
// compact identity and a behavioral profile; on any oracle failure the
// role template fills in. Capacity limits are checked again inside the
// save transform, so the TOCTOU window between precheck and save is
// closed.
func (r *AgentRegistry) Create(ctx context.Context, description, sectorID, roleOverride string) (model.Agent, error) {
	role := strings.ToLower(strings.TrimSpace(roleOverride))
	if role == "" {
		role = model.RoleGeneral
	}

	sectorName := sectorID
	sectors, err := store.Sectors(r.store)
	if err != nil {
		return model.Agent{}, err
	}
	sec := store.FindSector(sectors, sectorID)
	if sec == nil {
		r.log.Warn().Str("sector_id", sectorID).Msg("Creating agent for unknown sector")
	} else {
		sectorName = sec.Name
	}

	id, purpose := r.resolveIdentity(ctx, description, sectorName, role)
	personality, prefs, initialConfidence := r.resolveProfile(ctx, description, role)

	now := r.now()
	agent := model.Agent{
		ID:          id,
		Name:        nameFromID(id),
		Role:        role,
		SectorID:    sectorID,
		Confidence:  initialConfidence,
		Morale:      50,
		Status:      model.AgentActive,
		Personality: personality,
		Preferences: prefs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	agent.Remember("creation", purpose, now)

	var saved model.Agent
	all, err := store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		if len(cur) >= r.cfg.MaxTotalAgents {
			return cur, fmt.Errorf("global agent limit %d reached: %w", r.cfg.MaxTotalAgents, model.ErrCapacityExceeded)
		}
		if sectorID != "" {
			inSector := 0
			for _, a := range cur {
				if a.SectorID == sectorID {
					inSector++
				}
			}
			if inSector >= r.cfg.MaxAgentsPerSector {
				return cur, fmt.Errorf("sector %s at agent limit %d: %w", sectorID, r.cfg.MaxAgentsPerSector, model.ErrCapacityExceeded)
			}
		}
		candidate := agent
		candidate.ID = uniqueID(cur, agent.ID)
		candidate.Name = nameFromID(candidate.ID)
		saved = candidate
		return store.DedupeAgents(append(cur, candidate)), nil
	})
	if err != nil {
		return model.Agent{}, err
	}

	if err := r.syncMirrors(all, now); err != nil {
		return model.Agent{}, err
	}
	r.publishGauges(all)

	r.log.Info().
		Str("agent_id", saved.ID).
		Str("role", saved.Role).
		Str("sector_id", sectorID).
		Msg("Agent created")
	return saved, nil
}

// Get returns the agent with the given id.
func (r *AgentRegistry) Get(id string) (model.Agent, error) {
	agents, err := store.Agents(r.store)
	if err != nil {
		return model.Agent{}, err
	}
	if a := store.FindAgent(agents, id); a != nil {
		return *a, nil
	}
	return model.Agent{}, fmt.Errorf("agent %s: %w", id, model.ErrNotFound)
}

// List returns all agents.
func (r *AgentRegistry) List() ([]model.Agent, error) {
	return store.Agents(r.store)
}

// ListBySector returns the agents whose sectorId matches, in save order.
// This list, not the sector mirror, is the source of truth for membership.
func (r *AgentRegistry) ListBySector(sectorID string) ([]model.Agent, error) {
	agents, err := store.Agents(r.store)
	if err != nil {
		return nil, err
	}
	var out []model.Agent
	for _, a := range agents {
		if a.SectorID == sectorID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Update applies the patch to the agent. Out-of-range numeric fields are
// rejected with a ValidationError rather than clamped; periodic drift goes
// through ApplyConfidences instead.
func (r *AgentRegistry) Update(id string, patch AgentPatch) (model.Agent, error) {
	if err := validatePatch(patch); err != nil {
		return model.Agent{}, err
	}

	now := r.now()
	var updated model.Agent
	all, err := store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		a := store.FindAgent(cur, id)
		if a == nil {
			return cur, fmt.Errorf("agent %s: %w", id, model.ErrNotFound)
		}
		applyPatch(a, patch)
		a.UpdatedAt = now
		updated = *a
		return store.DedupeAgents(cur), nil
	})
	if err != nil {
		return model.Agent{}, err
	}

	if err := r.syncMirrors(all, now); err != nil {
		return model.Agent{}, err
	}
	r.publishGauges(all)
	return updated, nil
}

// Delete removes the agent and drops it from the owning sector's mirror.
func (r *AgentRegistry) Delete(id string) error {
	now := r.now()
	all, err := store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		idx := -1
		for i := range cur {
			if cur[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return cur, fmt.Errorf("agent %s: %w", id, model.ErrNotFound)
		}
		return append(cur[:idx], cur[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	if err := r.syncMirrors(all, now); err != nil {
		return err
	}
	r.publishGauges(all)
	r.log.Info().Str("agent_id", id).Msg("Agent deleted")
	return nil
}

// ApplyConfidences rewrites confidences for the listed agents, clamped to
// the agent scale. Used by the ticker and the consensus adjuster.
func (r *AgentRegistry) ApplyConfidences(updates map[string]float64, now time.Time) ([]model.Agent, error) {
	return store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		for i := range cur {
			if v, ok := updates[cur[i].ID]; ok {
				cur[i].Confidence = model.ClampAgentConfidence(v)
				cur[i].UpdatedAt = now
			}
		}
		return store.DedupeAgents(cur), nil
	})
}

// NudgeMorale applies morale deltas for the listed agents, clamped to
// [0,100]. Used after decisions to reward or deflate participants.
func (r *AgentRegistry) NudgeMorale(deltas map[string]float64, now time.Time) error {
	_, err := store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		for i := range cur {
			if d, ok := deltas[cur[i].ID]; ok {
				cur[i].Morale = model.ClampMorale(cur[i].Morale + d)
				cur[i].UpdatedAt = now
			}
		}
		return cur, nil
	})
	return err
}

// Remember appends a memory entry to the agent's bounded log.
func (r *AgentRegistry) Remember(agentID, kind, content string) error {
	now := r.now()
	_, err := store.Update(r.store, store.DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		a := store.FindAgent(cur, agentID)
		if a == nil {
			return cur, fmt.Errorf("agent %s: %w", agentID, model.ErrNotFound)
		}
		a.Remember(kind, content, now)
		a.UpdatedAt = now
		return cur, nil
	})
	return err
}

// syncMirrors rewrites every sector's agent list and activeAgents count
// from the authoritative agents document.
func (r *AgentRegistry) syncMirrors(agents []model.Agent, now time.Time) error {
	members := map[string][]string{}
	active := map[string]int{}
	for _, a := range agents {
		if a.SectorID == "" {
			continue
		}
		members[a.SectorID] = append(members[a.SectorID], a.ID)
		if a.Status == model.AgentActive {
			active[a.SectorID]++
		}
	}

	_, err := store.Update(r.store, store.DocSectors, func(cur []model.Sector) ([]model.Sector, error) {
		for i := range cur {
			ids := members[cur[i].ID]
			if ids == nil {
				ids = []string{}
			}
			if !equalIDs(cur[i].Agents, ids) || cur[i].ActiveAgents != active[cur[i].ID] {
				cur[i].Agents = ids
				cur[i].ActiveAgents = active[cur[i].ID]
				cur[i].UpdatedAt = now
			}
		}
		return cur, nil
	})
	return err
}

func (r *AgentRegistry) publishGauges(agents []model.Agent) {
	activeCount := 0
	for _, a := range agents {
		if a.Status == model.AgentActive {
			activeCount++
		}
	}
	r.metrics.ActiveAgents.Set(float64(activeCount))
}

func (r *AgentRegistry) resolveIdentity(ctx context.Context, description, sectorName, role string) (string, string) {
	if r.oracle != nil && r.oracle.Enabled() {
		content, err := r.oracle.Complete(ctx, oracle.Request{
			SystemPrompt: "You assign compact identities to trading agents.",
			UserPrompt:   oracle.BuildIdentityPrompt(description, sectorName),
			JSONMode:     true,
		})
		if err == nil {
			var ident oracle.AgentIdentity
			if derr := oracle.DecodeObject(content, &ident); derr == nil && model.ValidAgentID(ident.ID) {
				return ident.ID, ident.Purpose
			}
		}
		r.log.Warn().Err(err).Msg("Oracle identity unusable, generating id")
	}
	return generatedID(role), description
}

func (r *AgentRegistry) resolveProfile(ctx context.Context, description, role string) (model.Personality, model.Preferences, float64) {
	tmpl := model.TemplateForRole(role)
	personality := tmpl.Personality
	confidence := 50.0

	if r.oracle != nil && r.oracle.Enabled() {
		content, err := r.oracle.Complete(ctx, oracle.Request{
			SystemPrompt: "You profile trading agents.",
			UserPrompt:   oracle.BuildProfilePrompt(description, role),
			JSONMode:     true,
		})
		if err == nil {
			var prof oracle.AgentProfile
			if derr := oracle.DecodeObject(content, &prof); derr == nil {
				if style, ok := parseStyle(prof.Style); ok {
					personality.DecisionStyle = style
				}
				if risk, ok := parseRisk(prof.RiskTolerance); ok {
					personality.RiskTolerance = risk
				}
				confidence = model.ClampAgentConfidence(prof.InitialConfidence)
			}
		} else {
			r.log.Warn().Err(err).Msg("Oracle profile unusable, using role template")
		}
	}
	return personality, tmpl.Preferences, confidence
}

func parseStyle(s string) (model.DecisionStyle, bool) {
	switch model.DecisionStyle(strings.ToLower(strings.TrimSpace(s))) {
	case model.StyleRapid, model.StyleBalanced, model.StyleCautious, model.StyleStudious,
		model.StyleDeliberate, model.StylePrecise, model.StyleAnalytical:
		return model.DecisionStyle(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}

func parseRisk(s string) (model.RiskTolerance, bool) {
	switch model.RiskTolerance(strings.ToLower(strings.TrimSpace(s))) {
	case model.RiskLow, model.RiskMedium, model.RiskHigh:
		return model.RiskTolerance(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}

func validatePatch(patch AgentPatch) error {
	if patch.Confidence != nil && (*patch.Confidence < -100 || *patch.Confidence > 100) {
		return &model.ValidationError{Field: "confidence", Reason: "must be in [-100,100]"}
	}
	if patch.Morale != nil && (*patch.Morale < 0 || *patch.Morale > 100) {
		return &model.ValidationError{Field: "morale", Reason: "must be in [0,100]"}
	}
	if patch.Role != nil && strings.TrimSpace(*patch.Role) == "" {
		return &model.ValidationError{Field: "role", Reason: "must be nonempty"}
	}
	if patch.Status != nil {
		switch *patch.Status {
		case model.AgentIdle, model.AgentActive, model.AgentProcessing:
		default:
			return &model.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
	}
	return nil
}

func applyPatch(a *model.Agent, patch AgentPatch) {
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Role != nil {
		a.Role = strings.ToLower(strings.TrimSpace(*patch.Role))
	}
	if patch.SectorID != nil {
		a.SectorID = *patch.SectorID
	}
	if patch.Confidence != nil {
		a.Confidence = *patch.Confidence
	}
	if patch.Morale != nil {
		a.Morale = *patch.Morale
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.Personality != nil {
		a.Personality = *patch.Personality
	}
	if patch.Preferences != nil {
		a.Preferences = *patch.Preferences
	}
	if patch.Performance != nil {
		a.Performance = *patch.Performance
	}
}

func generatedID(role string) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	base := strings.ToUpper(role)
	if !model.ValidAgentID(base) {
		base = "AGENT"
	}
	if len(base) > 25 {
		base = base[:25]
	}
	return base + "_" + frag
}

func uniqueID(agents []model.Agent, id string) string {
	taken := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		taken[a.ID] = struct{}{}
	}
	if _, ok := taken[id]; !ok {
		return id
	}
	base := id
	if len(base) > 28 {
		base = base[:28]
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// nameFromID renders SOME_AGENT_ID as "Some Agent Id".
func nameFromID(id string) string {
	words := strings.Split(strings.ToLower(id), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
