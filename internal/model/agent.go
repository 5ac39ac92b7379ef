// Package model defines the persisted entities, signal types, and error
// taxonomy shared by the registries and engines. All entities serialize to
// camelCase JSON because the storage documents are the external interface.
package model

import (
	"regexp"
	"time"
)

// AgentStatus is the lifecycle state of an agent.
type AgentStatus string

const (
	AgentIdle       AgentStatus = "idle"
	AgentActive     AgentStatus = "active"
	AgentProcessing AgentStatus = "processing"
)

// RiskTolerance levels for an agent personality.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// DecisionStyle describes how an agent approaches decisions.
type DecisionStyle string

const (
	StyleRapid      DecisionStyle = "rapid"
	StyleBalanced   DecisionStyle = "balanced"
	StyleCautious   DecisionStyle = "cautious"
	StyleStudious   DecisionStyle = "studious"
	StyleDeliberate DecisionStyle = "deliberate"
	StylePrecise    DecisionStyle = "precise"
	StyleAnalytical DecisionStyle = "analytical"
)

// Personality holds the fixed behavioral traits of an agent.
type Personality struct {
	RiskTolerance RiskTolerance `json:"riskTolerance"`
	DecisionStyle DecisionStyle `json:"decisionStyle"`
}

// Preferences are the agent's weighting of competing concerns, each in [0,1].
type Preferences struct {
	Risk     float64 `json:"risk"`
	Profit   float64 `json:"profit"`
	Speed    float64 `json:"speed"`
	Accuracy float64 `json:"accuracy"`
}

// MemoryEntry is one record in an agent's append-only memory log.
type MemoryEntry struct {
	Kind      string    `json:"kind"` // creation, discussion, decision, note
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentPerformance tracks realized results for an agent.
type AgentPerformance struct {
	PnL     float64 `json:"pnl"`
	WinRate float64 `json:"winRate"` // [0,1]
}

// MaxMemoryEntries bounds the agent memory log.
const MaxMemoryEntries = 1000

// Agent is a persisted autonomous trading agent. ID is stable, unique,
// 1-32 chars, uppercase with underscores.
type Agent struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Role        string           `json:"role"`
	SectorID    string           `json:"sectorId,omitempty"`
	Confidence  float64          `json:"confidence"` // [-100,100]
	Morale      float64          `json:"morale"`     // [0,100]
	Status      AgentStatus      `json:"status"`
	Personality Personality      `json:"personality"`
	Preferences Preferences      `json:"preferences"`
	Memory      []MemoryEntry    `json:"memory"`
	Performance AgentPerformance `json:"performance"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

var agentIDPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,31}$`)

// ValidAgentID reports whether id satisfies the agent id format.
func ValidAgentID(id string) bool {
	return agentIDPattern.MatchString(id)
}

// IsManager reports whether the agent carries the manager role.
func (a *Agent) IsManager() bool { return a.Role == RoleManager }

// Remember appends a memory entry, keeping only the last MaxMemoryEntries.
func (a *Agent) Remember(kind, content string, now time.Time) {
	a.Memory = append(a.Memory, MemoryEntry{Kind: kind, Content: content, Timestamp: now})
	if n := len(a.Memory); n > MaxMemoryEntries {
		a.Memory = a.Memory[n-MaxMemoryEntries:]
	}
}

// Well-known role tokens. The oracle may assign custom tokens beyond these;
// unknown roles fall back to the general template.
const (
	RoleManager     = "manager"
	RoleRiskManager = "riskmanager"
	RoleTrader      = "trader"
	RoleAnalyst     = "analyst"
	RoleResearch    = "research"
	RoleAdvisor     = "advisor"
	RoleArbitrage   = "arbitrage"
	RoleGeneral     = "general"
	RoleMacro       = "macro"
	RoleRisk        = "risk"
	RoleSentiment   = "sentiment"
	RoleTechnical   = "technical"
)

// RoleTemplate is the default personality and preference set for a role.
type RoleTemplate struct {
	Personality Personality
	Preferences Preferences
}

// roleTemplates is the fixed role -> defaults table. Tests depend on these
// exact values, so they are not configurable.
var roleTemplates = map[string]RoleTemplate{
	RoleManager:     {Personality{RiskMedium, StyleBalanced}, Preferences{0.5, 0.5, 0.5, 0.5}},
	RoleRiskManager: {Personality{RiskLow, StyleCautious}, Preferences{0.1, 0.3, 0.2, 0.9}},
	RoleTrader:      {Personality{RiskHigh, StyleRapid}, Preferences{0.8, 0.9, 0.9, 0.4}},
	RoleAnalyst:     {Personality{RiskMedium, StyleAnalytical}, Preferences{0.4, 0.5, 0.4, 0.8}},
	RoleResearch:    {Personality{RiskLow, StyleStudious}, Preferences{0.2, 0.4, 0.1, 1.0}},
	RoleAdvisor:     {Personality{RiskMedium, StyleDeliberate}, Preferences{0.3, 0.6, 0.3, 0.7}},
	RoleArbitrage:   {Personality{RiskHigh, StylePrecise}, Preferences{0.7, 0.8, 0.8, 0.6}},
	RoleGeneral:     {Personality{RiskMedium, StyleBalanced}, Preferences{0.5, 0.5, 0.5, 0.5}},
	RoleMacro:       {Personality{RiskLow, StyleDeliberate}, Preferences{0.3, 0.5, 0.2, 0.8}},
	RoleRisk:        {Personality{RiskLow, StyleCautious}, Preferences{0.2, 0.3, 0.3, 0.9}},
	RoleSentiment:   {Personality{RiskMedium, StyleRapid}, Preferences{0.5, 0.6, 0.7, 0.5}},
	RoleTechnical:   {Personality{RiskMedium, StylePrecise}, Preferences{0.4, 0.6, 0.5, 0.8}},
}

// TemplateForRole returns the defaults for a role token; unknown tokens
// (including oracle-assigned custom roles) use the general template.
func TemplateForRole(role string) RoleTemplate {
	if t, ok := roleTemplates[role]; ok {
		return t
	}
	return roleTemplates[RoleGeneral]
}

// KnownRole reports whether role is one of the fixed role tokens.
func KnownRole(role string) bool {
	_, ok := roleTemplates[role]
	return ok
}
