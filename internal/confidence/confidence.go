// Package confidence owns the agent confidence rules: per-tick drift by
// role, custom rule deltas, and the post-decision consensus adjustment.
package confidence

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// Rule is a user-defined confidence adjustment applied on every tick after
// the role drift.
type Rule struct {
	Name    string
	Applies func(model.Agent) bool
	Delta   func(model.Agent) float64
}

// Engine computes per-tick confidence drift. The random source is injected
// so ticks are reproducible under test.
type Engine struct {
	rng   *rand.Rand
	rules []Rule
	log   zerolog.Logger
}

// NewEngine creates a confidence engine. A nil rng falls back to the
// package-global source.
func NewEngine(rng *rand.Rand, log zerolog.Logger) *Engine {
	return &Engine{
		rng: rng,
		log: log.With().Str("component", "confidence").Logger(),
	}
}

// AddRule registers a custom adjustment rule.
func (e *Engine) AddRule(rule Rule) {
	e.rules = append(e.rules, rule)
}

func (e *Engine) float64() float64 {
	if e.rng != nil {
		return e.rng.Float64()
	}
	return rand.Float64()
}

// Drift returns the per-tick confidence delta for the agent's role.
// Research-leaning roles drift upward (+1..+5), analyst-leaning roles
// oscillate (-2..+3), everything else holds steady.
func (e *Engine) Drift(agent model.Agent) float64 {
	switch agent.Role {
	case model.RoleResearch, model.RoleMacro:
		return 1 + e.float64()*4
	case model.RoleAnalyst, model.RoleTechnical, model.RoleSentiment:
		return -2 + e.float64()*5
	default:
		return 0
	}
}

// Tick applies the role drift and any custom rules to the agent and
// returns the new clamped confidence.
func (e *Engine) Tick(agent model.Agent) float64 {
	next := agent.Confidence + e.Drift(agent)
	for _, rule := range e.rules {
		if rule.Applies == nil || rule.Applies(agent) {
			next += rule.Delta(agent)
		}
	}
	return model.ClampAgentConfidence(next)
}
