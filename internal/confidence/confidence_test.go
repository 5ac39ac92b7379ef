package confidence

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

func agentWithRole(role string, conf float64) model.Agent {
	return model.Agent{ID: "A_" + role, Role: role, Confidence: conf}
}

func TestDriftBoundsByRole(t *testing.T) {
	e := NewEngine(rand.New(rand.NewSource(7)), zerolog.Nop())

	for i := 0; i < 200; i++ {
		d := e.Drift(agentWithRole(model.RoleResearch, 0))
		assert.GreaterOrEqual(t, d, 1.0)
		assert.LessOrEqual(t, d, 5.0)

		d = e.Drift(agentWithRole(model.RoleAnalyst, 0))
		assert.GreaterOrEqual(t, d, -2.0)
		assert.LessOrEqual(t, d, 3.0)

		assert.Zero(t, e.Drift(agentWithRole(model.RoleTrader, 0)))
		assert.Zero(t, e.Drift(agentWithRole(model.RoleManager, 0)))
	}
}

func TestTickClampsToAgentScale(t *testing.T) {
	e := NewEngine(rand.New(rand.NewSource(1)), zerolog.Nop())

	high := e.Tick(agentWithRole(model.RoleResearch, 99.5))
	assert.LessOrEqual(t, high, 100.0)

	low := e.Tick(agentWithRole(model.RoleAnalyst, -99.5))
	assert.GreaterOrEqual(t, low, -100.0)
}

func TestCustomRulesApply(t *testing.T) {
	e := NewEngine(rand.New(rand.NewSource(1)), zerolog.Nop())
	e.AddRule(Rule{
		Name:    "penalize_idle",
		Applies: func(a model.Agent) bool { return a.Status == model.AgentIdle },
		Delta:   func(model.Agent) float64 { return -10 },
	})

	idle := model.Agent{Role: model.RoleTrader, Confidence: 50, Status: model.AgentIdle}
	active := model.Agent{Role: model.RoleTrader, Confidence: 50, Status: model.AgentActive}

	assert.Equal(t, 40.0, e.Tick(idle))
	assert.Equal(t, 50.0, e.Tick(active))
}

func TestApplyConsensusNonManagers(t *testing.T) {
	agents := []model.Agent{
		{ID: "R1", SectorID: "s1", Role: model.RoleResearch, Confidence: 10},
		{ID: "T1", SectorID: "s1", Role: model.RoleTrader, Confidence: 10},
		{ID: "OTHER", SectorID: "s2", Role: model.RoleTrader, Confidence: 10},
	}
	ApplyConsensus(agents, "s1", map[string]float64{"R1": 0.8, "T1": 0.4})

	assert.Equal(t, 80.0, agents[0].Confidence)
	assert.Equal(t, 40.0, agents[1].Confidence)
	// Other sectors untouched.
	assert.Equal(t, 10.0, agents[2].Confidence)
}

func TestApplyConsensusManagerTakesMean(t *testing.T) {
	agents := []model.Agent{
		{ID: "MGR", SectorID: "s1", Role: model.RoleManager, Confidence: 0},
		{ID: "R1", SectorID: "s1", Role: model.RoleResearch, Confidence: 0},
		{ID: "T1", SectorID: "s1", Role: model.RoleTrader, Confidence: 0},
	}
	ApplyConsensus(agents, "s1", map[string]float64{"R1": 0.6, "T1": 0.2})

	require.Equal(t, 60.0, agents[1].Confidence)
	require.Equal(t, 20.0, agents[2].Confidence)
	assert.Equal(t, 40.0, agents[0].Confidence)
}

func TestApplyConsensusLoneManagerReclamps(t *testing.T) {
	agents := []model.Agent{
		{ID: "MGR", SectorID: "s1", Role: model.RoleManager, Confidence: 150},
	}
	ApplyConsensus(agents, "s1", nil)
	assert.Equal(t, 100.0, agents[0].Confidence)
}

func TestApplyConsensusAgentWithoutSignalKeepsConfidence(t *testing.T) {
	agents := []model.Agent{
		{ID: "SILENT", SectorID: "s1", Role: model.RoleTrader, Confidence: 33},
	}
	ApplyConsensus(agents, "s1", map[string]float64{})
	assert.Equal(t, 33.0, agents[0].Confidence)
}
