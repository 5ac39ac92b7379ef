package voting

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConflictThreshold, zerolog.Nop())
}

func sig(agentID string, action model.Action, confidence, winRate float64) model.AgentSignal {
	return model.AgentSignal{
		AgentID:      agentID,
		Action:       action,
		Confidence:   confidence,
		WinRate:      winRate,
		WinRateKnown: true,
	}
}

func TestUnanimousBuy(t *testing.T) {
	e := newTestEngine()
	decision := e.Decide([]model.AgentSignal{
		sig("A1", model.ActionBuy, 0.8, 0.6),
		sig("A2", model.ActionBuy, 0.8, 0.6),
		sig("A3", model.ActionBuy, 0.8, 0.6),
	})

	assert.Equal(t, model.ActionBuy, decision.Action)
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
	assert.Equal(t, 0.0, decision.ConflictScore)
	// Equal scores keep the first inserted.
	assert.Equal(t, "A1", decision.SelectedAgent)
}

func TestHighConflictWeightedWinner(t *testing.T) {
	e := newTestEngine()
	decision := e.Decide([]model.AgentSignal{
		sig("B1", model.ActionBuy, 0.9, 0.8),
		sig("B2", model.ActionBuy, 0.9, 0.8),
		sig("S1", model.ActionSell, 0.85, 0.2),
		sig("S2", model.ActionSell, 0.85, 0.2),
	})

	// Counts are tied; the BUY cluster's weight (0.5+1.5*0.8 = 1.7 per
	// vote) beats SELL's (0.8 per vote).
	assert.Equal(t, model.ActionBuy, decision.Action)
	assert.InDelta(t, (0.85*0.8)/(0.9*1.7), decision.ConflictScore, 1e-9)
	assert.InDelta(t, 0.9, decision.Confidence, 1e-9)
}

func TestConflictResolutionPicksHigherWinRateCluster(t *testing.T) {
	e := newTestEngine()
	// HOLD wins the count, but the lone BUY voter has a far better record
	// and pushes the ratio over the threshold.
	decision := e.Decide([]model.AgentSignal{
		sig("H1", model.ActionHold, 0.5, 0.3),
		sig("H2", model.ActionHold, 0.5, 0.3),
		sig("B1", model.ActionBuy, 0.9, 0.9),
	})

	require.GreaterOrEqual(t, decision.ConflictScore, DefaultConflictThreshold)
	assert.Equal(t, model.ActionBuy, decision.Action)
	assert.Equal(t, "B1", decision.SelectedAgent)
}

func TestEmptyBagHoldsWithFullConflict(t *testing.T) {
	e := newTestEngine()
	decision := e.Decide(nil)

	assert.Equal(t, model.ActionHold, decision.Action)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Equal(t, 1.0, decision.ConflictScore)
}

func TestCountTieBrokenByWeightedConfidenceThenLexical(t *testing.T) {
	e := NewEngine(0.99, zerolog.Nop()) // keep resolution out of the way

	// Same count, same weight, SELL has more confidence behind it.
	decision := e.Decide([]model.AgentSignal{
		sig("B1", model.ActionBuy, 0.6, 0.5),
		sig("S1", model.ActionSell, 0.9, 0.5),
	})
	assert.Equal(t, model.ActionSell, decision.Action)

	// Fully symmetric: lexical order decides, BUY before HOLD.
	decision = e.Decide([]model.AgentSignal{
		sig("H1", model.ActionHold, 0.7, 0.5),
		sig("B1", model.ActionBuy, 0.7, 0.5),
	})
	assert.Equal(t, model.ActionBuy, decision.Action)
}

func TestUnknownWinRateWeighsNeutral(t *testing.T) {
	e := NewEngine(0.99, zerolog.Nop())
	unknown := model.AgentSignal{AgentID: "U1", Action: model.ActionBuy, Confidence: 0.8}
	strong := sig("S1", model.ActionSell, 0.8, 1.0) // weight 2.0

	decision := e.Decide([]model.AgentSignal{unknown, strong})
	assert.Equal(t, model.ActionSell, decision.Action)
}

func TestSelectedAgentMaximizesConfidenceTimesWinRate(t *testing.T) {
	e := newTestEngine()
	decision := e.Decide([]model.AgentSignal{
		sig("A1", model.ActionBuy, 0.9, 0.1), // 0.99
		sig("A2", model.ActionBuy, 0.7, 0.8), // 1.26
		sig("A3", model.ActionBuy, 0.8, 0.4), // 1.12
	})
	assert.Equal(t, "A2", decision.SelectedAgent)
}

func TestDecisionIsDeterministic(t *testing.T) {
	e := newTestEngine()
	signals := []model.AgentSignal{
		sig("A1", model.ActionBuy, 0.9, 0.8),
		sig("A2", model.ActionSell, 0.85, 0.2),
		sig("A3", model.ActionHold, 0.4, 0.5),
		sig("A4", model.ActionBuy, 0.6, 0.3),
	}
	first := e.Decide(signals)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Decide(signals))
	}
}

func TestVoteBreakdownCoversAllVotedActions(t *testing.T) {
	e := newTestEngine()
	decision := e.Decide([]model.AgentSignal{
		sig("A1", model.ActionBuy, 0.9, 0.8),
		sig("A2", model.ActionSell, 0.85, 0.2),
	})
	assert.Contains(t, decision.VoteBreakdown, model.ActionBuy)
	assert.Contains(t, decision.VoteBreakdown, model.ActionSell)
	assert.NotContains(t, decision.VoteBreakdown, model.ActionHold)
	for _, c := range decision.VoteBreakdown {
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}
