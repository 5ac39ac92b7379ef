package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
)

func testAgent(winRate float64, risk model.RiskTolerance) model.Agent {
	return model.Agent{
		ID:          "AGENT_01",
		Personality: model.Personality{RiskTolerance: risk},
		Performance: model.AgentPerformance{WinRate: winRate},
	}
}

func TestGenerateAggressiveBuysOnRally(t *testing.T) {
	mkt := oracle.MarketContext{Symbol: "ACME", ChangePercent: 4, Volatility: 0.02}
	sig := Generate(testAgent(0.7, model.RiskHigh), mkt)

	assert.Equal(t, model.ActionBuy, sig.Action)
	// 0.7 base + 0.1 aggressive + 0.2 rally, clamped to the 0.95 ceiling.
	assert.InDelta(t, 0.95, sig.Confidence, 1e-9)
	assert.Equal(t, "ACME", sig.Symbol)
	assert.True(t, sig.WinRateKnown)
}

func TestGenerateConservativeHoldsOnRally(t *testing.T) {
	mkt := oracle.MarketContext{ChangePercent: 4, Volatility: 0.02}
	sig := Generate(testAgent(0.5, model.RiskLow), mkt)

	assert.Equal(t, model.ActionHold, sig.Action)
	// 0.6 base - 0.1 conservative.
	assert.InDelta(t, 0.5, sig.Confidence, 1e-9)
}

func TestGenerateEveryoneSellsOnDrop(t *testing.T) {
	mkt := oracle.MarketContext{ChangePercent: -4, Volatility: 0.02}

	aggressive := Generate(testAgent(0.5, model.RiskHigh), mkt)
	assert.Equal(t, model.ActionSell, aggressive.Action)
	// 0.6 base + 0.1 + 0.2 drop bonus.
	assert.InDelta(t, 0.9, aggressive.Confidence, 1e-9)

	conservative := Generate(testAgent(0.2, model.RiskLow), mkt)
	assert.Equal(t, model.ActionSell, conservative.Action)
	// 0.3 base - 0.1 + 0.15.
	assert.InDelta(t, 0.35, conservative.Confidence, 1e-9)
}

func TestGenerateVolatilityPenalty(t *testing.T) {
	calm := Generate(testAgent(0.5, model.RiskMedium), oracle.MarketContext{Volatility: 0.02})
	choppy := Generate(testAgent(0.5, model.RiskMedium), oracle.MarketContext{Volatility: 0.06})
	assert.InDelta(t, calm.Confidence-0.1, choppy.Confidence, 1e-9)
}

func TestGenerateConfidenceStaysInBand(t *testing.T) {
	mkts := []oracle.MarketContext{
		{ChangePercent: 10, Volatility: 0.5},
		{ChangePercent: -10, Volatility: 0.5},
		{ChangePercent: 0, Volatility: 0},
	}
	rates := []float64{0, 0.1, 0.35, 0.5, 0.65, 1}
	risks := []model.RiskTolerance{model.RiskLow, model.RiskMedium, model.RiskHigh}

	for _, mkt := range mkts {
		for _, wr := range rates {
			for _, risk := range risks {
				sig := Generate(testAgent(wr, risk), mkt)
				assert.GreaterOrEqual(t, sig.Confidence, 0.1)
				assert.LessOrEqual(t, sig.Confidence, 0.95)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	mkt := oracle.MarketContext{Symbol: "ACME", ChangePercent: 2, Volatility: 0.03, RiskScore: 40}
	a := Generate(testAgent(0.45, model.RiskMedium), mkt)
	b := Generate(testAgent(0.45, model.RiskMedium), mkt)
	assert.Equal(t, a, b)
}
