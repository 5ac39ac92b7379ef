package signal

import (
	"fmt"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
)

// Generate produces a deterministic signal from agent personality and the
// market context. Used whenever the oracle cannot, so a discussion always
// makes progress.
func Generate(agent model.Agent, mkt oracle.MarketContext) model.AgentSignal {
	winRate := agent.Performance.WinRate

	var confidence float64
	switch {
	case winRate > 0.6:
		confidence = 0.7
	case winRate > 0.4:
		confidence = 0.6
	case winRate < 0.3:
		confidence = 0.3
	default:
		confidence = 0.5
	}

	aggressive := agent.Personality.RiskTolerance == model.RiskHigh
	switch agent.Personality.RiskTolerance {
	case model.RiskHigh:
		confidence += 0.1
	case model.RiskLow:
		confidence -= 0.1
	}

	action := model.ActionHold
	switch {
	case mkt.ChangePercent > 3 && aggressive:
		action = model.ActionBuy
		confidence += 0.2
	case mkt.ChangePercent > 3:
		action = model.ActionHold
	case mkt.ChangePercent < -3 && aggressive:
		action = model.ActionSell
		confidence += 0.2
	case mkt.ChangePercent < -3:
		action = model.ActionSell
		confidence += 0.15
	}

	if mkt.Volatility > 0.05 {
		confidence -= 0.1
	}
	confidence = model.Clamp(confidence, 0.1, 0.95)

	return model.AgentSignal{
		AgentID:           agent.ID,
		Action:            action,
		Confidence:        confidence,
		Symbol:            mkt.Symbol,
		AllocationPercent: DefaultAllocation(mkt.RiskScore),
		Reasoning: fmt.Sprintf("%s policy: change %.2f%%, volatility %.3f, win rate %.2f",
			agent.Personality.RiskTolerance, mkt.ChangePercent, mkt.Volatility, winRate),
		WinRate:      winRate,
		WinRateKnown: true,
	}
}
