package discussion

import (
	"context"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
	"github.com/ayushsreejith06/sectorflow/internal/signal"
)

// agentSignal produces one participant's signal for the round. The oracle
// is asked through the role's prompt adapter; any oracle or normalization
// failure falls back to the deterministic policy so the round always
// yields a signal.
func (e *Engine) agentSignal(ctx context.Context, agent model.Agent, mkt oracle.MarketContext, round int, prior []string) model.AgentSignal {
	raw, err := e.argue(ctx, agent, mkt, round, prior)
	if err != nil {
		e.metrics.OracleFallbacks.Inc()
		e.log.Debug().Err(err).Str("agent_id", agent.ID).Msg("Falling back to deterministic signal")
		return signal.Generate(agent, mkt)
	}

	sig, rejection := signal.Normalize(agent.ID, raw, signal.Defaults{
		SectorRiskProfile: mkt.RiskScore,
		LastConfidence:    model.ClampPercent(agent.Confidence),
		ConfidenceDelta:   2,
	})
	if rejection != nil {
		e.metrics.OracleFallbacks.Inc()
		e.log.Warn().
			Str("agent_id", agent.ID).
			Str("field", rejection.Field).
			Str("reason", rejection.Reason).
			Msg("Oracle response rejected, falling back")
		return signal.Generate(agent, mkt)
	}

	sig.WinRate = agent.Performance.WinRate
	sig.WinRateKnown = true
	return sig
}

// argue asks the oracle for a raw argument in the role's voice.
func (e *Engine) argue(ctx context.Context, agent model.Agent, mkt oracle.MarketContext, round int, prior []string) (model.RawAgentResponse, error) {
	if e.oracle == nil || !e.oracle.Enabled() {
		return model.RawAgentResponse{}, model.ErrOracleUnavailable
	}

	pb := oracle.NewPromptBuilder(agent.Role)
	content, err := e.oracle.Complete(ctx, oracle.Request{
		SystemPrompt: pb.SystemPrompt(),
		UserPrompt:   pb.BuildArgumentPrompt(mkt, round, prior),
		JSONMode:     true,
	})
	if err != nil {
		return model.RawAgentResponse{}, err
	}

	var raw model.RawAgentResponse
	if err := oracle.DecodeObject(content, &raw); err != nil {
		return model.RawAgentResponse{}, err
	}
	return raw, nil
}
