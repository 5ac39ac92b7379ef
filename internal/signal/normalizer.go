// Package signal canonicalizes untrusted oracle output into AgentSignals
// and provides the deterministic fallback policy used when the oracle is
// unavailable. The normalizer is the only producer of canonical signals.
package signal

import (
	"fmt"
	"strings"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// Defaults supplies the values used when a raw response omits a field.
type Defaults struct {
	SectorRiskProfile float64  // [0,100]
	LastConfidence    float64  // [0,100]
	ConfidenceDelta   float64
	AllowedSymbols    []string
}

// StandardDefaults returns the documented defaulting behavior.
func StandardDefaults() Defaults {
	return Defaults{
		SectorRiskProfile: 50,
		LastConfidence:    50,
		ConfidenceDelta:   2,
	}
}

// Rejection explains why a raw response could not be canonicalized.
// Rejections are expected values, not exceptional conditions.
type Rejection struct {
	Field  string
	Reason string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("rejected %s: %s", r.Field, r.Reason)
}

// Normalize turns a possibly-malformed raw response into a canonical
// AgentSignal. Confidence is rescaled to [0,1] for voting. The second
// return is non-nil when the response is rejected.
func Normalize(agentID string, raw model.RawAgentResponse, d Defaults) (model.AgentSignal, *Rejection) {
	var sig model.AgentSignal

	actionToken := raw.Action
	if actionToken == "" {
		actionToken = raw.Side
	}
	action, ok := model.ParseAction(actionToken)
	if !ok {
		return sig, &Rejection{Field: "action", Reason: fmt.Sprintf("unknown action %q", actionToken)}
	}

	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if len(d.AllowedSymbols) > 0 {
		allowed := false
		for _, s := range d.AllowedSymbols {
			if symbol == strings.ToUpper(s) {
				allowed = true
				break
			}
		}
		if !allowed {
			return sig, &Rejection{Field: "symbol", Reason: fmt.Sprintf("symbol %q not allowed", symbol)}
		}
	}

	reasoning := strings.TrimSpace(raw.Reasoning)
	if reasoning == "" {
		return sig, &Rejection{Field: "reasoning", Reason: "empty reasoning"}
	}

	allocation := DefaultAllocation(d.SectorRiskProfile)
	if raw.AllocationPercent != nil {
		allocation = model.ClampPercent(*raw.AllocationPercent)
	}

	confidence := model.Clamp(d.LastConfidence+d.ConfidenceDelta, 0, 100)
	if raw.Confidence != nil {
		confidence = model.Clamp(*raw.Confidence, 0, 100)
	}

	sig = model.AgentSignal{
		AgentID:           agentID,
		Action:            action,
		Confidence:        model.ClampSignalConfidence(confidence / 100),
		Symbol:            symbol,
		AllocationPercent: allocation,
		Reasoning:         reasoning,
	}
	return sig, nil
}

// DefaultAllocation maps a sector risk profile to an allocation percent:
// 0-33 -> 10-15%, 33-66 -> 15-25%, 66-100 -> 20-30%. Monotone within each
// segment.
func DefaultAllocation(riskProfile float64) float64 {
	r := model.Clamp(riskProfile, 0, 100)
	switch {
	case r <= 33:
		return 10 + (r/33)*5
	case r <= 66:
		return 15 + ((r-33)/33)*10
	default:
		return 20 + ((r-66)/34)*10
	}
}
