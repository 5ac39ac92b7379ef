package signal

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeHappyPath(t *testing.T) {
	sig, rej := Normalize("TRADER_01", model.RawAgentResponse{
		Action:            "buy",
		Symbol:            " acme ",
		AllocationPercent: floatPtr(25),
		Confidence:        floatPtr(80),
		Reasoning:         "momentum is strong",
	}, StandardDefaults())

	require.Nil(t, rej)
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, "ACME", sig.Symbol)
	assert.Equal(t, 25.0, sig.AllocationPercent)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
}

func TestNormalizeSideAliasAndRebalance(t *testing.T) {
	sig, rej := Normalize("A", model.RawAgentResponse{
		Side:      "REBALANCE",
		Symbol:    "ACME",
		Reasoning: "spread drift",
	}, StandardDefaults())
	require.Nil(t, rej)
	assert.Equal(t, model.ActionHold, sig.Action)
}

func TestNormalizeRejectsUnknownAction(t *testing.T) {
	_, rej := Normalize("A", model.RawAgentResponse{
		Action:    "SHORT",
		Reasoning: "x",
	}, StandardDefaults())
	require.NotNil(t, rej)
	assert.Equal(t, "action", rej.Field)
}

func TestNormalizeRejectsEmptyReasoning(t *testing.T) {
	_, rej := Normalize("A", model.RawAgentResponse{
		Action:    "BUY",
		Reasoning: "   ",
	}, StandardDefaults())
	require.NotNil(t, rej)
	assert.Equal(t, "reasoning", rej.Field)
}

func TestNormalizeEnforcesSymbolAllowlist(t *testing.T) {
	d := StandardDefaults()
	d.AllowedSymbols = []string{"ACME", "GLOB"}

	sig, rej := Normalize("A", model.RawAgentResponse{Action: "HOLD", Symbol: "glob", Reasoning: "x"}, d)
	require.Nil(t, rej)
	assert.Equal(t, "GLOB", sig.Symbol)

	_, rej = Normalize("A", model.RawAgentResponse{Action: "HOLD", Symbol: "EVIL", Reasoning: "x"}, d)
	require.NotNil(t, rej)
	assert.Equal(t, "symbol", rej.Field)
}

func TestNormalizeDefaultsConfidenceFromLast(t *testing.T) {
	d := StandardDefaults()
	d.LastConfidence = 70
	d.ConfidenceDelta = 2

	sig, rej := Normalize("A", model.RawAgentResponse{Action: "HOLD", Reasoning: "x"}, d)
	require.Nil(t, rej)
	assert.InDelta(t, 0.72, sig.Confidence, 1e-9)

	// Default never escapes [0,100] before rescale.
	d.LastConfidence = 99.5
	sig, rej = Normalize("A", model.RawAgentResponse{Action: "HOLD", Reasoning: "x"}, d)
	require.Nil(t, rej)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)
}

func TestNormalizeClampsProvidedValues(t *testing.T) {
	sig, rej := Normalize("A", model.RawAgentResponse{
		Action:            "SELL",
		AllocationPercent: floatPtr(140),
		Confidence:        floatPtr(-20),
		Reasoning:         "x",
	}, StandardDefaults())
	require.Nil(t, rej)
	assert.Equal(t, 100.0, sig.AllocationPercent)
	assert.Equal(t, 0.0, sig.Confidence)
}

func TestDefaultAllocationSegments(t *testing.T) {
	assert.InDelta(t, 10, DefaultAllocation(0), 1e-9)
	assert.InDelta(t, 15, DefaultAllocation(33), 1e-9)
	assert.InDelta(t, 20, DefaultAllocation(49.5), 0.2)
	assert.InDelta(t, 25, DefaultAllocation(66), 1e-9)
	assert.InDelta(t, 30, DefaultAllocation(100), 1e-9)

	// Monotone within each segment.
	for _, seg := range [][2]float64{{0, 33}, {33.5, 66}, {66.5, 100}} {
		lo, hi := DefaultAllocation(seg[0]), DefaultAllocation(seg[1])
		assert.LessOrEqual(t, lo, hi)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalize(normalize(x)) == normalize(x)", prop.ForAll(
		func(action string, symbol string, alloc, conf float64, reasoning string) bool {
			raw := model.RawAgentResponse{
				Action:            action,
				Symbol:            symbol,
				AllocationPercent: &alloc,
				Confidence:        &conf,
				Reasoning:         reasoning,
			}
			first, rej := Normalize("A", raw, StandardDefaults())
			if rej != nil {
				return true
			}
			conf2 := first.Confidence * 100
			again := model.RawAgentResponse{
				Action:            string(first.Action),
				Symbol:            first.Symbol,
				AllocationPercent: &first.AllocationPercent,
				Confidence:        &conf2,
				Reasoning:         first.Reasoning,
			}
			second, rej := Normalize("A", again, StandardDefaults())
			if rej != nil {
				return false
			}
			const eps = 1e-9
			return second.Action == first.Action &&
				second.Symbol == first.Symbol &&
				second.Reasoning == first.Reasoning &&
				math.Abs(second.AllocationPercent-first.AllocationPercent) < eps &&
				math.Abs(second.Confidence-first.Confidence) < eps
		},
		gen.OneConstOf("BUY", "buy", "SELL", "hold", "REBALANCE", "junk"),
		gen.RegexMatch(`[a-zA-Z]{1,6}`),
		gen.Float64Range(-50, 200),
		gen.Float64Range(-50, 200),
		gen.RegexMatch(`[a-z ]{0,20}`),
	))

	properties.Property("confidence always lands in [0,1]", prop.ForAll(
		func(conf float64) bool {
			raw := model.RawAgentResponse{Action: "HOLD", Confidence: &conf, Reasoning: "x"}
			sig, rej := Normalize("A", raw, StandardDefaults())
			return rej == nil && sig.Confidence >= 0 && sig.Confidence <= 1
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
