package model

import "strings"

// Action is a committed trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Actions lists all committed actions in lexical tie-break order.
var Actions = []Action{ActionBuy, ActionHold, ActionSell}

// ParseAction case-folds a raw action token. REBALANCE maps to HOLD at this
// layer. Unknown tokens return false.
func ParseAction(raw string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return ActionBuy, true
	case "SELL":
		return ActionSell, true
	case "HOLD", "REBALANCE":
		return ActionHold, true
	default:
		return "", false
	}
}

// AgentSignal is the canonical in-memory signal produced by the normalizer.
// It is the only shape the voting engine accepts.
type AgentSignal struct {
	AgentID           string  `json:"agentId"`
	Action            Action  `json:"action"`
	Confidence        float64 `json:"confidence"` // [0,1]
	Symbol            string  `json:"symbol"`
	AllocationPercent float64 `json:"allocationPercent"` // [0,100]
	Reasoning         string  `json:"reasoning"`
	WinRate           float64 `json:"winRate"` // [0,1]
	WinRateKnown      bool    `json:"winRateKnown"`
}

// RawAgentResponse is the untrusted free-form object an oracle returns.
// Absent numeric fields stay nil so the normalizer can apply defaults.
type RawAgentResponse struct {
	Action            string   `json:"action"`
	Side              string   `json:"side"` // alias for action
	Symbol            string   `json:"symbol"`
	AllocationPercent *float64 `json:"allocationPercent"`
	Confidence        *float64 `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
}
