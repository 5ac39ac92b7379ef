package oracle

import (
	"fmt"
	"strings"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// MarketContext is the sector snapshot embedded in argument prompts.
type MarketContext struct {
	SectorName    string
	Symbol        string
	CurrentPrice  float64
	ChangePercent float64
	Volatility    float64
	RiskScore     float64
}

// PromptBuilder composes prompts for a role token.
type PromptBuilder struct {
	role string
}

// NewPromptBuilder creates a prompt builder for an agent role.
func NewPromptBuilder(role string) *PromptBuilder {
	return &PromptBuilder{role: role}
}

var roleSystemPrompts = map[string]string{
	model.RoleResearch:  "You are a research agent. You dig into fundamentals and long-horizon context before suggesting a position. Favor accuracy over speed.",
	model.RoleAnalyst:   "You are a market analyst. Weigh recent price action and risk indicators to produce a balanced trading argument.",
	model.RoleTrader:    "You are an aggressive trader. React quickly to momentum and be explicit about entries.",
	model.RoleTechnical: "You are a technical analysis agent. Base your argument on price behavior, volatility and trend.",
	model.RoleSentiment: "You are a sentiment agent. Infer crowd positioning from the market snapshot and argue accordingly.",
	model.RoleMacro:     "You are a macro agent. Consider the broad regime implied by volatility and risk before committing.",
	model.RoleRisk:      "You are a risk agent. Your job is to find reasons NOT to trade; recommend exposure only when risk is demonstrably contained.",
	model.RoleAdvisor:   "You are an advisory agent. Synthesize a prudent recommendation for the sector manager.",
	model.RoleArbitrage: "You are an arbitrage agent. Look for dislocations between recent price and risk pricing.",
}

const defaultSystemPrompt = "You are a trading agent participating in a sector deliberation. Give a concrete, defensible trading argument."

// SystemPrompt returns the system prompt for the builder's role.
func (pb *PromptBuilder) SystemPrompt() string {
	if p, ok := roleSystemPrompts[pb.role]; ok {
		return p
	}
	return defaultSystemPrompt
}

// BuildArgumentPrompt builds the per-round deliberation prompt. The reply
// must be a JSON object the normalizer can canonicalize.
func (pb *PromptBuilder) BuildArgumentPrompt(ctx MarketContext, round int, priorArguments []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sector %s (%s), round %d of deliberation.\n\n", ctx.SectorName, ctx.Symbol, round)
	fmt.Fprintf(&b, "Current price: %.2f\n", ctx.CurrentPrice)
	fmt.Fprintf(&b, "Recent change: %.2f%%\n", ctx.ChangePercent)
	fmt.Fprintf(&b, "Volatility: %.3f\n", ctx.Volatility)
	fmt.Fprintf(&b, "Risk score: %.1f/100\n", ctx.RiskScore)

	if len(priorArguments) > 0 {
		b.WriteString("\nArguments so far:\n")
		for _, arg := range priorArguments {
			fmt.Fprintf(&b, "- %s\n", arg)
		}
	}

	b.WriteString(`
Respond with a JSON object:
{
  "action": "BUY" | "SELL" | "HOLD",
  "symbol": "` + ctx.Symbol + `",
  "allocationPercent": 0-100,
  "confidence": 0-100,
  "reasoning": "your argument"
}`)

	return b.String()
}

// AgentIdentity is the compact identity the oracle proposes for a new agent.
type AgentIdentity struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
}

// AgentProfile is the behavioral profile the oracle proposes for a new agent.
type AgentProfile struct {
	Style             string  `json:"style"`
	RiskTolerance     string  `json:"riskTolerance"`
	InitialConfidence float64 `json:"initialConfidence"`
}

// BuildIdentityPrompt asks for a compact {id, purpose} for a new agent.
func BuildIdentityPrompt(description, sectorName string) string {
	return fmt.Sprintf(`A new trading agent is being created for sector %q.
Description: %s

Respond with a JSON object:
{"id": "SHORT_UPPERCASE_ID", "purpose": "one sentence purpose"}

The id must be 1-32 characters, uppercase letters, digits and underscores only.`,
		sectorName, description)
}

// BuildProfilePrompt asks for a behavioral profile for a new agent.
func BuildProfilePrompt(description, role string) string {
	return fmt.Sprintf(`Propose a behavioral profile for a %s trading agent.
Description: %s

Respond with a JSON object:
{"style": "rapid|balanced|cautious|studious|deliberate|precise|analytical", "riskTolerance": "low|medium|high", "initialConfidence": 0-100}`,
		role, description)
}
