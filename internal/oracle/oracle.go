// Package oracle defines the reasoning oracle boundary: a structured prompt
// in, free-form text out. The HTTP client wraps the call with a rate
// limiter, a circuit breaker, and retry with exponential backoff; parsing
// utilities pull a JSON object out of possibly-fenced responses.
package oracle

import (
	"context"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// Request is a structured prompt for the oracle.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
}

// ReasoningOracle produces a completion for a prompt. Implementations may
// call a language model; the engine treats the result as untrusted text.
type ReasoningOracle interface {
	Complete(ctx context.Context, req Request) (string, error)
	Enabled() bool
}

// Disabled is the no-op oracle used when ORACLE_ENABLED is false. Every
// call fails with ErrOracleUnavailable so callers take the deterministic
// fallback path.
type Disabled struct{}

// Complete always fails.
func (Disabled) Complete(ctx context.Context, req Request) (string, error) {
	return "", model.ErrOracleUnavailable
}

// Enabled reports false.
func (Disabled) Enabled() bool { return false }
