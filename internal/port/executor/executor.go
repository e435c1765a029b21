// Package executor defines the port to the external action executor.
// The engine never performs side effects itself; it hands authorized
// proposals to an executor implementation and records the outcome.
package executor

import (
	"context"
	"encoding/json"

	"github.com/mirrorloop/aegis/internal/domain/action"
)

// Result is what the executor reports for a completed action.
type Result struct {
	ActionID string          `json:"actionId"`
	Output   json.RawMessage `json:"output,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Executor performs the actual side effect of an authorized action.
// An error means the action did not complete; the engine surfaces it to
// the caller and never retries on its own.
type Executor interface {
	Execute(ctx context.Context, p *action.Proposal) (*Result, error)
}
