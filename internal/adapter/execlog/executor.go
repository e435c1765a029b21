// Package execlog is a logging stand-in for the external action
// executor. It performs no side effect; real executors live outside
// this service and are wired in at startup.
package execlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/port/executor"
)

// Executor logs each authorized action and reports success.
type Executor struct{}

// New creates a logging executor.
func New() *Executor {
	return &Executor{}
}

// Execute records the authorized action and returns a synthetic result.
func (e *Executor) Execute(_ context.Context, p *action.Proposal) (*executor.Result, error) {
	slog.Info("action authorized for execution",
		"action_id", p.ID,
		"user_id", p.UserID,
		"capability", p.Capability,
		"action_type", p.ActionType,
	)
	return &executor.Result{
		ActionID: p.ID,
		Message:  fmt.Sprintf("%s action %s acknowledged", p.Capability, p.ActionType),
	}, nil
}
