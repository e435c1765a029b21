// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed input rejected at the boundary.
// Nothing is partially applied when this is returned.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition indicates an operation was attempted against an
// approval request that is not in the required state. The caller's view
// is stale and should be reconciled with the authoritative state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrPolicyBlocked indicates an action was refused by an override
// window. This is a definitive refusal, never retried.
var ErrPolicyBlocked = errors.New("blocked by autonomy policy")

// ErrExecution indicates the external action executor failed. The
// approval request stays approved so a human can retry explicitly.
var ErrExecution = errors.New("action execution failed")
