package approval

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mirrorloop/aegis/internal/domain"
)

// ResponseKind is a responder's answer.
type ResponseKind string

const (
	ResponseApprove ResponseKind = "approve"
	ResponseReject  ResponseKind = "reject"
	ResponseModify  ResponseKind = "modify"
)

// Response is one responder's answer to a request. A user has at most
// one response per request; resubmission overwrites the prior entry.
type Response struct {
	UserID        string          `json:"userId"`
	UserName      string          `json:"userName,omitempty"`
	Response      ResponseKind    `json:"response"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Modifications json.RawMessage `json:"modifications,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Validate checks the response payload.
func (resp *Response) Validate() error {
	if resp.UserID == "" {
		return fmt.Errorf("response userId is required: %w", domain.ErrValidation)
	}
	switch resp.Response {
	case ResponseApprove, ResponseReject, ResponseModify:
	default:
		return fmt.Errorf("invalid response %q: %w", resp.Response, domain.ErrValidation)
	}
	if len(resp.Modifications) > 0 && resp.Response != ResponseModify {
		return fmt.Errorf("modifications only allowed on a modify response: %w", domain.ErrValidation)
	}
	return nil
}

// ExpireIfDue applies the lazy expiration guard: a pending request past
// its deadline moves to expired. Returns true when a transition
// happened. Calling it on a non-pending or not-yet-due request is a
// no-op, so sweeps are idempotent.
func (r *Request) ExpireIfDue(now time.Time) bool {
	if r.Status != StatusPending || !now.After(r.ExpiresAt) {
		return false
	}
	// transition from pending to expired cannot fail
	_ = r.transition(StatusExpired, now)
	return true
}

// ApplyResponse records a responder's answer and resolves the request
// if the answer settles it.
//
// Resolution policy: any single reject settles the request as rejected
// (veto semantics). Approval requires an approve from every required
// responder; partial approval leaves the request pending. A modify
// response never resolves: it attaches proposed modifications for the
// owner to resubmit as a fresh proposal.
func (r *Request) ApplyResponse(resp Response, now time.Time) error {
	if err := resp.Validate(); err != nil {
		return err
	}
	if r.ExpireIfDue(now) {
		return fmt.Errorf("request %s expired at %s: %w", r.ID, r.ExpiresAt.Format(time.RFC3339), domain.ErrInvalidTransition)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("request %s is %s, not pending: %w", r.ID, r.Status, domain.ErrInvalidTransition)
	}
	if !r.CanRespond(resp.UserID) {
		return fmt.Errorf("user %s is not a responder on request %s: %w", resp.UserID, r.ID, domain.ErrValidation)
	}

	resp.Timestamp = now.UTC()
	r.upsertResponse(resp)

	if resp.Response == ResponseReject {
		return r.transition(StatusRejected, now)
	}
	if r.allApproved() {
		return r.transition(StatusApproved, now)
	}
	return nil
}

// MarkExecuted transitions an approved request after the executor
// succeeded. Execution failure leaves the request approved; retries are
// caller-driven, never automatic.
func (r *Request) MarkExecuted(now time.Time) error {
	return r.transition(StatusExecuted, now)
}

// Modified reports whether any recorded response proposed
// modifications. Used by the recommendation analyzer to separate clean
// approvals from negotiated ones.
func (r *Request) Modified() bool {
	for i := range r.Responses {
		if r.Responses[i].Response == ResponseModify {
			return true
		}
	}
	return false
}

func (r *Request) upsertResponse(resp Response) {
	for i := range r.Responses {
		if r.Responses[i].UserID == resp.UserID {
			r.Responses[i] = resp
			return
		}
	}
	r.Responses = append(r.Responses, resp)
}

func (r *Request) allApproved() bool {
	latest := make(map[string]ResponseKind, len(r.Responses))
	for i := range r.Responses {
		latest[r.Responses[i].UserID] = r.Responses[i].Response
	}
	for _, id := range r.RequiredResponders() {
		if latest[id] != ResponseApprove {
			return false
		}
	}
	return true
}
