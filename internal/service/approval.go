package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	aegisotel "github.com/mirrorloop/aegis/internal/adapter/otel"
	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/port/database"
	"github.com/mirrorloop/aegis/internal/port/executor"
	"github.com/mirrorloop/aegis/internal/port/messagequeue"
)

// ApprovalService drives approval requests to a terminal outcome. All
// state transitions on one request are serialized through a per-request
// mutex so a response can never race an expiration sweep.
type ApprovalService struct {
	store    database.Store
	executor executor.Executor
	queue    messagequeue.Queue
	metrics  *aegisotel.Metrics

	sweepInterval time.Duration
	retention     time.Duration

	locks     sync.Map // requestID -> *sync.Mutex
	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewApprovalService creates an ApprovalService. metrics may be nil;
// retention <= 0 disables the retention sweep.
func NewApprovalService(
	store database.Store,
	exec executor.Executor,
	queue messagequeue.Queue,
	metrics *aegisotel.Metrics,
	sweepInterval, retention time.Duration,
) *ApprovalService {
	return &ApprovalService{
		store:         store,
		executor:      exec,
		queue:         queue,
		metrics:       metrics,
		sweepInterval: sweepInterval,
		retention:     retention,
		stopSweep:     make(chan struct{}),
	}
}

// Respond records userID's answer on a request. The lazy expiration
// guard runs first: a pending request past its deadline is moved to
// expired (and persisted) before the response is considered, so the
// caller observes the expired state rather than a silently dropped
// answer.
func (s *ApprovalService) Respond(ctx context.Context, requestID, userID, userName string, kind approval.ResponseKind, reasoning string, modifications json.RawMessage) (*approval.Request, error) {
	ctx, span := aegisotel.StartRespondSpan(ctx, requestID, userID)
	defer span.End()

	unlock := s.lock(requestID)
	defer unlock()

	r, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if r.ExpireIfDue(now) {
		s.persistExpiry(ctx, r)
		return r, fmt.Errorf("request %s is %s: %w", r.ID, r.Status, domain.ErrInvalidTransition)
	}

	resp := approval.Response{
		UserID:        userID,
		UserName:      userName,
		Response:      kind,
		Reasoning:     reasoning,
		Modifications: modifications,
	}
	if err := r.ApplyResponse(resp, now); err != nil {
		return r, err
	}

	if err := s.store.UpdateApproval(ctx, r); err != nil {
		return nil, fmt.Errorf("persist response on %s: %w", requestID, err)
	}

	if r.Status != approval.StatusPending {
		if s.metrics != nil {
			s.metrics.ApprovalsResolved.Add(ctx, 1)
		}
		publishEvent(ctx, s.queue, approvalSubject(r.UserID), r)
		slog.Info("approval request resolved",
			"request_id", r.ID, "status", r.Status, "responder", userID)
	}
	return r, nil
}

// Execute hands an approved request's action to the external executor.
// Only the owning user may trigger execution. On executor failure the
// request stays approved; retrying is an explicit human decision.
func (s *ApprovalService) Execute(ctx context.Context, requestID, callerID string) (*executor.Result, error) {
	ctx, span := aegisotel.StartExecuteSpan(ctx, requestID)
	defer span.End()

	unlock := s.lock(requestID)
	defer unlock()

	r, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.UserID != callerID {
		return nil, fmt.Errorf("request %s is not owned by %s: %w", requestID, callerID, domain.ErrValidation)
	}
	if r.Status != approval.StatusApproved {
		return nil, fmt.Errorf("request %s is %s, not approved: %w", r.ID, r.Status, domain.ErrInvalidTransition)
	}

	result, err := s.executor.Execute(ctx, &r.Proposal)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ExecutionFailures.Add(ctx, 1)
		}
		return nil, fmt.Errorf("execute approved action %s: %w: %w", r.Proposal.ID, domain.ErrExecution, err)
	}

	now := time.Now().UTC()
	if err := r.MarkExecuted(now); err != nil {
		return nil, err
	}
	if err := s.store.UpdateApproval(ctx, r); err != nil {
		return nil, fmt.Errorf("persist execution of %s: %w", requestID, err)
	}
	publishEvent(ctx, s.queue, approvalSubject(r.UserID), r)
	slog.Info("approved action executed", "request_id", r.ID, "action_id", r.Proposal.ID)
	return result, nil
}

// Get returns one request, applying the lazy expiration guard.
func (s *ApprovalService) Get(ctx context.Context, requestID string) (*approval.Request, error) {
	unlock := s.lock(requestID)
	defer unlock()

	r, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.ExpireIfDue(time.Now().UTC()) {
		s.persistExpiry(ctx, r)
	}
	return r, nil
}

// List returns requests the user owns or responds to, optionally
// filtered by status. Requests past their deadline surface as expired
// even if the sweep has not reached them yet; a pending filter
// therefore never shows an overdue request.
func (s *ApprovalService) List(ctx context.Context, userID string, status approval.Status) ([]approval.Request, error) {
	requests, err := s.store.ListApprovalsByUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := requests[:0]
	for i := range requests {
		r := requests[i]
		if r.Status == approval.StatusPending && now.After(r.ExpiresAt) {
			// The listing row is a stale snapshot: a response may have
			// settled the request since the read. expireOne re-reads
			// under the per-request lock before transitioning.
			fresh := s.expireOne(ctx, r.ID, now)
			if fresh == nil {
				continue
			}
			r = *fresh
			if status != "" && r.Status != status {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// StartSweeper launches the background expiration and retention sweep.
func (s *ApprovalService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.stopSweep:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("approval sweeper started", "interval", s.sweepInterval)
}

// StopSweeper stops the background sweep.
func (s *ApprovalService) StopSweeper() {
	s.sweepOnce.Do(func() {
		close(s.stopSweep)
	})
}

// sweep expires overdue pending requests and applies retention to
// terminal ones. Idempotent: re-sweeping an already-expired or
// terminal request is a no-op.
func (s *ApprovalService) sweep(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.store.ListExpiredPending(ctx, now, 0)
	if err != nil {
		slog.Error("list expired pending", "error", err)
		return
	}
	for i := range due {
		s.expireOne(ctx, due[i].ID, now)
	}

	if s.retention > 0 {
		cutoff := now.Add(-s.retention)
		deleted, err := s.store.DeleteTerminalBefore(ctx, cutoff)
		if err != nil {
			slog.Error("retention sweep", "error", err)
		} else if deleted > 0 {
			slog.Info("retention sweep removed requests", "count", deleted, "cutoff", cutoff)
		}
	}
}

// expireOne re-reads a request under its lock before transitioning, in
// case a response landed between the listing and the sweep. It returns
// the authoritative state, or nil if the request could not be read.
func (s *ApprovalService) expireOne(ctx context.Context, requestID string, now time.Time) *approval.Request {
	unlock := s.lock(requestID)
	defer unlock()

	r, err := s.store.GetApproval(ctx, requestID)
	if err != nil {
		slog.Error("sweep get approval", "request_id", requestID, "error", err)
		return nil
	}
	if r.ExpireIfDue(now) {
		s.persistExpiry(ctx, r)
	}
	return r
}

func (s *ApprovalService) persistExpiry(ctx context.Context, r *approval.Request) {
	if err := s.store.UpdateApproval(ctx, r); err != nil {
		slog.Error("persist expiry", "request_id", r.ID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ApprovalsExpired.Add(ctx, 1)
	}
	publishEvent(ctx, s.queue, approvalSubject(r.UserID), r)
	slog.Info("approval request expired", "request_id", r.ID, "expired_at", r.ExpiresAt)
}

// lock serializes transitions for one request ID.
func (s *ApprovalService) lock(requestID string) func() {
	v, _ := s.locks.LoadOrStore(requestID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
