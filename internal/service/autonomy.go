package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	aegisotel "github.com/mirrorloop/aegis/internal/adapter/otel"
	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
	"github.com/mirrorloop/aegis/internal/port/database"
	"github.com/mirrorloop/aegis/internal/port/executor"
	"github.com/mirrorloop/aegis/internal/port/messagequeue"
	"github.com/mirrorloop/aegis/internal/port/schedule"
)

// EngineConfig carries the decision policy knobs into the services.
type EngineConfig struct {
	RiskBars        decision.RiskBars
	ConfidenceFloor float64
	ApprovalTTL     time.Duration
}

// ProposeResult is the full outcome of one proposal: the decision,
// plus the approval request when the decision deferred, or the
// execution result when the action ran unattended.
type ProposeResult struct {
	Decision  decision.Decision `json:"decision"`
	Request   *approval.Request `json:"request,omitempty"`
	Execution *executor.Result  `json:"execution,omitempty"`
}

// AutonomyService evaluates proposals against the owner's policy and
// drives the immediate consequence: execute, defer, or refuse.
type AutonomyService struct {
	store    database.Store
	settings *SettingsService
	schedule schedule.Provider
	executor executor.Executor
	queue    messagequeue.Queue
	metrics  *aegisotel.Metrics
	cfg      EngineConfig
}

// NewAutonomyService creates an AutonomyService. metrics may be nil.
func NewAutonomyService(
	store database.Store,
	settings *SettingsService,
	sched schedule.Provider,
	exec executor.Executor,
	queue messagequeue.Queue,
	metrics *aegisotel.Metrics,
	cfg EngineConfig,
) *AutonomyService {
	return &AutonomyService{
		store:    store,
		settings: settings,
		schedule: sched,
		executor: exec,
		queue:    queue,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Propose evaluates a submitted action for userID and carries out the
// decision. The decision and its audit record are always produced;
// execution or approval-request creation follow from it.
//
// A hard block returns the full result alongside ErrPolicyBlocked so
// callers get both the refusal and the decision that explains it.
func (s *AutonomyService) Propose(ctx context.Context, userID string, req action.SubmitRequest) (*ProposeResult, error) {
	now := time.Now().UTC()

	p, err := action.NewProposal(userID, req, now)
	if err != nil {
		return nil, err
	}

	ctx, span := aegisotel.StartDecisionSpan(ctx, p.ID, string(p.Capability))
	defer span.End()
	started := time.Now()

	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	windows, err := s.schedule.Windows(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve override windows for %s: %w", userID, err)
	}

	verdict := decision.EvaluateThresholds(p, settings, now, windows)
	d := decision.Decide(p, settings, verdict, s.cfg.RiskBars, s.cfg.ConfidenceFloor)

	rec := decision.NewRecord(p, d, now)
	if err := s.store.InsertDecision(ctx, &rec); err != nil {
		return nil, fmt.Errorf("record decision for action %s: %w", p.ID, err)
	}
	publishEvent(ctx, s.queue, decisionSubject(userID), rec)
	if s.metrics != nil {
		s.metrics.DecisionLatency.Record(ctx, time.Since(started).Seconds())
	}

	result := &ProposeResult{Decision: d}

	switch {
	case d.Blocked():
		s.count(ctx, countBlocked)
		slog.Info("proposal blocked by override window",
			"action_id", p.ID, "user_id", userID, "windows", verdict.BlockingWindows)
		return result, fmt.Errorf("action %s refused by override window: %w", p.ID, domain.ErrPolicyBlocked)

	case d.RequiresApproval:
		request, err := s.createApprovalRequest(ctx, p, d, verdict, settings, req, now)
		if err != nil {
			return nil, err
		}
		result.Request = request
		s.count(ctx, countDeferred)
		slog.Info("proposal deferred for approval",
			"action_id", p.ID, "request_id", request.ID, "reason", d.ApprovalReason)
		return result, nil

	default:
		exec, err := s.executor.Execute(ctx, p)
		if err != nil {
			s.count(ctx, countExecFailed)
			return result, fmt.Errorf("execute action %s: %w: %w", p.ID, domain.ErrExecution, err)
		}
		result.Execution = exec
		s.count(ctx, countExecuted)
		slog.Info("proposal executed unattended",
			"action_id", p.ID, "user_id", userID, "capability", p.Capability)
		return result, nil
	}
}

func (s *AutonomyService) createApprovalRequest(
	ctx context.Context,
	p *action.Proposal,
	d decision.Decision,
	verdict decision.ThresholdVerdict,
	settings *autonomy.Settings,
	req action.SubmitRequest,
	now time.Time,
) (*approval.Request, error) {
	risk := approval.RiskAssessment{
		Level:   p.RiskLevel,
		Factors: verdict.RiskFactors(p, settings),
		Impact:  p.Reasoning,
	}

	ttl := s.cfg.ApprovalTTL
	if req.ApprovalTTLSeconds > 0 {
		// Callers may shorten the window for low-stakes actions, never
		// extend it.
		if custom := time.Duration(req.ApprovalTTLSeconds) * time.Second; custom < ttl {
			ttl = custom
		}
	}

	request, err := approval.NewRequest(p, d, risk, ttl, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateApproval(ctx, request); err != nil {
		return nil, fmt.Errorf("create approval request for action %s: %w", p.ID, err)
	}
	publishEvent(ctx, s.queue, approvalSubject(p.UserID), request)
	return request, nil
}

type counterKind int

const (
	countExecuted counterKind = iota
	countDeferred
	countBlocked
	countExecFailed
)

func (s *AutonomyService) count(ctx context.Context, kind counterKind) {
	m := s.metrics
	if m == nil {
		return
	}
	switch kind {
	case countExecuted:
		m.DecisionsExecuted.Add(ctx, 1)
	case countDeferred:
		m.DecisionsDeferred.Add(ctx, 1)
	case countBlocked:
		m.DecisionsBlocked.Add(ctx, 1)
	case countExecFailed:
		m.ExecutionFailures.Add(ctx, 1)
	}
}

func decisionSubject(userID string) string {
	return "autonomy.decisions." + userID
}

func approvalSubject(userID string) string {
	return "autonomy.approvals." + userID
}
