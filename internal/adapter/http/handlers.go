package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/middleware"
	"github.com/mirrorloop/aegis/internal/service"
)

// Handlers bundles the HTTP handlers with their service dependencies.
type Handlers struct {
	settings   *service.SettingsService
	autonomy   *service.AutonomyService
	approvals  *service.ApprovalService
	recommends *service.RecommendationService
}

// NewHandlers creates the handler set.
func NewHandlers(
	settings *service.SettingsService,
	auto *service.AutonomyService,
	approvals *service.ApprovalService,
	recommends *service.RecommendationService,
) *Handlers {
	return &Handlers{
		settings:   settings,
		autonomy:   auto,
		approvals:  approvals,
		recommends: recommends,
	}
}

// getSettings handles GET /api/v1/users/{userID}/autonomy/settings.
// Users without stored settings receive the defaults.
func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "userID")

	st, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "settings not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// putSettings handles PUT /api/v1/users/{userID}/autonomy/settings.
// The body is a partial update merged over the current settings.
func (h *Handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "userID")
	actorID := middleware.CallerID(r.Context())

	req, ok := readJSON[autonomy.UpdateRequest](w, r)
	if !ok {
		return
	}

	st, err := h.settings.Update(r.Context(), userID, actorID, req)
	if err != nil {
		writeDomainError(w, err, "settings not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// getSettingsHistory handles GET /api/v1/users/{userID}/autonomy/settings/history.
func (h *Handlers) getSettingsHistory(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.settings.History(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err, "history not found")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(records))
}

// proposeAction handles POST /api/v1/actions/propose. The proposing
// user is the authenticated caller; the response carries the decision
// plus either the created approval request or the execution result.
// A proposal refused by an override window returns 403.
func (h *Handlers) proposeAction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.CallerID(r.Context())

	req, ok := readJSON[action.SubmitRequest](w, r)
	if !ok {
		return
	}

	result, err := h.autonomy.Propose(r.Context(), userID, req)
	if err != nil {
		// A policy refusal still carries the decision that explains it.
		if errors.Is(err, domain.ErrPolicyBlocked) && result != nil {
			writeJSON(w, http.StatusForbidden, result)
			return
		}
		writeDomainError(w, err, "user not found")
		return
	}

	if result.Decision.RequiresApproval {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listApprovals handles GET /api/v1/users/{userID}/approvals. The
// optional status query parameter narrows the listing.
func (h *Handlers) listApprovals(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "userID")

	var status approval.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = approval.Status(raw)
		switch status {
		case approval.StatusPending, approval.StatusApproved, approval.StatusRejected,
			approval.StatusExpired, approval.StatusExecuted:
		default:
			writeError(w, http.StatusBadRequest, "unknown status filter "+strconv.Quote(raw))
			return
		}
	}

	requests, err := h.approvals.List(r.Context(), userID, status)
	if err != nil {
		writeDomainError(w, err, "approvals not found")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(requests))
}

// getApproval handles GET /api/v1/approvals/{requestID}.
func (h *Handlers) getApproval(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "requestID")

	req, err := h.approvals.Get(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type respondRequest struct {
	UserName      string          `json:"userName,omitempty"`
	Response      string          `json:"response"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Modifications json.RawMessage `json:"modifications,omitempty"`
}

// respondApproval handles POST /api/v1/approvals/{requestID}/respond.
// The responding user is the authenticated caller.
func (h *Handlers) respondApproval(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "requestID")
	callerID := middleware.CallerID(r.Context())

	body, ok := readJSON[respondRequest](w, r)
	if !ok {
		return
	}

	req, err := h.approvals.Respond(r.Context(), requestID, callerID, body.UserName,
		approval.ResponseKind(body.Response), body.Reasoning, body.Modifications)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type executeResponse struct {
	Request   *approval.Request `json:"request"`
	Execution any               `json:"execution,omitempty"`
}

// executeApproval handles POST /api/v1/approvals/{requestID}/execute.
// Only the owning user may trigger execution of an approved request.
func (h *Handlers) executeApproval(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "requestID")
	callerID := middleware.CallerID(r.Context())

	result, err := h.approvals.Execute(r.Context(), requestID, callerID)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}

	req, err := h.approvals.Get(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Request: req, Execution: result})
}

// getRecommendations handles GET /api/v1/users/{userID}/autonomy/recommendations.
func (h *Handlers) getRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "userID")

	recs, err := h.recommends.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(recs))
}
