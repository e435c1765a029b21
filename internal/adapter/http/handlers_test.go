package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	aegishttp "github.com/mirrorloop/aegis/internal/adapter/http"
	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
	"github.com/mirrorloop/aegis/internal/domain/recommend"
	"github.com/mirrorloop/aegis/internal/middleware"
	"github.com/mirrorloop/aegis/internal/port/executor"
	"github.com/mirrorloop/aegis/internal/port/schedule"
	"github.com/mirrorloop/aegis/internal/service"
)

// memStore is a minimal in-memory database.Store for handler tests.
type memStore struct {
	settings  map[string]*autonomy.Settings
	history   []autonomy.ChangeRecord
	approvals map[string]*approval.Request
	decisions []decision.Record
}

func newMemStore() *memStore {
	return &memStore{
		settings:  map[string]*autonomy.Settings{},
		approvals: map[string]*approval.Request{},
	}
}

func (m *memStore) GetSettings(_ context.Context, userID string) (*autonomy.Settings, error) {
	s, ok := m.settings[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) PutSettings(_ context.Context, s *autonomy.Settings) error {
	cp := *s
	m.settings[s.UserID] = &cp
	return nil
}

func (m *memStore) AppendSettingsHistory(_ context.Context, rec *autonomy.ChangeRecord) error {
	m.history = append(m.history, *rec)
	return nil
}

func (m *memStore) ListSettingsHistory(_ context.Context, userID string, _ int) ([]autonomy.ChangeRecord, error) {
	var out []autonomy.ChangeRecord
	for _, rec := range m.history {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) CreateApproval(_ context.Context, r *approval.Request) error {
	cp := *r
	m.approvals[r.ID] = &cp
	return nil
}

func (m *memStore) GetApproval(_ context.Context, id string) (*approval.Request, error) {
	r, ok := m.approvals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateApproval(_ context.Context, r *approval.Request) error {
	cp := *r
	m.approvals[r.ID] = &cp
	return nil
}

func (m *memStore) ListApprovalsByUser(_ context.Context, userID string, status approval.Status) ([]approval.Request, error) {
	var out []approval.Request
	for _, r := range m.approvals {
		if r.UserID != userID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) ListExpiredPending(_ context.Context, _ time.Time, _ int) ([]approval.Request, error) {
	return nil, nil
}

func (m *memStore) ListSettledApprovals(_ context.Context, userID string, _ time.Time) ([]approval.Request, error) {
	var out []approval.Request
	for _, r := range m.approvals {
		if r.UserID == userID && r.Status != approval.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTerminalBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) InsertDecision(_ context.Context, rec *decision.Record) error {
	m.decisions = append(m.decisions, *rec)
	return nil
}

func (m *memStore) ListDecisions(_ context.Context, _ string, _ int) ([]decision.Record, error) {
	return m.decisions, nil
}

type okExecutor struct{}

func (okExecutor) Execute(_ context.Context, p *action.Proposal) (*executor.Result, error) {
	return &executor.Result{ActionID: p.ID, Message: "done"}, nil
}

type noWindows struct{}

func (noWindows) Windows(_ context.Context, _ string, _ time.Time) ([]decision.Window, error) {
	return nil, nil
}

// activeWindow reports one window of the given kind covering any moment.
type activeWindow struct {
	kind decision.WindowKind
}

func (a activeWindow) Windows(_ context.Context, _ string, now time.Time) ([]decision.Window, error) {
	return []decision.Window{{Kind: a.kind, Start: now.Add(-time.Hour), End: now.Add(time.Hour)}}, nil
}

func newTestServer(store *memStore) http.Handler {
	return newTestServerWithSchedule(store, noWindows{})
}

func newTestServerWithSchedule(store *memStore, sched schedule.Provider) http.Handler {
	settingsSvc := service.NewSettingsService(store, nil, 0, false)
	autonomySvc := service.NewAutonomyService(store, settingsSvc, sched, okExecutor{}, nil, nil,
		service.EngineConfig{
			RiskBars:        decision.DefaultRiskBars(),
			ConfidenceFloor: decision.DefaultConfidenceFloor,
			ApprovalTTL:     24 * time.Hour,
		})
	approvalSvc := service.NewApprovalService(store, okExecutor{}, nil, nil, time.Minute, 0)
	recommendSvc := service.NewRecommendationService(store, settingsSvc,
		decision.DefaultRiskBars(), recommend.DefaultWatermarks(), 30*24*time.Hour)

	handlers := aegishttp.NewHandlers(settingsSvc, autonomySvc, approvalSvc, recommendSvc)

	r := chi.NewRouter()
	r.Use(middleware.Identity)
	aegishttp.MountRoutes(r, handlers, nil)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-User-ID", caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSettingsDefaults(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/autonomy/settings", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var st autonomy.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.UserID != "user-1" {
		t.Errorf("expected userId user-1, got %s", st.UserID)
	}
	if st.Level(autonomy.CapScheduling) != 60 {
		t.Errorf("expected default level 60, got %d", st.Level(autonomy.CapScheduling))
	}
}

func TestPutSettingsRoundTrip(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodPut, "/api/v1/users/user-1/autonomy/settings", "user-1",
		`{"levels":{"scheduling":150}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var st autonomy.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Level(autonomy.CapScheduling) != 100 {
		t.Errorf("expected clamped level 100, got %d", st.Level(autonomy.CapScheduling))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/autonomy/settings/history", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 history, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"actorId":"user-1"`) {
		t.Errorf("history should record the actor, got %s", rec.Body)
	}
}

func TestPutSettingsRejectsUnknownCapability(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodPut, "/api/v1/users/user-1/autonomy/settings", "user-1",
		`{"levels":{"bogus":50}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestProposeExecutes(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"create_event","riskLevel":"low","confidence":0.9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"canExecute":true`) {
		t.Errorf("expected executable decision, got %s", rec.Body)
	}
}

func TestProposeDefers(t *testing.T) {
	store := newMemStore()
	h := newTestServer(store)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"book_flight","riskLevel":"critical","confidence":0.9}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	if len(store.approvals) != 1 {
		t.Errorf("expected one stored approval request, got %d", len(store.approvals))
	}
}

func TestProposeBlockedReturnsForbidden(t *testing.T) {
	store := newMemStore()
	h := newTestServerWithSchedule(store, activeWindow{kind: decision.WindowFamilyTime})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"create_event","riskLevel":"low","confidence":0.9}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body)
	}
	// The refusal carries the decision, not just an error message.
	if !strings.Contains(rec.Body.String(), `"canExecute":false`) ||
		!strings.Contains(rec.Body.String(), `"requiresApproval":false`) {
		t.Errorf("expected the blocking decision in the body, got %s", rec.Body)
	}
	if len(store.approvals) != 0 {
		t.Error("blocked proposal must not create an approval request")
	}
}

func TestProposeInvalidBody(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"x","riskLevel":"low","confidence":2}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestProposeRequiresIdentity(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "",
		`{"capability":"scheduling","actionType":"x","riskLevel":"low","confidence":0.9}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	store := newMemStore()
	h := newTestServer(store)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"book_flight","riskLevel":"critical","confidence":0.9}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	var proposed struct {
		Request approval.Request `json:"request"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &proposed); err != nil {
		t.Fatal(err)
	}
	id := proposed.Request.ID

	// The pending request shows up in the owner's listing.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/approvals?status=pending", "user-1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), id) {
		t.Fatalf("expected pending listing with %s, got %d: %s", id, rec.Code, rec.Body)
	}

	// Approve, then execute.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+id+"/respond", "user-1",
		`{"response":"approve","reasoning":"go ahead"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 respond, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"status":"approved"`) {
		t.Errorf("expected approved request, got %s", rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+id+"/execute", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 execute, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"status":"executed"`) {
		t.Errorf("expected executed request, got %s", rec.Body)
	}

	// Re-executing a terminal request conflicts.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+id+"/execute", "user-1", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on re-execute, got %d", rec.Code)
	}
}

func TestRespondInvalidKind(t *testing.T) {
	store := newMemStore()
	h := newTestServer(store)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/actions/propose", "user-1",
		`{"capability":"scheduling","actionType":"x","riskLevel":"critical","confidence":0.9}`)
	var proposed struct {
		Request approval.Request `json:"request"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &proposed); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+proposed.Request.ID+"/respond", "user-1",
		`{"response":"maybe"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestGetApprovalNotFound(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/approvals/missing", "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListApprovalsBadStatus(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/approvals?status=bogus", "user-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListApprovalsEmptyIsArray(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/approvals", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body)
	}
}

func TestGetRecommendationsEmpty(t *testing.T) {
	h := newTestServer(newMemStore())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/user-1/autonomy/recommendations", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body)
	}
}
