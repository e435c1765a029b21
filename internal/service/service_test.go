package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
	"github.com/mirrorloop/aegis/internal/port/executor"
)

// fakeStore is an in-memory database.Store for service tests.
type fakeStore struct {
	mu        sync.Mutex
	settings  map[string]*autonomy.Settings
	history   []autonomy.ChangeRecord
	approvals map[string]*approval.Request
	decisions []decision.Record

	failPut    error
	failCreate error

	// afterList runs once after the next ListApprovalsByUser read, with
	// the store unlocked, to interleave a write behind a listing snapshot.
	afterList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:  map[string]*autonomy.Settings{},
		approvals: map[string]*approval.Request{},
	}
}

func (f *fakeStore) GetSettings(_ context.Context, userID string) (*autonomy.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) PutSettings(_ context.Context, s *autonomy.Settings) error {
	if f.failPut != nil {
		return f.failPut
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.settings[s.UserID] = &cp
	return nil
}

func (f *fakeStore) AppendSettingsHistory(_ context.Context, rec *autonomy.ChangeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *rec)
	return nil
}

func (f *fakeStore) ListSettingsHistory(_ context.Context, userID string, limit int) ([]autonomy.ChangeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []autonomy.ChangeRecord
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].UserID == userID {
			out = append(out, f.history[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateApproval(_ context.Context, r *approval.Request) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.approvals[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetApproval(_ context.Context, id string) (*approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.approvals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	cp.Responses = append([]approval.Response(nil), r.Responses...)
	return &cp, nil
}

func (f *fakeStore) UpdateApproval(_ context.Context, r *approval.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.approvals[r.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *r
	cp.Responses = append([]approval.Response(nil), r.Responses...)
	f.approvals[r.ID] = &cp
	return nil
}

func (f *fakeStore) ListApprovalsByUser(_ context.Context, userID string, status approval.Status) ([]approval.Request, error) {
	f.mu.Lock()
	var out []approval.Request
	for _, r := range f.approvals {
		if !f.involves(r, userID) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	hook := f.afterList
	f.afterList = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) involves(r *approval.Request, userID string) bool {
	if r.UserID == userID {
		return true
	}
	for _, id := range r.Proposal.AffectedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (f *fakeStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Request
	for _, r := range f.approvals {
		if r.Status == approval.StatusPending && now.After(r.ExpiresAt) {
			out = append(out, *r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListSettledApprovals(_ context.Context, userID string, since time.Time) ([]approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Request
	for _, r := range f.approvals {
		if r.UserID == userID && r.Status != approval.StatusPending && !r.CreatedAt.Before(since) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.approvals {
		if r.Status.Terminal() && !r.ResolvedAt.IsZero() && r.ResolvedAt.Before(cutoff) {
			delete(f.approvals, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertDecision(_ context.Context, rec *decision.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, *rec)
	return nil
}

func (f *fakeStore) ListDecisions(_ context.Context, userID string, limit int) ([]decision.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []decision.Record
	for i := len(f.decisions) - 1; i >= 0; i-- {
		if f.decisions[i].UserID == userID {
			out = append(out, f.decisions[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// fakeQueue records published events.
type fakeQueue struct {
	mu       sync.Mutex
	subjects []string
}

func (q *fakeQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subjects = append(q.subjects, subject)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) published(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, s := range q.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// fakeExecutor records executions and can be told to fail.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	fail     error
}

func (e *fakeExecutor) Execute(_ context.Context, p *action.Proposal) (*executor.Result, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, p.ID)
	return &executor.Result{ActionID: p.ID, Message: "done"}, nil
}

func (e *fakeExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executed)
}

// fakeSchedule returns a fixed window set.
type fakeSchedule struct {
	windows []decision.Window
	err     error
}

func (s *fakeSchedule) Windows(_ context.Context, _ string, _ time.Time) ([]decision.Window, error) {
	return s.windows, s.err
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var errBoom = errors.New("boom")
