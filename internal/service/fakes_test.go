package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"windfault"
	"windfault/internal/logger"
	"windfault/internal/repository"
)

// In-memory stand-ins for the sqlite repositories, behaving like the real
// queries: same filtering, same ordering, same not-found errors.

type fakeTurbineRepo struct {
	mu       sync.Mutex
	turbines map[string]windfault.Turbine
	nextID   int

	updateCalls int
	// transientFails makes the next N UpdateState calls fail like a locked
	// sqlite file.
	transientFails int
	// getHook, when set before concurrent use, runs at the top of
	// GetByTurbineID outside the repo mutex. Contention tests use it to
	// observe or gate the orchestrator's critical section.
	getHook func(turbineID string)
}

func newFakeTurbineRepo() *fakeTurbineRepo {
	return &fakeTurbineRepo{turbines: map[string]windfault.Turbine{}}
}

func (f *fakeTurbineRepo) Create(_ context.Context, t windfault.Turbine) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.turbines[t.TurbineID] = t
	return t.ID, nil
}

func (f *fakeTurbineRepo) GetByTurbineID(_ context.Context, turbineID string) (*windfault.Turbine, error) {
	if f.getHook != nil {
		f.getHook(turbineID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.turbines[turbineID]
	if !ok {
		return nil, repository.ErrTurbineNotFound
	}
	cp := t
	return &cp, nil
}

func (f *fakeTurbineRepo) List(_ context.Context) ([]windfault.Turbine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]windfault.Turbine, 0, len(f.turbines))
	for _, t := range f.turbines {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurbineID < out[j].TurbineID })
	return out, nil
}

func (f *fakeTurbineRepo) UpdateState(_ context.Context, turbineID string, state, prev windfault.TurbineState, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.transientFails > 0 {
		f.transientFails--
		return fmt.Errorf("update state of %q: database is locked", turbineID)
	}
	t, ok := f.turbines[turbineID]
	if !ok {
		return repository.ErrTurbineNotFound
	}
	t.State = state
	t.PrevState = prev
	t.LastStateChange = changedAt
	t.UpdatedAt = changedAt
	f.turbines[turbineID] = t
	return nil
}

func (f *fakeTurbineRepo) CountByState(_ context.Context) (map[windfault.TurbineState]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[windfault.TurbineState]int)
	for _, t := range f.turbines {
		out[t.State]++
	}
	return out, nil
}

type fakeEventRepo struct {
	mu        sync.Mutex
	events    []windfault.FaultEvent
	appendErr error
}

func (f *fakeEventRepo) Append(_ context.Context, e windfault.FaultEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, eventID string) (*windfault.FaultEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.EventID == eventID {
			cp := e
			return &cp, nil
		}
	}
	return nil, repository.ErrEventNotFound
}

func (f *fakeEventRepo) ListByCodeSince(_ context.Context, turbineID, code string, since time.Time) ([]windfault.FaultEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.FaultEvent
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, e := range f.events {
		if e.TurbineID == turbineID && e.Code == code && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeEventRepo) ListSince(_ context.Context, turbineID string, since time.Time) ([]windfault.FaultEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.FaultEvent
	for _, e := range f.events {
		if e.TurbineID == turbineID && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeEventRepo) List(_ context.Context, fl repository.EventFilter) ([]windfault.FaultEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.FaultEvent
	for _, e := range f.events {
		if fl.TurbineID != "" && e.TurbineID != fl.TurbineID {
			continue
		}
		if fl.Code != "" && e.Code != fl.Code {
			continue
		}
		if !fl.From.IsZero() && e.OccurredAt.Before(fl.From) {
			continue
		}
		if !fl.To.IsZero() && e.OccurredAt.After(fl.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if fl.Limit > 0 && len(out) > fl.Limit {
		out = out[:fl.Limit]
	}
	return out, nil
}

func (f *fakeEventRepo) TopCodesSince(_ context.Context, since time.Time, limit int) ([]repository.CodeCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, e := range f.events {
		if !e.OccurredAt.Before(since) {
			counts[e.Code]++
		}
	}
	out := make([]repository.CodeCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, repository.CodeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEventRepo) CountPerTurbineSince(_ context.Context, since time.Time, limit int) ([]repository.TurbineCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, e := range f.events {
		if !e.OccurredAt.Before(since) {
			counts[e.TurbineID]++
		}
	}
	out := make([]repository.TurbineCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, repository.TurbineCount{TurbineID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRecRepo struct {
	mu        sync.Mutex
	recs      []windfault.Recommendation
	appendErr error
	markErr   error
}

func (f *fakeRecRepo) Append(_ context.Context, r windfault.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.recs = append(f.recs, r)
	return nil
}

func (f *fakeRecRepo) GetByID(_ context.Context, id string) (*windfault.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, repository.ErrRecommendationNotFound
}

func (f *fakeRecRepo) ListByEvent(_ context.Context, eventID string) ([]windfault.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.Recommendation
	for _, r := range f.recs {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRecRepo) List(_ context.Context, fl repository.RecommendationFilter) ([]windfault.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.Recommendation
	for _, r := range f.recs {
		if fl.TurbineID != "" && r.TurbineID != fl.TurbineID {
			continue
		}
		if fl.EventID != "" && r.EventID != fl.EventID {
			continue
		}
		if fl.Action != "" && r.Action != fl.Action {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if fl.Limit > 0 && len(out) > fl.Limit {
		out = out[:fl.Limit]
	}
	return out, nil
}

func (f *fakeRecRepo) ListDue(_ context.Context, now time.Time) ([]windfault.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []windfault.Recommendation
	for _, r := range f.recs {
		if r.Action == windfault.ActionSnooze && r.SnoozeUntil != nil &&
			!r.SnoozeUntil.After(now) && r.ReconciledAt == nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnoozeUntil.Before(*out[j].SnoozeUntil) })
	return out, nil
}

func (f *fakeRecRepo) CountByActionSince(_ context.Context, since time.Time) (map[windfault.Action]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[windfault.Action]int)
	for _, r := range f.recs {
		if r.CreatedAt.Before(since) {
			continue
		}
		out[r.Action]++
	}
	return out, nil
}

func (f *fakeRecRepo) MarkReconciled(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for i := range f.recs {
		if f.recs[i].ID == id {
			if f.recs[i].ReconciledAt != nil {
				return false, nil
			}
			t := at
			f.recs[i].ReconciledAt = &t
			return true, nil
		}
	}
	return false, nil
}

func newFakeRepos() (*repository.Repository, *fakeTurbineRepo, *fakeEventRepo, *fakeRecRepo) {
	turbines := newFakeTurbineRepo()
	events := &fakeEventRepo{}
	recs := &fakeRecRepo{}
	return &repository.Repository{
		Turbines:        turbines,
		Events:          events,
		Recommendations: recs,
	}, turbines, events, recs
}

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}
