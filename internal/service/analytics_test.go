package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"windfault"
	"windfault/internal/repository"
)

func newTestAnalytics(t *testing.T) (*AnalyticsService, *fakeTurbineRepo, *fakeEventRepo, *fakeRecRepo) {
	t.Helper()
	turbines := newFakeTurbineRepo()
	events := &fakeEventRepo{}
	recs := &fakeRecRepo{}
	return NewAnalyticsService(turbines, events, recs), turbines, events, recs
}

func TestFaultFrequency(t *testing.T) {
	t.Parallel()

	svc, _, events, _ := newTestAnalytics(t)
	now := time.Now().UTC()
	events.events = []windfault.FaultEvent{
		{EventID: "e1", TurbineID: "WT-001", Code: "YAW_ERROR", OccurredAt: now.Add(-time.Hour)},
		{EventID: "e2", TurbineID: "WT-001", Code: "YAW_ERROR", OccurredAt: now.Add(-48 * time.Hour)},
		{EventID: "e3", TurbineID: "WT-001", Code: "YAW_ERROR", OccurredAt: now.Add(-6 * 24 * time.Hour)},
		{EventID: "e4", TurbineID: "WT-002", Code: "YAW_ERROR", OccurredAt: now.Add(-2 * time.Hour)},
		// Outside the default 7-day window.
		{EventID: "e5", TurbineID: "WT-001", Code: "YAW_ERROR", OccurredAt: now.Add(-8 * 24 * time.Hour)},
		{EventID: "e6", TurbineID: "WT-001", Code: "EM_83", OccurredAt: now.Add(-time.Hour)},
	}

	freq, err := svc.FaultFrequency(context.Background(), " yaw_error ", "", 0)
	if err != nil {
		t.Fatalf("FaultFrequency: %v", err)
	}
	if freq.Code != "YAW_ERROR" {
		t.Fatalf("code = %q, want normalized upper-case", freq.Code)
	}
	if freq.Count != 4 {
		t.Fatalf("fleet count = %d, want 4", freq.Count)
	}
	if freq.Window != frequencyWindow.String() {
		t.Fatalf("window = %q, want default %q", freq.Window, frequencyWindow.String())
	}
	if freq.PerDay != 0.57 {
		t.Fatalf("per day = %v, want 0.57", freq.PerDay)
	}

	freq, err = svc.FaultFrequency(context.Background(), "YAW_ERROR", "WT-001", 0)
	if err != nil {
		t.Fatalf("FaultFrequency filtered: %v", err)
	}
	if freq.Count != 3 {
		t.Fatalf("turbine count = %d, want 3", freq.Count)
	}
}

func TestFaultFrequency_RequiresCode(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAnalytics(t)
	_, err := svc.FaultFrequency(context.Background(), "  ", "", time.Hour)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "code" {
		t.Fatalf("err = %v, want code validation error", err)
	}
}

func TestTemperatureTrend(t *testing.T) {
	t.Parallel()

	svc, turbines, events, _ := newTestAnalytics(t)
	seedTurbine(t, turbines, "WT-001", windfault.StateOnline)

	temp := func(v float64) *float64 { return &v }
	now := time.Now().UTC()
	events.events = []windfault.FaultEvent{
		{EventID: "e1", TurbineID: "WT-001", Code: "EM_83", TemperatureC: temp(81.5), OccurredAt: now.Add(-2 * time.Hour)},
		// No reading: skipped.
		{EventID: "e2", TurbineID: "WT-001", Code: "YAW_ERROR", OccurredAt: now.Add(-90 * time.Minute)},
		{EventID: "e3", TurbineID: "WT-001", Code: "EM_83", TemperatureC: temp(77.0), OccurredAt: now.Add(-time.Hour)},
		// Outside the default window.
		{EventID: "e4", TurbineID: "WT-001", Code: "EM_83", TemperatureC: temp(90.0), OccurredAt: now.Add(-8 * 24 * time.Hour)},
		{EventID: "e5", TurbineID: "WT-002", Code: "EM_83", TemperatureC: temp(60.0), OccurredAt: now.Add(-time.Hour)},
	}

	points, err := svc.TemperatureTrend(context.Background(), "WT-001", "", 0)
	if err != nil {
		t.Fatalf("TemperatureTrend: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].TemperatureC != 81.5 || points[1].TemperatureC != 77.0 {
		t.Fatalf("points not oldest-first: %+v", points)
	}

	points, err = svc.TemperatureTrend(context.Background(), "WT-001", "em_83", 0)
	if err != nil {
		t.Fatalf("TemperatureTrend filtered: %v", err)
	}
	if len(points) != 2 || points[0].Code != "EM_83" {
		t.Fatalf("code filter returned %+v", points)
	}
}

func TestTemperatureTrend_UnknownTurbine(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAnalytics(t)
	_, err := svc.TemperatureTrend(context.Background(), "WT-404", "", time.Hour)
	if !errors.Is(err, repository.ErrTurbineNotFound) {
		t.Fatalf("err = %v, want ErrTurbineNotFound", err)
	}
}

func TestActionDistribution(t *testing.T) {
	t.Parallel()

	svc, _, _, recs := newTestAnalytics(t)
	now := time.Now().UTC()
	recs.recs = []windfault.Recommendation{
		{ID: "r1", Action: windfault.ActionReset, CreatedAt: now.Add(-time.Hour)},
		{ID: "r2", Action: windfault.ActionEscalate, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "r3", Action: windfault.ActionReset, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}

	dist, err := svc.ActionDistribution(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("ActionDistribution: %v", err)
	}
	if dist.Total != 2 {
		t.Fatalf("total = %d, want 2 within 24h", dist.Total)
	}
	if dist.Distribution[windfault.ActionReset] != 1 || dist.Distribution[windfault.ActionEscalate] != 1 {
		t.Fatalf("distribution = %+v", dist.Distribution)
	}
	if dist.Window != (24 * time.Hour).String() {
		t.Fatalf("window = %q", dist.Window)
	}

	// Zero window covers the whole log.
	dist, err = svc.ActionDistribution(context.Background(), 0)
	if err != nil {
		t.Fatalf("ActionDistribution all time: %v", err)
	}
	if dist.Total != 3 || dist.Window != "" {
		t.Fatalf("all-time total = %d window = %q, want 3 and empty", dist.Total, dist.Window)
	}
}

func TestEscalationRate(t *testing.T) {
	t.Parallel()

	svc, _, _, recs := newTestAnalytics(t)
	now := time.Now().UTC()
	recs.recs = []windfault.Recommendation{
		{ID: "r1", Action: windfault.ActionEscalate, CreatedAt: now.Add(-time.Hour)},
		{ID: "r2", Action: windfault.ActionReset, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "r3", Action: windfault.ActionReset, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "r4", Action: windfault.ActionSnooze, CreatedAt: now.Add(-4 * time.Hour)},
		// Outside the default 30-day window.
		{ID: "r5", Action: windfault.ActionEscalate, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}

	stats, err := svc.EscalationRate(context.Background(), 0)
	if err != nil {
		t.Fatalf("EscalationRate: %v", err)
	}
	if stats.Total != 4 || stats.Escalated != 1 {
		t.Fatalf("total = %d escalated = %d, want 4 and 1", stats.Total, stats.Escalated)
	}
	if stats.RatePercent != 25.0 {
		t.Fatalf("rate = %v, want 25.0", stats.RatePercent)
	}
	if stats.Window != escalationWindow.String() {
		t.Fatalf("window = %q, want default %q", stats.Window, escalationWindow.String())
	}
}

func TestEscalationRate_EmptyLog(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestAnalytics(t)
	stats, err := svc.EscalationRate(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("EscalationRate: %v", err)
	}
	if stats.Total != 0 || stats.RatePercent != 0 {
		t.Fatalf("empty log stats = %+v", stats)
	}
}
