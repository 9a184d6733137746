package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"windfault"
	"windfault/internal/logger"
	"windfault/internal/repository"
	"windfault/internal/service"
)

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, &logger.Logger{SugaredLogger: zap.NewNop().Sugar()})
	return h.InitRoutes()
}

type mockOrchestrator struct {
	rec *windfault.Recommendation
	err error

	classifyCalls int
	lastEvent     windfault.FaultEvent

	snoozeCalls  int
	lastSnoozeID string
	lastSnoozeD  time.Duration

	applyCalls int
	lastAction windfault.Action
	lastNote   string
}

func (m *mockOrchestrator) Classify(_ context.Context, ev windfault.FaultEvent) (*windfault.Recommendation, error) {
	m.classifyCalls++
	m.lastEvent = ev
	return m.rec, m.err
}

func (m *mockOrchestrator) Apply(_ context.Context, eventID string, action windfault.Action, note string) (*windfault.Recommendation, error) {
	m.applyCalls++
	m.lastAction = action
	m.lastNote = note
	return m.rec, m.err
}

func (m *mockOrchestrator) Snooze(_ context.Context, eventID string, d time.Duration) (*windfault.Recommendation, error) {
	m.snoozeCalls++
	m.lastSnoozeID = eventID
	m.lastSnoozeD = d
	return m.rec, m.err
}

type mockReconciler struct{}

func (mockReconciler) Run(context.Context, time.Duration) {}

func (mockReconciler) ReconcileDue(context.Context, time.Time) (int, error) { return 0, nil }

type mockRegistry struct {
	turbine *windfault.Turbine
	list    []windfault.Turbine
	err     error

	lastOverride windfault.TurbineState
}

func (m *mockRegistry) Register(_ context.Context, p service.RegisterParams) (*windfault.Turbine, error) {
	return m.turbine, m.err
}

func (m *mockRegistry) Get(_ context.Context, turbineID string) (*windfault.Turbine, error) {
	return m.turbine, m.err
}

func (m *mockRegistry) List(_ context.Context) ([]windfault.Turbine, error) {
	return m.list, m.err
}

func (m *mockRegistry) OverrideState(_ context.Context, turbineID string, state windfault.TurbineState) (*windfault.Turbine, error) {
	m.lastOverride = state
	return m.turbine, m.err
}

func (m *mockRegistry) MarkCommLoss(_ context.Context, turbineID string) (*windfault.Turbine, error) {
	return m.turbine, m.err
}

func (m *mockRegistry) RestoreComm(_ context.Context, turbineID string) (*windfault.Turbine, error) {
	return m.turbine, m.err
}

type mockEventLog struct {
	events []windfault.FaultEvent
	event  *windfault.FaultEvent
	recs   []windfault.Recommendation
	rec    *windfault.Recommendation
	err    error

	lastEventQuery service.EventQuery
}

func (m *mockEventLog) ListEvents(_ context.Context, q service.EventQuery) ([]windfault.FaultEvent, error) {
	m.lastEventQuery = q
	return m.events, m.err
}

func (m *mockEventLog) GetEvent(_ context.Context, eventID string) (*windfault.FaultEvent, error) {
	if m.event == nil && m.err == nil {
		return nil, repository.ErrEventNotFound
	}
	return m.event, m.err
}

func (m *mockEventLog) ListRecommendations(_ context.Context, q service.RecommendationQuery) ([]windfault.Recommendation, error) {
	return m.recs, m.err
}

func (m *mockEventLog) GetRecommendation(_ context.Context, id string) (*windfault.Recommendation, error) {
	if m.rec == nil && m.err == nil {
		return nil, repository.ErrRecommendationNotFound
	}
	return m.rec, m.err
}

func (m *mockEventLog) DecisionHistory(_ context.Context, eventID string) ([]windfault.Recommendation, error) {
	return m.recs, m.err
}

type mockAnalytics struct {
	summary  *service.FleetSummary
	codes    []repository.CodeCount
	troubled []repository.TurbineCount
	freq     *service.CodeFrequency
	points   []service.TempPoint
	dist     *service.ActionBreakdown
	esc      *service.EscalationStats
	err      error

	lastWindow time.Duration
}

func (m *mockAnalytics) Summary(_ context.Context) (*service.FleetSummary, error) {
	return m.summary, m.err
}

func (m *mockAnalytics) TopCodes(_ context.Context, window time.Duration, limit int) ([]repository.CodeCount, error) {
	return m.codes, m.err
}

func (m *mockAnalytics) TroubledTurbines(_ context.Context, window time.Duration, limit int) ([]repository.TurbineCount, error) {
	return m.troubled, m.err
}

func (m *mockAnalytics) FaultFrequency(_ context.Context, code, turbineID string, window time.Duration) (*service.CodeFrequency, error) {
	m.lastWindow = window
	if code == "" && m.err == nil {
		return nil, &service.ValidationError{Field: "code", Reason: "is required"}
	}
	return m.freq, m.err
}

func (m *mockAnalytics) TemperatureTrend(_ context.Context, turbineID, code string, window time.Duration) ([]service.TempPoint, error) {
	m.lastWindow = window
	if m.points == nil && m.err == nil {
		return nil, repository.ErrTurbineNotFound
	}
	return m.points, m.err
}

func (m *mockAnalytics) ActionDistribution(_ context.Context, window time.Duration) (*service.ActionBreakdown, error) {
	m.lastWindow = window
	return m.dist, m.err
}

func (m *mockAnalytics) EscalationRate(_ context.Context, window time.Duration) (*service.EscalationStats, error) {
	m.lastWindow = window
	return m.esc, m.err
}
