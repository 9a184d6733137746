package service

import (
	"context"
	"fmt"
	"time"

	"windfault"
	"windfault/internal/config"
	"windfault/internal/logger"
	"windfault/internal/repository"
)

// ValidationError rejects a malformed fault event before it reaches the
// decision engine, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// RegisterParams carries the registry-owned attributes of a new turbine.
type RegisterParams struct {
	TurbineID  string
	Name       string
	Location   string
	Model      string
	CapacityKW float64
}

// EventQuery filters fault event listings.
type EventQuery struct {
	TurbineID string
	Code      string
	From      time.Time
	To        time.Time
	Limit     int
}

// RecommendationQuery filters recommendation listings.
type RecommendationQuery struct {
	TurbineID string
	EventID   string
	Action    windfault.Action
	Limit     int
}

// FleetSummary is the aggregate view served by the analytics endpoints.
type FleetSummary struct {
	TotalTurbines    int                           `json:"total_turbines"`
	ByState          map[windfault.TurbineState]int `json:"by_state"`
	TopCodes24h      []repository.CodeCount        `json:"top_codes_24h"`
	TroubledTurbines []repository.TurbineCount     `json:"troubled_turbines_24h"`
}

// Orchestrator is the core classification entry point: every state mutation
// for a turbine funnels through it under a per-turbine lock.
type Orchestrator interface {
	// Classify ingests a fault event, runs the decision cascade against the
	// turbine's history and applies the outcome.
	Classify(ctx context.Context, ev windfault.FaultEvent) (*windfault.Recommendation, error)
	// Apply records an operator-directed recommendation for an existing
	// event, bypassing the cascade but not the state mapping.
	Apply(ctx context.Context, eventID string, action windfault.Action, note string) (*windfault.Recommendation, error)
	// Snooze defers the decision on an event; zero duration uses the
	// configured default.
	Snooze(ctx context.Context, eventID string, d time.Duration) (*windfault.Recommendation, error)
}

// Reconciler re-evaluates elapsed deferrals on a timer.
type Reconciler interface {
	Run(ctx context.Context, tick time.Duration)
	ReconcileDue(ctx context.Context, now time.Time) (int, error)
}

// Registry manages turbine records and manual state overrides.
type Registry interface {
	Register(ctx context.Context, p RegisterParams) (*windfault.Turbine, error)
	Get(ctx context.Context, turbineID string) (*windfault.Turbine, error)
	List(ctx context.Context) ([]windfault.Turbine, error)
	OverrideState(ctx context.Context, turbineID string, state windfault.TurbineState) (*windfault.Turbine, error)
	MarkCommLoss(ctx context.Context, turbineID string) (*windfault.Turbine, error)
	RestoreComm(ctx context.Context, turbineID string) (*windfault.Turbine, error)
}

// EventLog exposes the append-only fault and recommendation records.
type EventLog interface {
	ListEvents(ctx context.Context, q EventQuery) ([]windfault.FaultEvent, error)
	GetEvent(ctx context.Context, eventID string) (*windfault.FaultEvent, error)
	ListRecommendations(ctx context.Context, q RecommendationQuery) ([]windfault.Recommendation, error)
	GetRecommendation(ctx context.Context, id string) (*windfault.Recommendation, error)
	DecisionHistory(ctx context.Context, eventID string) ([]windfault.Recommendation, error)
}

// Analytics serves fleet-level aggregates.
type Analytics interface {
	Summary(ctx context.Context) (*FleetSummary, error)
	TopCodes(ctx context.Context, window time.Duration, limit int) ([]repository.CodeCount, error)
	TroubledTurbines(ctx context.Context, window time.Duration, limit int) ([]repository.TurbineCount, error)
	FaultFrequency(ctx context.Context, code, turbineID string, window time.Duration) (*CodeFrequency, error)
	TemperatureTrend(ctx context.Context, turbineID, code string, window time.Duration) ([]TempPoint, error)
	ActionDistribution(ctx context.Context, window time.Duration) (*ActionBreakdown, error)
	EscalationRate(ctx context.Context, window time.Duration) (*EscalationStats, error)
}

// Service aggregates all sub-services behind one wiring point.
type Service struct {
	Orchestrator
	Reconciler
	Registry
	EventLog
	Analytics
}

// NewService wires the repository layer into the concrete services. The
// orchestrator and registry share one lock table so ingestion, reconciliation
// and manual overrides serialize per turbine.
func NewService(repos *repository.Repository, rules config.Rules, log *logger.Logger) *Service {
	locks := newLockTable()
	engine := NewEngine(rules, repos.Events)
	orch := NewOrchestratorService(repos, engine, rules, locks, log.Component("orchestrator"))
	return &Service{
		Orchestrator: orch,
		Reconciler:   NewReconcilerService(repos.Recommendations, orch, log.Component("reconciler")),
		Registry:     NewRegistryService(repos.Turbines, locks),
		EventLog:     NewEventLogService(repos.Events, repos.Recommendations),
		Analytics:    NewAnalyticsService(repos.Turbines, repos.Events, repos.Recommendations),
	}
}
