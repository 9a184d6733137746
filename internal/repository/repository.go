package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"windfault"
)

// Not-found conditions surfaced to the service layer.
var (
	ErrTurbineNotFound        = errors.New("turbine not found")
	ErrEventNotFound          = errors.New("fault event not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

// EventFilter narrows fault event listings.
type EventFilter struct {
	TurbineID string
	Code      string
	From      time.Time
	To        time.Time
	Limit     int
}

// RecommendationFilter narrows recommendation listings.
type RecommendationFilter struct {
	TurbineID string
	EventID   string
	Action    windfault.Action
	Limit     int
}

// CodeCount is an aggregate row for analytics queries.
type CodeCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// TurbineCount is an events-per-turbine aggregate row.
type TurbineCount struct {
	TurbineID string `json:"turbine_id"`
	Count     int    `json:"count"`
}

type TurbineRepo interface {
	Create(ctx context.Context, t windfault.Turbine) (int, error)
	GetByTurbineID(ctx context.Context, turbineID string) (*windfault.Turbine, error)
	List(ctx context.Context) ([]windfault.Turbine, error)
	// UpdateState writes the state triple owned by the orchestration core.
	UpdateState(ctx context.Context, turbineID string, state, prev windfault.TurbineState, changedAt time.Time) error
	CountByState(ctx context.Context) (map[windfault.TurbineState]int, error)
}

// EventRepo is both the append-only fault log and the history accessor the
// decision engine reads through. Listings are ascending by occurrence time
// with inclusive boundaries.
type EventRepo interface {
	Append(ctx context.Context, e windfault.FaultEvent) error
	GetByID(ctx context.Context, eventID string) (*windfault.FaultEvent, error)
	ListByCodeSince(ctx context.Context, turbineID, code string, since time.Time) ([]windfault.FaultEvent, error)
	ListSince(ctx context.Context, turbineID string, since time.Time) ([]windfault.FaultEvent, error)
	List(ctx context.Context, f EventFilter) ([]windfault.FaultEvent, error)
	TopCodesSince(ctx context.Context, since time.Time, limit int) ([]CodeCount, error)
	CountPerTurbineSince(ctx context.Context, since time.Time, limit int) ([]TurbineCount, error)
}

type RecommendationRepo interface {
	Append(ctx context.Context, r windfault.Recommendation) error
	GetByID(ctx context.Context, id string) (*windfault.Recommendation, error)
	ListByEvent(ctx context.Context, eventID string) ([]windfault.Recommendation, error)
	List(ctx context.Context, f RecommendationFilter) ([]windfault.Recommendation, error)
	// ListDue returns unreconciled SNOOZE recommendations whose deferral has
	// elapsed at now.
	ListDue(ctx context.Context, now time.Time) ([]windfault.Recommendation, error)
	// MarkReconciled stamps the recommendation; it reports false when the row
	// was already stamped, which makes reconciliation idempotent per entry.
	MarkReconciled(ctx context.Context, id string, at time.Time) (bool, error)
	// CountByActionSince aggregates recommendations per action with
	// created_at >= since. A zero since counts everything.
	CountByActionSince(ctx context.Context, since time.Time) (map[windfault.Action]int, error)
}

type Repository struct {
	Turbines        TurbineRepo
	Events          EventRepo
	Recommendations RecommendationRepo
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{
		Turbines:        NewTurbineSQLite(conn),
		Events:          NewEventSQLite(conn),
		Recommendations: NewRecommendationSQLite(conn),
	}
}
