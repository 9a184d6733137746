package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"windfault"
	"windfault/internal/repository"
)

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

const defaultListLimit = 100

// EventLogService serves read access to the append-only fault and
// recommendation records.
type EventLogService struct {
	events repository.EventRepo
	recs   repository.RecommendationRepo
}

func NewEventLogService(events repository.EventRepo, recs repository.RecommendationRepo) *EventLogService {
	return &EventLogService{events: events, recs: recs}
}

func (s *EventLogService) ListEvents(ctx context.Context, q EventQuery) ([]windfault.FaultEvent, error) {
	from := toUTC(q.From)
	to := toUTC(q.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	return s.events.List(ctx, repository.EventFilter{
		TurbineID: strings.TrimSpace(q.TurbineID),
		Code:      strings.ToUpper(strings.TrimSpace(q.Code)),
		From:      from,
		To:        to,
		Limit:     limitOrDefault(q.Limit),
	})
}

func (s *EventLogService) GetEvent(ctx context.Context, eventID string) (*windfault.FaultEvent, error) {
	return s.events.GetByID(ctx, eventID)
}

func (s *EventLogService) ListRecommendations(ctx context.Context, q RecommendationQuery) ([]windfault.Recommendation, error) {
	if q.Action != "" && !windfault.ValidAction(q.Action) {
		return nil, &ValidationError{Field: "action", Reason: "unknown action"}
	}
	return s.recs.List(ctx, repository.RecommendationFilter{
		TurbineID: strings.TrimSpace(q.TurbineID),
		EventID:   strings.TrimSpace(q.EventID),
		Action:    q.Action,
		Limit:     limitOrDefault(q.Limit),
	})
}

func (s *EventLogService) GetRecommendation(ctx context.Context, id string) (*windfault.Recommendation, error) {
	return s.recs.GetByID(ctx, id)
}

// DecisionHistory returns every recommendation ever produced for an event in
// order, i.e. the audit trail across deferrals and re-evaluations.
func (s *EventLogService) DecisionHistory(ctx context.Context, eventID string) ([]windfault.Recommendation, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.recs.ListByEvent(ctx, eventID)
}

func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
