package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"windfault"
	"windfault/internal/config"
	"windfault/internal/logger"
	"windfault/internal/metrics"
	"windfault/internal/repository"
)

// ErrConflict is returned once bounded retries on a transient storage
// conflict are exhausted.
var ErrConflict = errors.New("transient storage conflict")

const (
	stateSaveAttempts = 3
	retryBackoff      = 50 * time.Millisecond
)

type OrchestratorService struct {
	turbines repository.TurbineRepo
	events   repository.EventRepo
	recs     repository.RecommendationRepo
	engine   *Engine
	rules    config.Rules
	locks    *lockTable
	log      *logger.Logger
}

func NewOrchestratorService(repos *repository.Repository, engine *Engine, rules config.Rules, locks *lockTable, log *logger.Logger) *OrchestratorService {
	return &OrchestratorService{
		turbines: repos.Turbines,
		events:   repos.Events,
		recs:     repos.Recommendations,
		engine:   engine,
		rules:    rules,
		locks:    locks,
		log:      log,
	}
}

// Classify ingests a fault event: validate, persist, run the cascade, map the
// action to a state, apply both and return the recommendation. The whole
// read-modify-write runs under the turbine's lock so concurrent ingestion and
// reconciliation never interleave on one asset.
func (s *OrchestratorService) Classify(ctx context.Context, ev windfault.FaultEvent) (*windfault.Recommendation, error) {
	start := time.Now()

	if err := normalizeEvent(&ev); err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	unlock := s.locks.Lock(ev.TurbineID)
	defer unlock()

	turbine, err := s.turbines.GetByTurbineID(ctx, ev.TurbineID)
	if err != nil {
		if errors.Is(err, repository.ErrTurbineNotFound) {
			metrics.EventsRejected.WithLabelValues("unknown_turbine").Inc()
		}
		return nil, err
	}

	if err := s.events.Append(ctx, ev); err != nil {
		metrics.EventsRejected.WithLabelValues("storage").Inc()
		return nil, err
	}

	action, rationale, err := s.engine.Decide(ctx, ev)
	if err != nil {
		return nil, err
	}

	rec, err := s.applyOutcome(ctx, turbine, ev.EventID, ev.Code, action, rationale, true, 0, ev.OccurredAt)
	if err != nil {
		return nil, err
	}

	metrics.EventsClassified.WithLabelValues(string(action)).Inc()
	metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
	s.log.Infow("event classified",
		"turbine", ev.TurbineID, "code", ev.Code, "action", action, "state", turbine.State)
	return rec, nil
}

// Apply records an operator-directed recommendation for an already ingested
// event. The cascade is skipped; the state mapping is not.
func (s *OrchestratorService) Apply(ctx context.Context, eventID string, action windfault.Action, note string) (*windfault.Recommendation, error) {
	if !windfault.ValidAction(action) {
		return nil, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
	return s.applyManual(ctx, eventID, action, note, 0)
}

// Snooze defers the decision on an event for d (default deferral when zero).
func (s *OrchestratorService) Snooze(ctx context.Context, eventID string, d time.Duration) (*windfault.Recommendation, error) {
	if d < 0 {
		return nil, &ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	return s.applyManual(ctx, eventID, windfault.ActionSnooze, "", d)
}

func (s *OrchestratorService) applyManual(ctx context.Context, eventID string, action windfault.Action, note string, snoozeFor time.Duration) (*windfault.Recommendation, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ev.TurbineID)
	defer unlock()

	turbine, err := s.turbines.GetByTurbineID(ctx, ev.TurbineID)
	if err != nil {
		return nil, err
	}

	rationale := note
	if rationale == "" {
		rationale = fmt.Sprintf("Operator-directed %s for fault %s.", action, ev.Code)
	}
	return s.applyOutcome(ctx, turbine, ev.EventID, ev.Code, action, rationale, false, snoozeFor, time.Now().UTC())
}

// reclassify re-runs the cascade for a previously deferred recommendation.
// The engine sees a synthesized event carrying the original fault's code and
// readings but anchored at now, so its windows cover history that arrived
// during the deferral. The synthetic event is never persisted; the new
// recommendation still references the original triggering event.
func (s *OrchestratorService) reclassify(ctx context.Context, rec windfault.Recommendation, now time.Time) (*windfault.Recommendation, error) {
	orig, err := s.events.GetByID(ctx, rec.EventID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(orig.TurbineID)
	defer unlock()

	turbine, err := s.turbines.GetByTurbineID(ctx, orig.TurbineID)
	if err != nil {
		return nil, err
	}

	synthetic := windfault.FaultEvent{
		EventID:      uuid.NewString(),
		TurbineID:    orig.TurbineID,
		Code:         orig.Code,
		Severity:     orig.Severity,
		Resettable:   orig.Resettable,
		TemperatureC: orig.TemperatureC,
		OccurredAt:   now,
	}

	action, rationale, err := s.engine.Decide(ctx, synthetic)
	if err != nil {
		return nil, err
	}
	return s.applyOutcome(ctx, turbine, orig.EventID, orig.Code, action, rationale, true, 0, now)
}

// applyOutcome maps the action to a state, persists the state transition when
// the value actually changes and appends the recommendation record. While a
// turbine sits in Netcom the mapped state lands in the held-state slot so the
// override survives until communication is restored.
func (s *OrchestratorService) applyOutcome(ctx context.Context, turbine *windfault.Turbine, eventID, code string, action windfault.Action, rationale string, automated bool, snoozeFor time.Duration, at time.Time) (*windfault.Recommendation, error) {
	next := NextState(turbine.State, action, code, s.rules)

	if turbine.State == windfault.StateNetcom {
		if next != turbine.PrevState && next != windfault.StateNetcom {
			// Only the held slot moves; the visible state value is unchanged,
			// so last_state_change keeps its old timestamp.
			if err := s.saveState(ctx, turbine.TurbineID, windfault.StateNetcom, next, turbine.LastStateChange); err != nil {
				return nil, err
			}
			turbine.PrevState = next
		}
	} else if next != turbine.State {
		if err := s.saveState(ctx, turbine.TurbineID, next, turbine.PrevState, at); err != nil {
			return nil, err
		}
		turbine.State = next
		turbine.LastStateChange = at
	}

	rec := windfault.Recommendation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		TurbineID: turbine.TurbineID,
		Action:    action,
		Rationale: rationale,
		Automated: automated,
		CreatedAt: at,
	}
	if action == windfault.ActionSnooze {
		if snoozeFor <= 0 {
			snoozeFor = s.rules.SnoozeDuration
		}
		until := at.Add(snoozeFor)
		rec.SnoozeUntil = &until
	}

	if err := s.recs.Append(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// saveState retries a bounded number of times on transient sqlite busy
// conflicts before giving up with ErrConflict.
func (s *OrchestratorService) saveState(ctx context.Context, turbineID string, state, prev windfault.TurbineState, at time.Time) error {
	var err error
	for attempt := 0; attempt < stateSaveAttempts; attempt++ {
		err = s.turbines.UpdateState(ctx, turbineID, state, prev, at)
		if err == nil || !transient(err) {
			return err
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func transient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// normalizeEvent validates caller input and fills generated fields.
func normalizeEvent(ev *windfault.FaultEvent) error {
	ev.TurbineID = strings.TrimSpace(ev.TurbineID)
	if ev.TurbineID == "" {
		return &ValidationError{Field: "turbine_id", Reason: "is required"}
	}
	ev.Code = strings.ToUpper(strings.TrimSpace(ev.Code))
	if ev.Code == "" {
		return &ValidationError{Field: "code", Reason: "is required"}
	}
	if ev.TemperatureC != nil {
		if math.IsNaN(*ev.TemperatureC) || math.IsInf(*ev.TemperatureC, 0) {
			return &ValidationError{Field: "temperature_c", Reason: "must be a finite number"}
		}
	}
	if ev.Severity == "" {
		ev.Severity = windfault.SeverityMedium
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	} else {
		ev.OccurredAt = ev.OccurredAt.UTC()
	}
	return nil
}
