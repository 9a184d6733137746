package service

import (
	"context"
	"math"
	"strings"
	"time"

	"windfault"
	"windfault/internal/repository"
)

const (
	summaryWindow = 24 * time.Hour
	summaryLimit  = 5

	frequencyWindow  = 7 * 24 * time.Hour
	escalationWindow = 30 * 24 * time.Hour
)

// CodeFrequency reports how often one fault code fired in a trailing window.
type CodeFrequency struct {
	Code   string  `json:"code"`
	Count  int     `json:"count"`
	Window string  `json:"window"`
	PerDay float64 `json:"per_day"`
}

// TempPoint is one temperature reading taken from the fault log.
type TempPoint struct {
	OccurredAt   time.Time `json:"occurred_at"`
	TemperatureC float64   `json:"temperature_c"`
	Code         string    `json:"code"`
}

// ActionBreakdown is the recommendation count per action.
type ActionBreakdown struct {
	Distribution map[windfault.Action]int `json:"distribution"`
	Total        int                      `json:"total"`
	Window       string                   `json:"window,omitempty"`
}

// EscalationStats is the share of recommendations that escalated.
type EscalationStats struct {
	Total       int     `json:"total_recommendations"`
	Escalated   int     `json:"escalated"`
	RatePercent float64 `json:"escalation_rate_percent"`
	Window      string  `json:"window"`
}

// AnalyticsService aggregates fleet-wide trends out of the fault and
// recommendation logs.
type AnalyticsService struct {
	turbines repository.TurbineRepo
	events   repository.EventRepo
	recs     repository.RecommendationRepo
}

func NewAnalyticsService(turbines repository.TurbineRepo, events repository.EventRepo, recs repository.RecommendationRepo) *AnalyticsService {
	return &AnalyticsService{turbines: turbines, events: events, recs: recs}
}

// Summary reports the fleet state distribution plus the loudest fault codes
// and turbines of the trailing day.
func (s *AnalyticsService) Summary(ctx context.Context) (*FleetSummary, error) {
	byState, err := s.turbines.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byState {
		total += n
	}

	since := time.Now().UTC().Add(-summaryWindow)
	topCodes, err := s.events.TopCodesSince(ctx, since, summaryLimit)
	if err != nil {
		return nil, err
	}
	troubled, err := s.events.CountPerTurbineSince(ctx, since, summaryLimit)
	if err != nil {
		return nil, err
	}

	return &FleetSummary{
		TotalTurbines:    total,
		ByState:          byState,
		TopCodes24h:      topCodes,
		TroubledTurbines: troubled,
	}, nil
}

// TopCodes ranks fault codes by occurrence count in the trailing window.
func (s *AnalyticsService) TopCodes(ctx context.Context, window time.Duration, limit int) ([]repository.CodeCount, error) {
	if window <= 0 {
		window = summaryWindow
	}
	if limit <= 0 {
		limit = summaryLimit
	}
	return s.events.TopCodesSince(ctx, time.Now().UTC().Add(-window), limit)
}

// TroubledTurbines ranks turbines by event count in the trailing window.
func (s *AnalyticsService) TroubledTurbines(ctx context.Context, window time.Duration, limit int) ([]repository.TurbineCount, error) {
	if window <= 0 {
		window = summaryWindow
	}
	if limit <= 0 {
		limit = summaryLimit
	}
	return s.events.CountPerTurbineSince(ctx, time.Now().UTC().Add(-window), limit)
}

// FaultFrequency counts occurrences of one fault code in a trailing window,
// optionally narrowed to a single turbine.
func (s *AnalyticsService) FaultFrequency(ctx context.Context, code, turbineID string, window time.Duration) (*CodeFrequency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "is required"}
	}
	if window <= 0 {
		window = frequencyWindow
	}

	events, err := s.events.List(ctx, repository.EventFilter{
		TurbineID: strings.TrimSpace(turbineID),
		Code:      code,
		From:      time.Now().UTC().Add(-window),
	})
	if err != nil {
		return nil, err
	}

	days := window.Hours() / 24
	return &CodeFrequency{
		Code:   code,
		Count:  len(events),
		Window: window.String(),
		PerDay: round2(float64(len(events)) / days),
	}, nil
}

// TemperatureTrend returns the temperature readings logged for a turbine in
// the trailing window, oldest first, optionally narrowed to one fault code.
// Events without a reading are skipped.
func (s *AnalyticsService) TemperatureTrend(ctx context.Context, turbineID, code string, window time.Duration) ([]TempPoint, error) {
	if _, err := s.turbines.GetByTurbineID(ctx, turbineID); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = frequencyWindow
	}

	events, err := s.events.ListSince(ctx, turbineID, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	points := make([]TempPoint, 0, len(events))
	for _, e := range events {
		if e.TemperatureC == nil {
			continue
		}
		if code != "" && e.Code != code {
			continue
		}
		points = append(points, TempPoint{
			OccurredAt:   e.OccurredAt,
			TemperatureC: *e.TemperatureC,
			Code:         e.Code,
		})
	}
	return points, nil
}

// ActionDistribution aggregates recommendations per action. A zero window
// covers the whole log.
func (s *AnalyticsService) ActionDistribution(ctx context.Context, window time.Duration) (*ActionBreakdown, error) {
	var since time.Time
	if window > 0 {
		since = time.Now().UTC().Add(-window)
	}
	dist, err := s.recs.CountByActionSince(ctx, since)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range dist {
		total += n
	}
	out := &ActionBreakdown{Distribution: dist, Total: total}
	if window > 0 {
		out.Window = window.String()
	}
	return out, nil
}

// EscalationRate reports the percentage of recommendations that escalated in
// the trailing window.
func (s *AnalyticsService) EscalationRate(ctx context.Context, window time.Duration) (*EscalationStats, error) {
	if window <= 0 {
		window = escalationWindow
	}
	dist, err := s.recs.CountByActionSince(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range dist {
		total += n
	}
	escalated := dist[windfault.ActionEscalate]
	rate := 0.0
	if total > 0 {
		rate = round2(float64(escalated) / float64(total) * 100)
	}
	return &EscalationStats{
		Total:       total,
		Escalated:   escalated,
		RatePercent: rate,
		Window:      window.String(),
	}, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
