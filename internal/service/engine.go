package service

import (
	"context"
	"fmt"
	"time"

	"windfault"
	"windfault/internal/config"
)

// History is the read-only accessor the engine classifies against. It returns
// same-code events for a turbine with occurred_at >= since, ascending.
type History interface {
	ListByCodeSince(ctx context.Context, turbineID, code string, since time.Time) ([]windfault.FaultEvent, error)
}

// Engine decides the recommended action for a fault event by walking a strict
// priority cascade over recent history. It performs no mutation; its only I/O
// is the single history read, and the same inputs always reproduce the same
// action and rationale string.
type Engine struct {
	rules   config.Rules
	history History
}

func NewEngine(rules config.Rules, history History) *Engine {
	return &Engine{rules: rules, history: history}
}

// Decide evaluates the cascade for ev. Rules are checked in fixed order and
// the first match wins:
//
//  1. non-resettable fault        -> ESCALATE
//  2. oscillation within 10 min   -> ESCALATE
//  3. frequency (24h >= 4, then 7d >= 8, short-circuit) -> ESCALATE
//  4. temp-critical code above threshold (strict >)     -> WAIT_COOL_DOWN
//  5. default                     -> RESET
//
// ev.OccurredAt anchors every window. When ev has already been persisted its
// own row is part of the history read, so frequency counts include the
// triggering event; a synthesized re-evaluation event has no row and counts
// only real occurrences.
func (e *Engine) Decide(ctx context.Context, ev windfault.FaultEvent) (windfault.Action, string, error) {
	if !ev.Resettable {
		return windfault.ActionEscalate,
			fmt.Sprintf("Fault %s is not resettable and requires manual intervention.", ev.Code),
			nil
	}

	// One read covers the widest window; narrower checks slice it in memory.
	since := ev.OccurredAt.Add(-e.rules.Freq7dWindow)
	window, err := e.history.ListByCodeSince(ctx, ev.TurbineID, ev.Code, since)
	if err != nil {
		return "", "", fmt.Errorf("load history for %s/%s: %w", ev.TurbineID, ev.Code, err)
	}

	if prev, ok := e.lastOscillation(ev, window); ok {
		return windfault.ActionEscalate,
			fmt.Sprintf("Oscillation detected: fault %s at %s recurred within %s of previous occurrence at %s.",
				ev.Code,
				ev.OccurredAt.UTC().Format(time.RFC3339),
				e.rules.OscillationWindow,
				prev.OccurredAt.UTC().Format(time.RFC3339)),
			nil
	}

	if n := e.countWithin(ev, window, e.rules.Freq24hWindow); n >= e.rules.Freq24hThreshold {
		return windfault.ActionEscalate,
			fmt.Sprintf("High frequency: %d occurrences of %s in the last %s (threshold: %d).",
				n, ev.Code, e.rules.Freq24hWindow, e.rules.Freq24hThreshold),
			nil
	}
	if n := e.countWithin(ev, window, e.rules.Freq7dWindow); n >= e.rules.Freq7dThreshold {
		return windfault.ActionEscalate,
			fmt.Sprintf("High frequency: %d occurrences of %s in the last %s (threshold: %d).",
				n, ev.Code, e.rules.Freq7dWindow, e.rules.Freq7dThreshold),
			nil
	}

	if e.rules.TempCritical(ev.Code) && ev.TemperatureC != nil && *ev.TemperatureC > e.rules.TempThresholdC {
		return windfault.ActionWaitCoolDown,
			fmt.Sprintf("Temperature %.1f°C exceeds threshold %.1f°C; wait for cool-down.",
				*ev.TemperatureC, e.rules.TempThresholdC),
			nil
	}

	return windfault.ActionReset, "Conditions allow automatic reset; no escalation required.", nil
}

// lastOscillation returns the most recent prior same-code event inside
// [occurred_at - window, occurred_at]. Both bounds are inclusive (exactly the
// window apart still counts); the triggering event itself never matches.
func (e *Engine) lastOscillation(ev windfault.FaultEvent, window []windfault.FaultEvent) (windfault.FaultEvent, bool) {
	lower := ev.OccurredAt.Add(-e.rules.OscillationWindow)
	var prev windfault.FaultEvent
	found := false
	for _, h := range window {
		if h.EventID == ev.EventID {
			continue
		}
		if !h.OccurredAt.Before(lower) && !h.OccurredAt.After(ev.OccurredAt) {
			if !found || h.OccurredAt.After(prev.OccurredAt) {
				prev = h
				found = true
			}
		}
	}
	return prev, found
}

// countWithin counts same-code events inside the trailing window, boundaries
// inclusive, never counting past the triggering event's timestamp.
func (e *Engine) countWithin(ev windfault.FaultEvent, window []windfault.FaultEvent, span time.Duration) int {
	lower := ev.OccurredAt.Add(-span)
	n := 0
	for _, h := range window {
		if !h.OccurredAt.Before(lower) && !h.OccurredAt.After(ev.OccurredAt) {
			n++
		}
	}
	return n
}
