package windfault

import "time"

// TurbineState is the operational status derived from the latest recommendation.
type TurbineState string

const (
	StateOnline    TurbineState = "Online"
	StateImpacted  TurbineState = "Impacted"
	StateAvailable TurbineState = "Available"
	StateStopped   TurbineState = "Stopped"
	StateRepair    TurbineState = "Repair"
	// StateNetcom marks a communication loss. It is only ever set through the
	// manual override endpoint, never by the action-to-state mapping.
	StateNetcom TurbineState = "Netcom"
)

// ValidState reports whether s is one of the known turbine states.
func ValidState(s TurbineState) bool {
	switch s {
	case StateOnline, StateImpacted, StateAvailable, StateStopped, StateRepair, StateNetcom:
		return true
	}
	return false
}

// Action is the operational recommendation produced for a fault event.
type Action string

const (
	ActionReset            Action = "RESET"
	ActionEscalate         Action = "ESCALATE"
	ActionWaitCoolDown     Action = "WAIT_COOL_DOWN"
	ActionSnooze           Action = "SNOOZE"
	ActionManualInspection Action = "MANUAL_INSPECTION"
)

// ValidAction reports whether a is one of the known recommendation actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionReset, ActionEscalate, ActionWaitCoolDown, ActionSnooze, ActionManualInspection:
		return true
	}
	return false
}

// Severity classifies how serious a fault event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of the severity, higher is worse.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Turbine is a registered wind turbine. State, PrevState and LastStateChange
// are owned by the orchestration core; the remaining attributes belong to the
// registry and are read-only to classification.
type Turbine struct {
	ID         int     `json:"id"`
	TurbineID  string  `json:"turbine_id"` // stable external identifier
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Model      string  `json:"model"`
	CapacityKW float64 `json:"capacity_kw"`
	IsActive   bool    `json:"is_active"`

	State TurbineState `json:"state"`
	// PrevState holds the state the turbine was in before entering Netcom so
	// it can be restored when communication resumes. Empty otherwise.
	PrevState       TurbineState `json:"prev_state,omitempty"`
	LastStateChange time.Time    `json:"last_state_change"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FaultEvent is a single alarm raised by a turbine. Append-only: once
// recorded it is never mutated.
type FaultEvent struct {
	EventID     string   `json:"event_id"`
	TurbineID   string   `json:"turbine_id"`
	Code        string   `json:"code"` // e.g. "EM_83", "GENERATOR_VIBRATION"
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity"`
	// Resettable=false forces an escalation regardless of history.
	Resettable   bool       `json:"resettable"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Recommendation is the outcome of one classification run for a fault event.
// A re-evaluation after a deferral appends a new Recommendation instead of
// rewriting the old one, so the full decision history stays queryable.
type Recommendation struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	TurbineID string `json:"turbine_id"`
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
	// SnoozeUntil is set only when Action is SNOOZE and is always strictly
	// after CreatedAt.
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	// ReconciledAt is stamped once the deferral has been re-evaluated; a
	// stamped recommendation is never picked up by the reconciler again.
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
	Automated    bool       `json:"automated"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Snoozed reports whether the recommendation is a still-pending deferral.
func (r Recommendation) Snoozed() bool {
	return r.Action == ActionSnooze && r.SnoozeUntil != nil && r.ReconciledAt == nil
}
