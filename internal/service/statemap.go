package service

import (
	"windfault"
	"windfault/internal/config"
)

// NextState maps a recommendation action to the turbine state it implies.
//
// The derated override applies to RESET only: a derated code means "operable
// at reduced output", which is moot once a more severe action was chosen.
// Netcom is never produced here; it enters exclusively through the manual
// communication-loss override. An unknown action keeps the current state.
func NextState(current windfault.TurbineState, action windfault.Action, code string, rules config.Rules) windfault.TurbineState {
	switch action {
	case windfault.ActionEscalate:
		return windfault.StateRepair
	case windfault.ActionWaitCoolDown:
		return windfault.StateAvailable
	case windfault.ActionReset:
		if rules.Derated(code) {
			return windfault.StateImpacted
		}
		return windfault.StateOnline
	case windfault.ActionSnooze:
		return windfault.StateStopped
	case windfault.ActionManualInspection:
		return windfault.StateImpacted
	}
	return current
}
