package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"windfault"
	"windfault/internal/repository"
)

// ErrNotInNetcom rejects a communication restore on a turbine that is not in
// communication loss.
var ErrNotInNetcom = errors.New("turbine is not in communication loss")

// RegistryService owns turbine records. Manual state writes bypass the action
// mapping but share the orchestrator's per-turbine locks, so an operator
// override cannot race a classification in flight.
type RegistryService struct {
	turbines repository.TurbineRepo
	locks    *lockTable
}

func NewRegistryService(turbines repository.TurbineRepo, locks *lockTable) *RegistryService {
	return &RegistryService{turbines: turbines, locks: locks}
}

// Register creates a turbine starting in Online.
func (s *RegistryService) Register(ctx context.Context, p RegisterParams) (*windfault.Turbine, error) {
	p.TurbineID = strings.TrimSpace(p.TurbineID)
	if p.TurbineID == "" {
		return nil, &ValidationError{Field: "turbine_id", Reason: "is required"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if p.CapacityKW < 0 {
		return nil, &ValidationError{Field: "capacity_kw", Reason: "must not be negative"}
	}

	now := time.Now().UTC()
	t := windfault.Turbine{
		TurbineID:       p.TurbineID,
		Name:            p.Name,
		Location:        p.Location,
		Model:           p.Model,
		CapacityKW:      p.CapacityKW,
		IsActive:        true,
		State:           windfault.StateOnline,
		LastStateChange: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	id, err := s.turbines.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

func (s *RegistryService) Get(ctx context.Context, turbineID string) (*windfault.Turbine, error) {
	return s.turbines.GetByTurbineID(ctx, turbineID)
}

func (s *RegistryService) List(ctx context.Context) ([]windfault.Turbine, error) {
	return s.turbines.List(ctx)
}

// OverrideState writes a state directly. last_state_change moves only when
// the value actually changes. Entering Netcom stashes the current state so it
// can be restored later; entering any other state clears the stash.
func (s *RegistryService) OverrideState(ctx context.Context, turbineID string, state windfault.TurbineState) (*windfault.Turbine, error) {
	if !windfault.ValidState(state) {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", state)}
	}

	unlock := s.locks.Lock(turbineID)
	defer unlock()

	t, err := s.turbines.GetByTurbineID(ctx, turbineID)
	if err != nil {
		return nil, err
	}
	if t.State == state {
		return t, nil
	}

	prev := windfault.TurbineState("")
	if state == windfault.StateNetcom {
		prev = t.State
	}

	now := time.Now().UTC()
	if err := s.turbines.UpdateState(ctx, turbineID, state, prev, now); err != nil {
		return nil, err
	}
	t.State = state
	t.PrevState = prev
	t.LastStateChange = now
	return t, nil
}

// MarkCommLoss puts the turbine into Netcom, retaining its held state.
func (s *RegistryService) MarkCommLoss(ctx context.Context, turbineID string) (*windfault.Turbine, error) {
	return s.OverrideState(ctx, turbineID, windfault.StateNetcom)
}

// RestoreComm leaves Netcom and reinstates the held state. A turbine whose
// stash is empty (e.g. classification remapped it while unreachable to a
// state that was then cleared) falls back to Online.
func (s *RegistryService) RestoreComm(ctx context.Context, turbineID string) (*windfault.Turbine, error) {
	unlock := s.locks.Lock(turbineID)
	defer unlock()

	t, err := s.turbines.GetByTurbineID(ctx, turbineID)
	if err != nil {
		return nil, err
	}
	if t.State != windfault.StateNetcom {
		return nil, ErrNotInNetcom
	}

	target := t.PrevState
	if target == "" || target == windfault.StateNetcom {
		target = windfault.StateOnline
	}

	now := time.Now().UTC()
	if err := s.turbines.UpdateState(ctx, turbineID, target, "", now); err != nil {
		return nil, err
	}
	t.State = target
	t.PrevState = ""
	t.LastStateChange = now
	return t, nil
}
