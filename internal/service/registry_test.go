package service

import (
	"context"
	"errors"
	"testing"

	"windfault"
)

func newTestRegistry(t *testing.T) (*RegistryService, *fakeTurbineRepo) {
	t.Helper()
	turbines := newFakeTurbineRepo()
	return NewRegistryService(turbines, newLockTable()), turbines
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)

	got, err := reg.Register(context.Background(), RegisterParams{
		TurbineID:  " WT-001 ",
		Name:       "North Ridge 1",
		Location:   "North Ridge",
		Model:      "V90",
		CapacityKW: 2000,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.TurbineID != "WT-001" {
		t.Fatalf("turbine_id = %q, want trimmed", got.TurbineID)
	}
	if got.State != windfault.StateOnline {
		t.Fatalf("state = %s, new turbines start Online", got.State)
	}
	if !got.IsActive || got.ID == 0 {
		t.Fatalf("unexpected turbine: %+v", got)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		p     RegisterParams
		field string
	}{
		{name: "missing id", p: RegisterParams{Name: "x"}, field: "turbine_id"},
		{name: "missing name", p: RegisterParams{TurbineID: "WT-001"}, field: "name"},
		{name: "negative capacity", p: RegisterParams{TurbineID: "WT-001", Name: "x", CapacityKW: -1}, field: "capacity_kw"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reg, _ := newTestRegistry(t)
			_, err := reg.Register(context.Background(), tc.p)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Fatalf("err = %v, want %s validation error", err, tc.field)
			}
		})
	}
}

func TestOverrideState(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	seedTurbine(t, turbines, "WT-001", windfault.StateOnline)

	got, err := reg.OverrideState(context.Background(), "WT-001", windfault.StateStopped)
	if err != nil {
		t.Fatalf("OverrideState: %v", err)
	}
	if got.State != windfault.StateStopped {
		t.Fatalf("state = %s, want Stopped", got.State)
	}
	if got.PrevState != "" {
		t.Fatalf("stash = %q, only Netcom keeps one", got.PrevState)
	}
}

func TestOverrideState_NoOpKeepsLastStateChange(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	seeded := seedTurbine(t, turbines, "WT-001", windfault.StateOnline)

	got, err := reg.OverrideState(context.Background(), "WT-001", windfault.StateOnline)
	if err != nil {
		t.Fatalf("OverrideState: %v", err)
	}
	if turbines.updateCalls != 0 {
		t.Fatalf("UpdateState called for a same-state override")
	}
	if !got.LastStateChange.Equal(seeded.LastStateChange) {
		t.Fatalf("last_state_change moved on a no-op override")
	}
}

func TestOverrideState_UnknownState(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	seedTurbine(t, turbines, "WT-001", windfault.StateOnline)

	_, err := reg.OverrideState(context.Background(), "WT-001", windfault.TurbineState("Broken"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "state" {
		t.Fatalf("err = %v, want state validation error", err)
	}
}

func TestCommLossAndRestore(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	seedTurbine(t, turbines, "WT-001", windfault.StateImpacted)

	lost, err := reg.MarkCommLoss(context.Background(), "WT-001")
	if err != nil {
		t.Fatalf("MarkCommLoss: %v", err)
	}
	if lost.State != windfault.StateNetcom {
		t.Fatalf("state = %s, want Netcom", lost.State)
	}
	if lost.PrevState != windfault.StateImpacted {
		t.Fatalf("stash = %s, want Impacted", lost.PrevState)
	}

	restored, err := reg.RestoreComm(context.Background(), "WT-001")
	if err != nil {
		t.Fatalf("RestoreComm: %v", err)
	}
	if restored.State != windfault.StateImpacted {
		t.Fatalf("state = %s, want the held Impacted back", restored.State)
	}
	if restored.PrevState != "" {
		t.Fatalf("stash not cleared after restore")
	}
}

func TestRestoreComm_NotInNetcom(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	seedTurbine(t, turbines, "WT-001", windfault.StateOnline)

	_, err := reg.RestoreComm(context.Background(), "WT-001")
	if !errors.Is(err, ErrNotInNetcom) {
		t.Fatalf("err = %v, want ErrNotInNetcom", err)
	}
}

func TestRestoreComm_EmptyStashFallsBackOnline(t *testing.T) {
	t.Parallel()

	reg, turbines := newTestRegistry(t)
	// Stash intentionally left empty.
	seedTurbine(t, turbines, "WT-001", windfault.StateNetcom)

	restored, err := reg.RestoreComm(context.Background(), "WT-001")
	if err != nil {
		t.Fatalf("RestoreComm: %v", err)
	}
	if restored.State != windfault.StateOnline {
		t.Fatalf("state = %s, want Online fallback", restored.State)
	}
}
