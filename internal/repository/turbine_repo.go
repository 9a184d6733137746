package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"windfault"
)

type TurbineSQLite struct {
	db *sql.DB
}

func NewTurbineSQLite(db *sql.DB) *TurbineSQLite { return &TurbineSQLite{db: db} }

const turbineColumns = `id, turbine_id, name, location, model, capacity_kw, is_active, state, prev_state, last_state_change, created_at, updated_at`

// Create inserts a new turbine row and returns its database id.
func (r *TurbineSQLite) Create(ctx context.Context, t windfault.Turbine) (int, error) {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.LastStateChange.IsZero() {
		t.LastStateChange = now
	}
	if t.State == "" {
		t.State = windfault.StateOnline
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO turbines (turbine_id, name, location, model, capacity_kw, is_active, state, prev_state, last_state_change, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.TurbineID,
		t.Name,
		t.Location,
		t.Model,
		t.CapacityKW,
		t.IsActive,
		string(t.State),
		string(t.PrevState),
		t.LastStateChange.UTC(),
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert turbine %q: %w", t.TurbineID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// GetByTurbineID fetches a turbine by its stable external identifier.
func (r *TurbineSQLite) GetByTurbineID(ctx context.Context, turbineID string) (*windfault.Turbine, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+turbineColumns+` FROM turbines WHERE turbine_id = ?`, turbineID)

	t, err := scanTurbine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTurbineNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns all registered turbines ordered by external identifier.
func (r *TurbineSQLite) List(ctx context.Context) ([]windfault.Turbine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+turbineColumns+` FROM turbines ORDER BY turbine_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]windfault.Turbine, 0, 32)
	for rows.Next() {
		t, err := scanTurbine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateState persists the orchestrator-owned state fields.
func (r *TurbineSQLite) UpdateState(ctx context.Context, turbineID string, state, prev windfault.TurbineState, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE turbines
		SET state = ?, prev_state = ?, last_state_change = ?, updated_at = ?
		WHERE turbine_id = ?
	`,
		string(state),
		string(prev),
		changedAt.UTC(),
		time.Now().UTC(),
		turbineID,
	)
	if err != nil {
		return fmt.Errorf("update state of %q: %w", turbineID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTurbineNotFound
	}
	return nil
}

// CountByState aggregates the fleet by operational state.
func (r *TurbineSQLite) CountByState(ctx context.Context) (map[windfault.TurbineState]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM turbines GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[windfault.TurbineState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		out[windfault.TurbineState(state)] = count
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurbine(row rowScanner) (*windfault.Turbine, error) {
	var t windfault.Turbine
	var state, prev string
	if err := row.Scan(
		&t.ID,
		&t.TurbineID,
		&t.Name,
		&t.Location,
		&t.Model,
		&t.CapacityKW,
		&t.IsActive,
		&state,
		&prev,
		&t.LastStateChange,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.State = windfault.TurbineState(state)
	t.PrevState = windfault.TurbineState(prev)
	t.LastStateChange = t.LastStateChange.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
