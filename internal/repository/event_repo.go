package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"windfault"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const eventColumns = `id, turbine_id, code, description, severity, resettable, temperature_c, occurred_at, created_at`

// Append inserts a fault event. Empty EventID or zero OccurredAt are filled in.
func (r *EventSQLite) Append(ctx context.Context, e windfault.FaultEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var temp sql.NullFloat64
	if e.TemperatureC != nil {
		temp = sql.NullFloat64{Float64: *e.TemperatureC, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fault_events (id, turbine_id, code, description, severity, resettable, temperature_c, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.TurbineID,
		strings.ToUpper(strings.TrimSpace(e.Code)),
		e.Description,
		string(e.Severity),
		e.Resettable,
		temp,
		e.OccurredAt,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert fault event %q: %w", e.EventID, err)
	}
	return nil
}

// GetByID fetches a single fault event.
func (r *EventSQLite) GetByID(ctx context.Context, eventID string) (*windfault.FaultEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM fault_events WHERE id = ?`, eventID)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListByCodeSince returns same-code events for a turbine with occurred_at >= since,
// ascending. This is the window the decision engine classifies against.
func (r *EventSQLite) ListByCodeSince(ctx context.Context, turbineID, code string, since time.Time) ([]windfault.FaultEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM fault_events
		WHERE turbine_id = ? AND code = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC
	`, turbineID, strings.ToUpper(strings.TrimSpace(code)), since.UTC())
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListSince returns all events for a turbine with occurred_at >= since, ascending.
func (r *EventSQLite) ListSince(ctx context.Context, turbineID string, since time.Time) ([]windfault.FaultEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM fault_events
		WHERE turbine_id = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC
	`, turbineID, since.UTC())
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// List returns events matching the filter, most recent first.
func (r *EventSQLite) List(ctx context.Context, f EventFilter) ([]windfault.FaultEvent, error) {
	var (
		conds []string
		args  []any
	)
	if f.TurbineID != "" {
		conds = append(conds, "turbine_id = ?")
		args = append(args, f.TurbineID)
	}
	if f.Code != "" {
		conds = append(conds, "code = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(f.Code)))
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC())
	}

	q := `SELECT ` + eventColumns + ` FROM fault_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// TopCodesSince aggregates event counts per fault code across the fleet.
func (r *EventSQLite) TopCodesSince(ctx context.Context, since time.Time, limit int) ([]CodeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, COUNT(*) AS n FROM fault_events
		WHERE occurred_at >= ?
		GROUP BY code ORDER BY n DESC LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CodeCount, 0, limit)
	for rows.Next() {
		var c CodeCount
		if err := rows.Scan(&c.Code, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountPerTurbineSince aggregates event counts per turbine, busiest first.
func (r *EventSQLite) CountPerTurbineSince(ctx context.Context, since time.Time, limit int) ([]TurbineCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT turbine_id, COUNT(*) AS n FROM fault_events
		WHERE occurred_at >= ?
		GROUP BY turbine_id ORDER BY n DESC LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TurbineCount, 0, limit)
	for rows.Next() {
		var c TurbineCount
		if err := rows.Scan(&c.TurbineID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectEvents(rows *sql.Rows) ([]windfault.FaultEvent, error) {
	defer rows.Close()

	out := make([]windfault.FaultEvent, 0, 64)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEvent(row rowScanner) (*windfault.FaultEvent, error) {
	var e windfault.FaultEvent
	var severity string
	var temp sql.NullFloat64
	if err := row.Scan(
		&e.EventID,
		&e.TurbineID,
		&e.Code,
		&e.Description,
		&severity,
		&e.Resettable,
		&temp,
		&e.OccurredAt,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Severity = windfault.Severity(severity)
	if temp.Valid {
		v := temp.Float64
		e.TemperatureC = &v
	}
	e.OccurredAt = e.OccurredAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
