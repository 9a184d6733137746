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

type RecommendationSQLite struct {
	db *sql.DB
}

func NewRecommendationSQLite(db *sql.DB) *RecommendationSQLite {
	return &RecommendationSQLite{db: db}
}

const recommendationColumns = `id, event_id, turbine_id, action, rationale, snooze_until, reconciled_at, automated, created_at`

// Append inserts a recommendation. An empty ID is generated.
func (r *RecommendationSQLite) Append(ctx context.Context, rec windfault.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recommendations (id, event_id, turbine_id, action, rationale, snooze_until, reconciled_at, automated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.EventID,
		rec.TurbineID,
		string(rec.Action),
		rec.Rationale,
		nullableTime(rec.SnoozeUntil),
		nullableTime(rec.ReconciledAt),
		rec.Automated,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation %q: %w", rec.ID, err)
	}
	return nil
}

// GetByID fetches a single recommendation.
func (r *RecommendationSQLite) GetByID(ctx context.Context, id string) (*windfault.Recommendation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)

	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByEvent returns every recommendation ever produced for an event,
// oldest first, which is the event's decision history.
func (r *RecommendationSQLite) ListByEvent(ctx context.Context, eventID string) ([]windfault.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recommendationColumns+` FROM recommendations
		WHERE event_id = ? ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	return collectRecommendations(rows)
}

// List returns recommendations matching the filter, most recent first.
func (r *RecommendationSQLite) List(ctx context.Context, f RecommendationFilter) ([]windfault.Recommendation, error) {
	var (
		conds []string
		args  []any
	)
	if f.TurbineID != "" {
		conds = append(conds, "turbine_id = ?")
		args = append(args, f.TurbineID)
	}
	if f.EventID != "" {
		conds = append(conds, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(f.Action))
	}

	q := `SELECT ` + recommendationColumns + ` FROM recommendations`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRecommendations(rows)
}

// ListDue returns SNOOZE recommendations whose deferral elapsed at now and
// that have not been reconciled yet, oldest deferral first.
func (r *RecommendationSQLite) ListDue(ctx context.Context, now time.Time) ([]windfault.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recommendationColumns+` FROM recommendations
		WHERE action = ? AND snooze_until IS NOT NULL AND snooze_until <= ? AND reconciled_at IS NULL
		ORDER BY snooze_until ASC
	`, string(windfault.ActionSnooze), now.UTC())
	if err != nil {
		return nil, err
	}
	return collectRecommendations(rows)
}

// MarkReconciled stamps the row once; it reports false when another sweep got
// there first.
func (r *RecommendationSQLite) MarkReconciled(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recommendations SET reconciled_at = ?
		WHERE id = ? AND reconciled_at IS NULL
	`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark recommendation %q reconciled: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountByActionSince aggregates recommendation counts per action.
func (r *RecommendationSQLite) CountByActionSince(ctx context.Context, since time.Time) (map[windfault.Action]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, COUNT(*) FROM recommendations
		WHERE created_at >= ?
		GROUP BY action
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[windfault.Action]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		out[windfault.Action(action)] = count
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func collectRecommendations(rows *sql.Rows) ([]windfault.Recommendation, error) {
	defer rows.Close()

	out := make([]windfault.Recommendation, 0, 32)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRecommendation(row rowScanner) (*windfault.Recommendation, error) {
	var rec windfault.Recommendation
	var action string
	var snooze, reconciled sql.NullTime
	if err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.TurbineID,
		&action,
		&rec.Rationale,
		&snooze,
		&reconciled,
		&rec.Automated,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Action = windfault.Action(action)
	if snooze.Valid {
		t := snooze.Time.UTC()
		rec.SnoozeUntil = &t
	}
	if reconciled.Valid {
		t := reconciled.Time.UTC()
		rec.ReconciledAt = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
