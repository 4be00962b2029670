package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ActivityRepository persists the activity log in the desk database
type ActivityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, log zerolog.Logger) *ActivityRepository {
	return &ActivityRepository{
		db:  db,
		log: log.With().Str("repo", "activity").Logger(),
	}
}

// Insert appends an activity and returns its id
func (r *ActivityRepository) Insert(ctx context.Context, a Activity) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (action, details, provider, symbol, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(a.Action), a.Details, a.Provider, a.Symbol, a.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert activity: %w", err)
	}
	return res.LastInsertId()
}

// ActivityFilter narrows a Recent query. Zero values match everything.
type ActivityFilter struct {
	Action   EventType
	Provider string
	Limit    int
}

// Recent returns activities newest first
func (r *ActivityRepository) Recent(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, action, details, provider, symbol, created_at FROM activity_log WHERE 1=1`
	var args []interface{}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(f.Action))
	}
	if f.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, f.Provider)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var action, createdAt string
		if err := rows.Scan(&a.ID, &action, &a.Details, &a.Provider, &a.Symbol, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Action = EventType(action)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			a.CreatedAt = t
		} else {
			r.log.Warn().Str("created_at", createdAt).Msg("Unparseable activity timestamp")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteOlderThan prunes activities created before cutoff
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_log WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	return res.RowsAffected()
}
