package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotRepository stores account value history
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Insert records a snapshot
func (r *SnapshotRepository) Insert(ctx context.Context, s Snapshot) error {
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (cash, holdings_value, total_value, taken_at) VALUES (?, ?, ?, ?)
	`, s.Cash, s.HoldingsValue, s.TotalValue, formatTime(s.TakenAt)); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Since returns snapshots taken at or after since, oldest first
func (r *SnapshotRepository) Since(ctx context.Context, since time.Time) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cash, holdings_value, total_value, taken_at FROM portfolio_snapshots
		WHERE taken_at >= ? ORDER BY taken_at ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var takenAt string
		if err := rows.Scan(&s.ID, &s.Cash, &s.HoldingsValue, &s.TotalValue, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.TakenAt = parseTime(takenAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAll clears the history
func (r *SnapshotRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
