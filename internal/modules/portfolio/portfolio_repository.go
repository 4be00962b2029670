package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PortfolioRepository handles the account row
type PortfolioRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{db: tx, log: r.log}
}

// Ensure creates the account row with the initial balance if it does not exist.
func (r *PortfolioRepository) Ensure(ctx context.Context, initialBalance float64) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO portfolio (id, cash_balance, total_value, initial_balance, updated_at)
		VALUES (1, ?, ?, ?, ?)
	`, initialBalance, initialBalance, initialBalance, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to initialize portfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.log.Info().Float64("initial_balance", initialBalance).Msg("Portfolio initialized")
	}
	return nil
}

// Get returns the account row
func (r *PortfolioRepository) Get(ctx context.Context) (*Portfolio, error) {
	var p Portfolio
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT cash_balance, total_value, initial_balance, updated_at FROM portfolio WHERE id = 1
	`).Scan(&p.CashBalance, &p.TotalValue, &p.InitialBalance, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// SetCash overwrites the cash balance
func (r *PortfolioRepository) SetCash(ctx context.Context, cash float64) error {
	return r.update(ctx, `UPDATE portfolio SET cash_balance = ?, updated_at = ? WHERE id = 1`, cash)
}

// SetTotalValue overwrites the total value
func (r *PortfolioRepository) SetTotalValue(ctx context.Context, total float64) error {
	return r.update(ctx, `UPDATE portfolio SET total_value = ?, updated_at = ? WHERE id = 1`, total)
}

// SyncAccount overwrites cash and total value from a broker snapshot
func (r *PortfolioRepository) SyncAccount(ctx context.Context, cash, total float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE portfolio SET cash_balance = ?, total_value = ?, updated_at = ? WHERE id = 1
	`, cash, total, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to sync account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotInitialized
	}
	return nil
}

func (r *PortfolioRepository) update(ctx context.Context, query string, value float64) error {
	res, err := r.db.ExecContext(ctx, query, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotInitialized
	}
	return nil
}
