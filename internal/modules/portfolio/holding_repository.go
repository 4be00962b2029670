package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

const holdingColumns = `provider, symbol, quantity, average_cost, current_price, updated_at`

// HoldingRepository handles per-provider holdings
type HoldingRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *HoldingRepository) WithTx(tx *sql.Tx) *HoldingRepository {
	return &HoldingRepository{db: tx, log: r.log}
}

// GetAll returns every holding ordered by provider and symbol
func (r *HoldingRepository) GetAll(ctx context.Context) ([]domain.Holding, error) {
	return r.query(ctx, `SELECT `+holdingColumns+` FROM holdings ORDER BY provider, symbol`)
}

// GetByProvider returns a provider's holdings
func (r *HoldingRepository) GetByProvider(ctx context.Context, provider domain.ProviderName) ([]domain.Holding, error) {
	return r.query(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE provider = ? ORDER BY symbol`, string(provider))
}

// GetBySymbol returns every provider's holding of symbol
func (r *HoldingRepository) GetBySymbol(ctx context.Context, symbol string) ([]domain.Holding, error) {
	return r.query(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE symbol = ? ORDER BY provider`, normalize(symbol))
}

// Get returns one holding, or nil when the provider does not hold symbol
func (r *HoldingRepository) Get(ctx context.Context, provider domain.ProviderName, symbol string) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE provider = ? AND symbol = ?`,
		string(provider), normalize(symbol))
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &h, nil
}

// Symbols returns the distinct held symbols
func (r *HoldingRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM holdings ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Upsert inserts or replaces a holding. Quantity must be positive.
func (r *HoldingRepository) Upsert(ctx context.Context, h domain.Holding) error {
	if h.Quantity <= 0 {
		return fmt.Errorf("holding %s/%s: quantity must be positive, got %v", h.Provider, h.Symbol, h.Quantity)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings (`+holdingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at
	`, string(h.Provider), normalize(h.Symbol), h.Quantity, h.AverageCost, h.CurrentPrice, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}

// Delete removes a holding
func (r *HoldingRepository) Delete(ctx context.Context, provider domain.ProviderName, symbol string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE provider = ? AND symbol = ?`,
		string(provider), normalize(symbol)); err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// DeleteAll removes every holding
func (r *HoldingRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to delete holdings: %w", err)
	}
	return nil
}

// UpdatePrice sets the last known price of symbol across providers
func (r *HoldingRepository) UpdatePrice(ctx context.Context, symbol string, price float64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE holdings SET current_price = ?, updated_at = ? WHERE symbol = ?`,
		price, formatTime(time.Now()), normalize(symbol)); err != nil {
		return fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	return nil
}

func (r *HoldingRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s scanner) (domain.Holding, error) {
	var h domain.Holding
	var provider, updatedAt string
	if err := s.Scan(&provider, &h.Symbol, &h.Quantity, &h.AverageCost, &h.CurrentPrice, &updatedAt); err != nil {
		return h, err
	}
	h.Provider = domain.ProviderName(provider)
	h.UpdatedAt = parseTime(updatedAt)
	return h, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
