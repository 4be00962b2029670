package trading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// tradesColumns is the list of columns for the trades table.
// Column order must match scanTrade().
const tradesColumns = `id, provider, symbol, action, quantity, price, total_amount, confidence, reasoning, order_id, executed_at`

// timeLayout is fixed width so executed_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TradeRepository handles trade database operations
type TradeRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *TradeRepository) WithTx(tx *sql.Tx) *TradeRepository {
	return &TradeRepository{db: tx, log: r.log}
}

// Create inserts a new trade record, assigning an id and execution time when missing.
func (r *TradeRepository) Create(ctx context.Context, trade *Trade) error {
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}
	trade.Symbol = strings.ToUpper(strings.TrimSpace(trade.Symbol))

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trade.ID,
		string(trade.Provider),
		trade.Symbol,
		string(trade.Action),
		trade.Quantity,
		trade.Price,
		trade.TotalAmount,
		trade.Confidence,
		trade.Reasoning,
		trade.OrderID,
		trade.ExecutedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	r.log.Info().
		Str("provider", string(trade.Provider)).
		Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).
		Int("quantity", trade.Quantity).
		Msg("Trade created")
	return nil
}

// GetByID retrieves a trade, or nil when it does not exist
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*Trade, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tradesColumns+" FROM trades WHERE id = ?", id)
	trade, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

// List returns trades newest first
func (r *TradeRepository) List(ctx context.Context, f TradeFilter) ([]Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE 1=1"
	var args []interface{}
	if f.Provider != "" {
		query += " AND provider = ?"
		args = append(args, string(f.Provider))
	}
	if f.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(f.Symbol))
	}
	if !f.Since.IsZero() {
		query += " AND executed_at >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	query += " ORDER BY executed_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

// CountSince returns the number of trades executed at or after since
func (r *TradeRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades WHERE executed_at >= ?",
		since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// LastTradeTime returns the execution time of the most recent trade
func (r *TradeRepository) LastTradeTime(ctx context.Context) (*time.Time, error) {
	var executedAt sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(executed_at) FROM trades").Scan(&executedAt); err != nil {
		return nil, fmt.Errorf("failed to get last trade time: %w", err)
	}
	if !executedAt.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, executedAt.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last trade time: %w", err)
	}
	return &t, nil
}

// LastBuyProvider returns the provider that most recently bought symbol
func (r *TradeRepository) LastBuyProvider(ctx context.Context, symbol string) (domain.ProviderName, bool, error) {
	var provider string
	err := r.db.QueryRowContext(ctx, `
		SELECT provider FROM trades WHERE symbol = ? AND action = 'BUY'
		ORDER BY executed_at DESC LIMIT 1
	`, strings.ToUpper(symbol)).Scan(&provider)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find last buyer of %s: %w", symbol, err)
	}
	return domain.ProviderName(provider), true, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (Trade, error) {
	var t Trade
	var provider, action, executedAt string
	err := s.Scan(&t.ID, &provider, &t.Symbol, &action, &t.Quantity, &t.Price, &t.TotalAmount,
		&t.Confidence, &t.Reasoning, &t.OrderID, &executedAt)
	if err != nil {
		return t, err
	}
	t.Provider = domain.ProviderName(provider)
	t.Action = domain.TradeAction(action)
	if parsed, err := time.Parse(time.RFC3339Nano, executedAt); err == nil {
		t.ExecutedAt = parsed
	}
	return t, nil
}
