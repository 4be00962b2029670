// Package portfolio owns the account ledger: cash, per-provider holdings,
// value snapshots and reconciliation against the broker.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
)

// ErrNotInitialized is returned when the portfolio row has not been created.
var ErrNotInitialized = errors.New("portfolio not initialized")

// Portfolio is the single account row
type Portfolio struct {
	CashBalance    float64   `json:"cash_balance"`
	TotalValue     float64   `json:"total_value"`
	InitialBalance float64   `json:"initial_balance"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time record of account value
type Snapshot struct {
	ID            int64     `json:"id"`
	Cash          float64   `json:"cash"`
	HoldingsValue float64   `json:"holdings_value"`
	TotalValue    float64   `json:"total_value"`
	TakenAt       time.Time `json:"taken_at"`
}

// Summary is the portfolio overview served to the dashboard
type Summary struct {
	CashBalance      float64            `json:"cash_balance"`
	HoldingsValue    float64            `json:"holdings_value"`
	TotalValue       float64            `json:"total_value"`
	TotalInvested    float64            `json:"total_invested"`
	TotalReturn      float64            `json:"total_return"`
	ReturnPercentage float64            `json:"return_percentage"`
	HoldingsCount    int                `json:"holdings_count"`
	Allocations      []allocation.State `json:"allocations"`
}

// ProviderLister returns the configured providers in display order.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]domain.ProviderConfig, error)
}

// QuoteSource supplies current prices for held symbols.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so repositories can be
// bound to a transaction with WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
