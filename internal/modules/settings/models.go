// Package settings persists the provider roster and the desk-wide bot
// configuration in the desk database.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrProviderNotFound is returned when a provider has no stored configuration.
var ErrProviderNotFound = errors.New("provider not found")

// ErrBotConfigMissing is returned when the bot_config row was never created.
var ErrBotConfigMissing = errors.New("bot config missing")

// ProviderUpdate is a partial provider change. Nil fields are left as they are.
type ProviderUpdate struct {
	APIKey            *string  `json:"api_key,omitempty"`
	Model             *string  `json:"model,omitempty"`
	Active            *bool    `json:"active,omitempty"`
	AllocationCeiling *float64 `json:"allocation_ceiling,omitempty"`
	Persona           *string  `json:"persona,omitempty"`
}

// BotConfigUpdate is a partial bot configuration change.
type BotConfigUpdate struct {
	MaxDailyTrades  *int     `json:"max_daily_trades,omitempty"`
	MaxPositionSize *float64 `json:"max_position_size,omitempty"`
	RiskTolerance   *string  `json:"risk_tolerance,omitempty"`
	StopLoss        *float64 `json:"stop_loss,omitempty"`
	TakeProfit      *float64 `json:"take_profit,omitempty"`
	MinCashReserve  *float64 `json:"min_cash_reserve,omitempty"`
	IntervalMinutes *int     `json:"interval_minutes,omitempty"`
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
