package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// BotConfigRepository stores the single bot_config row.
type BotConfigRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewBotConfigRepository creates a bot config repository
func NewBotConfigRepository(db *sql.DB, log zerolog.Logger) *BotConfigRepository {
	return &BotConfigRepository{
		db:  db,
		log: log.With().Str("repo", "bot_config").Logger(),
	}
}

// Ensure writes the default row if none exists.
func (r *BotConfigRepository) Ensure(ctx context.Context) error {
	d := domain.DefaultBotConfig()
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO bot_config
			(id, is_active, max_daily_trades, max_position_size, risk_tolerance,
			 stop_loss, take_profit, min_cash_reserve, interval_minutes, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, boolToInt(d.IsActive), d.MaxDailyTrades, d.MaxPositionSize, string(d.RiskTolerance),
		d.StopLoss, d.TakeProfit, d.MinCashReserve, d.IntervalMinutes, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to ensure bot config: %w", err)
	}
	return nil
}

// Get returns the bot configuration. The row is created by Ensure at startup;
// without it Get returns ErrBotConfigMissing.
func (r *BotConfigRepository) Get(ctx context.Context) (domain.BotConfig, error) {
	var (
		c       domain.BotConfig
		active  int
		risk    string
		updated string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT is_active, max_daily_trades, max_position_size, risk_tolerance,
		       stop_loss, take_profit, min_cash_reserve, interval_minutes, updated_at
		FROM bot_config WHERE id = 1
	`).Scan(&active, &c.MaxDailyTrades, &c.MaxPositionSize, &risk,
		&c.StopLoss, &c.TakeProfit, &c.MinCashReserve, &c.IntervalMinutes, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BotConfig{}, ErrBotConfigMissing
	}
	if err != nil {
		return domain.BotConfig{}, fmt.Errorf("failed to get bot config: %w", err)
	}
	c.IsActive = active == 1
	c.RiskTolerance = domain.RiskTolerance(risk)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// Save validates and stores the whole configuration.
func (r *BotConfigRepository) Save(ctx context.Context, c domain.BotConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := r.Ensure(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE bot_config SET
			is_active = ?, max_daily_trades = ?, max_position_size = ?, risk_tolerance = ?,
			stop_loss = ?, take_profit = ?, min_cash_reserve = ?, interval_minutes = ?, updated_at = ?
		WHERE id = 1
	`, boolToInt(c.IsActive), c.MaxDailyTrades, c.MaxPositionSize, string(c.RiskTolerance),
		c.StopLoss, c.TakeProfit, c.MinCashReserve, c.IntervalMinutes, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save bot config: %w", err)
	}
	return nil
}

// SetActive flips the persisted active flag the scheduler re-reads every cycle.
func (r *BotConfigRepository) SetActive(ctx context.Context, active bool) error {
	if err := r.Ensure(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE bot_config SET is_active = ?, updated_at = ? WHERE id = 1`,
		boolToInt(active), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set bot active=%t: %w", active, err)
	}
	return nil
}

// SetInterval stores the cycle interval in minutes.
func (r *BotConfigRepository) SetInterval(ctx context.Context, minutes int) error {
	if minutes < 1 || minutes > 60 {
		return fmt.Errorf("interval must be between 1 and 60 minutes, got %d", minutes)
	}
	if err := r.Ensure(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE bot_config SET interval_minutes = ?, updated_at = ? WHERE id = 1`,
		minutes, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set interval: %w", err)
	}
	return nil
}
