// Package trading validates AI decisions, executes them against the ledger or
// the broker, and keeps the append-only trade history.
package trading

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

// Rejection reasons. Each is errors.Is comparable through the wrapped detail.
var (
	ErrAllocationExceeded = errors.New("allocation exceeded")
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidDecision    = errors.New("invalid decision")
)

// Trade is an executed BUY or SELL. Trades are never updated or deleted.
type Trade struct {
	ID          string              `json:"id"`
	Provider    domain.ProviderName `json:"provider"`
	Symbol      string              `json:"symbol"`
	Action      domain.TradeAction  `json:"action"`
	Quantity    int                 `json:"quantity"`
	Price       float64             `json:"price"`
	TotalAmount float64             `json:"total_amount"`
	Confidence  int                 `json:"confidence"`
	Reasoning   string              `json:"reasoning"`
	OrderID     string              `json:"order_id,omitempty"`
	ExecutedAt  time.Time           `json:"executed_at"`
}

// Validate checks the trade before it is persisted
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if t.Action != domain.ActionBuy && t.Action != domain.ActionSell {
		return fmt.Errorf("action must be BUY or SELL, got %q", t.Action)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", t.Quantity)
	}
	if t.Price <= 0 {
		return fmt.Errorf("price must be positive, got %.4f", t.Price)
	}
	if !t.Provider.IsValid() {
		return fmt.Errorf("unknown provider %q", t.Provider)
	}
	return nil
}

// Stats summarises realised performance from the trade history
type Stats struct {
	TotalTrades        int      `json:"total_trades"`
	WinningTrades      int      `json:"winning_trades"`
	LosingTrades       int      `json:"losing_trades"`
	WinRate            float64  `json:"win_rate"`
	TotalProfitLoss    float64  `json:"total_profit_loss"`
	AverageTradeReturn float64  `json:"average_trade_return"`
	BestTrade          *float64 `json:"best_trade,omitempty"`
	WorstTrade         *float64 `json:"worst_trade,omitempty"`
}

// TradeFilter narrows a history query. Zero values match everything.
type TradeFilter struct {
	Provider domain.ProviderName
	Symbol   string
	Since    time.Time
	Limit    int
	Offset   int
}
