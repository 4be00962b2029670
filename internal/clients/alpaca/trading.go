package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

type accountResponse struct {
	Cash        string `json:"cash"`
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
	Status      string `json:"status"`
}

// GetAccount returns cash, equity and buying power
func (c *Client) GetAccount(ctx context.Context) (*domain.AccountSnapshot, error) {
	var resp accountResponse
	if err := c.get(ctx, c.trading, "/v2/account", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	cash, err := parseFloat(resp.Cash)
	if err != nil {
		return nil, fmt.Errorf("invalid cash %q: %w", resp.Cash, err)
	}
	equity, err := parseFloat(resp.Equity)
	if err != nil {
		return nil, fmt.Errorf("invalid equity %q: %w", resp.Equity, err)
	}
	buyingPower, err := parseFloat(resp.BuyingPower)
	if err != nil {
		return nil, fmt.Errorf("invalid buying_power %q: %w", resp.BuyingPower, err)
	}

	return &domain.AccountSnapshot{Cash: cash, Equity: equity, BuyingPower: buyingPower}, nil
}

type positionResponse struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
}

// GetPositions returns all open positions
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var resp []positionResponse
	if err := c.get(ctx, c.trading, "/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(resp))
	for _, p := range resp {
		qty, err := parseFloat(p.Qty)
		if err != nil {
			return nil, fmt.Errorf("invalid qty for %s: %w", p.Symbol, err)
		}
		avg, _ := parseFloat(p.AvgEntryPrice)
		price, _ := parseFloat(p.CurrentPrice)
		value, _ := parseFloat(p.MarketValue)

		positions = append(positions, domain.Position{
			Symbol:       p.Symbol,
			Quantity:     qty,
			AverageCost:  avg,
			CurrentPrice: price,
			MarketValue:  value,
		})
	}
	return positions, nil
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Qty         string    `json:"qty"`
	Side        string    `json:"side"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitMarketOrder submits a day market order.
// Rejections (403 insufficient buying power, 422 invalid order) wrap ErrOrderRejected.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrOrderRejected)
	}
	if side != domain.ActionBuy && side != domain.ActionSell {
		return nil, fmt.Errorf("unsupported side %s: %w", side, domain.ErrOrderRejected)
	}

	body := orderRequest{
		Symbol:      symbol,
		Qty:         strconv.Itoa(quantity),
		Side:        strings.ToLower(string(side)),
		Type:        "market",
		TimeInForce: "day",
	}

	var resp orderResponse
	err := c.do(ctx, c.trading.R().SetBody(body).SetResult(&resp), http.MethodPost, "/v2/orders")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Status == http.StatusForbidden || se.Status == http.StatusUnprocessableEntity) {
			return nil, fmt.Errorf("%s: %w", se.Message, domain.ErrOrderRejected)
		}
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}

	c.log.Info().
		Str("order_id", resp.ID).
		Str("symbol", symbol).
		Str("side", body.Side).
		Int("quantity", quantity).
		Str("status", resp.Status).
		Msg("Order submitted")

	return &domain.OrderResult{
		OrderID:     resp.ID,
		Symbol:      resp.Symbol,
		Side:        side,
		Quantity:    quantity,
		Status:      resp.Status,
		SubmittedAt: resp.SubmittedAt,
	}, nil
}

type clockResponse struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// GetClock returns the market clock
func (c *Client) GetClock(ctx context.Context) (*domain.MarketStatus, error) {
	var resp clockResponse
	if err := c.get(ctx, c.trading, "/v2/clock", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get clock: %w", err)
	}
	return &domain.MarketStatus{
		IsOpen:    resp.IsOpen,
		NextOpen:  resp.NextOpen,
		NextClose: resp.NextClose,
		Timestamp: resp.Timestamp,
	}, nil
}
