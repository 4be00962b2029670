package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
)

// OrderSubmitter routes an order to the gateway
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error)
}

// ExecutionModel selects how a validated decision becomes a trade
type ExecutionModel string

const (
	// ModelLocalLedger fills on the local ledger inside one transaction.
	ModelLocalLedger ExecutionModel = "local"
	// ModelBroker submits to the broker and records the trade; the ledger is
	// corrected by reconciliation.
	ModelBroker ExecutionModel = "broker"
)

// ExecutionService turns validated decisions into trades
type ExecutionService struct {
	db        *sql.DB
	model     ExecutionModel
	orders    OrderSubmitter
	portfolio *portfolio.PortfolioRepository
	holdings  *portfolio.HoldingRepository
	trades    *TradeRepository
	log       zerolog.Logger
}

// NewExecutionService creates a new execution service
func NewExecutionService(
	db *sql.DB,
	model ExecutionModel,
	orders OrderSubmitter,
	portfolioRepo *portfolio.PortfolioRepository,
	holdings *portfolio.HoldingRepository,
	trades *TradeRepository,
	log zerolog.Logger,
) *ExecutionService {
	return &ExecutionService{
		db:        db,
		model:     model,
		orders:    orders,
		portfolio: portfolioRepo,
		holdings:  holdings,
		trades:    trades,
		log:       log.With().Str("service", "execution").Logger(),
	}
}

// Model returns the execution model in use
func (s *ExecutionService) Model() ExecutionModel {
	return s.model
}

// Execute applies a decision. A failure leaves no trade and no mutation.
func (s *ExecutionService) Execute(ctx context.Context, d domain.TradingDecision) (*Trade, error) {
	if d.Action != domain.ActionBuy && d.Action != domain.ActionSell {
		return nil, fmt.Errorf("%w: action %q", ErrInvalidDecision, d.Action)
	}
	if d.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidDecision, d.Quantity)
	}

	var trade *Trade
	var err error
	if s.model == ModelBroker {
		trade, err = s.executeBroker(ctx, d)
	} else {
		trade, err = s.executeLocal(ctx, d)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("decision", d.String()).Msg("Execution failed")
		return nil, err
	}

	s.log.Info().
		Str("trade_id", trade.ID).
		Str("decision", d.String()).
		Float64("total", trade.TotalAmount).
		Msg("Trade executed")
	return trade, nil
}

// executeLocal fills the order on the ledger: cash, holding and trade change together.
func (s *ExecutionService) executeLocal(ctx context.Context, d domain.TradingDecision) (*Trade, error) {
	qty := decimal.NewFromInt(int64(d.Quantity))
	price := decimal.NewFromFloat(d.ReferencePrice)
	total := qty.Mul(price)

	trade := &Trade{
		Provider:    d.Provider,
		Symbol:      d.Symbol,
		Action:      d.Action,
		Quantity:    d.Quantity,
		Price:       d.ReferencePrice,
		TotalAmount: total.Round(2).InexactFloat64(),
		Confidence:  d.Confidence,
		Reasoning:   d.Reasoning,
		ExecutedAt:  time.Now(),
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		portfolioTx := s.portfolio.WithTx(tx)
		holdingsTx := s.holdings.WithTx(tx)

		acct, err := portfolioTx.Get(ctx)
		if err != nil {
			return err
		}
		cash := decimal.NewFromFloat(acct.CashBalance)

		held, err := holdingsTx.Get(ctx, d.Provider, d.Symbol)
		if err != nil {
			return err
		}

		switch d.Action {
		case domain.ActionBuy:
			if cash.LessThan(total) {
				return fmt.Errorf("%w: need $%s, have $%s", ErrInsufficientCash, total.StringFixed(2), cash.StringFixed(2))
			}
			cash = cash.Sub(total)

			next := domain.Holding{
				Provider:     d.Provider,
				Symbol:       d.Symbol,
				Quantity:     float64(d.Quantity),
				AverageCost:  d.ReferencePrice,
				CurrentPrice: d.ReferencePrice,
			}
			if held != nil {
				prevQty := decimal.NewFromFloat(held.Quantity)
				newQty := prevQty.Add(qty)
				basis := prevQty.Mul(decimal.NewFromFloat(held.AverageCost)).Add(total)
				next.Quantity = newQty.InexactFloat64()
				next.AverageCost = basis.Div(newQty).Round(6).InexactFloat64()
			}
			if err := holdingsTx.Upsert(ctx, next); err != nil {
				return err
			}

		case domain.ActionSell:
			if held == nil || held.Quantity < float64(d.Quantity) {
				have := 0.0
				if held != nil {
					have = held.Quantity
				}
				return fmt.Errorf("%w: need %d, have %v", ErrInsufficientShares, d.Quantity, have)
			}
			cash = cash.Add(total)

			remaining := decimal.NewFromFloat(held.Quantity).Sub(qty)
			if remaining.IsZero() || remaining.IsNegative() {
				if err := holdingsTx.Delete(ctx, d.Provider, d.Symbol); err != nil {
					return err
				}
			} else {
				held.Quantity = remaining.InexactFloat64()
				held.CurrentPrice = d.ReferencePrice
				if err := holdingsTx.Upsert(ctx, *held); err != nil {
					return err
				}
			}
		}

		if err := portfolioTx.SetCash(ctx, cash.InexactFloat64()); err != nil {
			return err
		}

		// The paper gateway acknowledges instantly; a refusal rolls the fill back.
		ack, err := s.orders.SubmitOrder(ctx, d.Symbol, d.Quantity, d.Action)
		if err != nil {
			return err
		}
		trade.OrderID = ack.OrderID

		return s.trades.WithTx(tx).Create(ctx, trade)
	})
	if err != nil {
		return nil, fmt.Errorf("local execution of %s %s failed: %w", d.Action, d.Symbol, err)
	}
	return trade, nil
}

// executeBroker submits the order and records the trade at the reference price.
func (s *ExecutionService) executeBroker(ctx context.Context, d domain.TradingDecision) (*Trade, error) {
	ack, err := s.orders.SubmitOrder(ctx, d.Symbol, d.Quantity, d.Action)
	if err != nil {
		return nil, fmt.Errorf("broker rejected %s %s: %w", d.Action, d.Symbol, err)
	}

	total := decimal.NewFromInt(int64(d.Quantity)).Mul(decimal.NewFromFloat(d.ReferencePrice))
	trade := &Trade{
		Provider:    d.Provider,
		Symbol:      d.Symbol,
		Action:      d.Action,
		Quantity:    d.Quantity,
		Price:       d.ReferencePrice,
		TotalAmount: total.Round(2).InexactFloat64(),
		Confidence:  d.Confidence,
		Reasoning:   d.Reasoning,
		OrderID:     ack.OrderID,
		ExecutedAt:  time.Now(),
	}
	// The order is live once acknowledged; a stopping cycle must still record it.
	if err := s.trades.Create(context.WithoutCancel(ctx), trade); err != nil {
		// The order is live at the broker; reconciliation will pick up the position.
		s.log.Error().Err(err).Str("order_id", ack.OrderID).Msg("Order submitted but trade not recorded")
		return nil, err
	}
	return trade, nil
}
