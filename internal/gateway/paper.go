package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/portfolio"
)

// PriceSource supplies quotes and history; the Yahoo client is the production one.
type PriceSource interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error)
}

// Calendar answers market-hours questions from the exchange calendar.
type Calendar interface {
	IsMarketOpen(ctx context.Context) (bool, error)
	MarketStatus(ctx context.Context) (*domain.MarketStatus, error)
}

// Ledger is the local account the paper desk trades against.
type Ledger interface {
	Get(ctx context.Context) (*portfolio.Portfolio, error)
}

// HoldingsSource lists local holdings across providers.
type HoldingsSource interface {
	GetAll(ctx context.Context) ([]domain.Holding, error)
}

// PaperGateway prices from an external feed and fills every valid order
// immediately. The ledger mutation itself belongs to the execution service,
// which calls SubmitOrder inside its transaction for the order id.
type PaperGateway struct {
	prices   PriceSource
	calendar Calendar
	ledger   Ledger
	holdings HoldingsSource
	news     domain.NewsSource
	cache    *Cache
	log      zerolog.Logger
}

// NewPaperGateway creates a paper gateway. news may be nil.
func NewPaperGateway(prices PriceSource, calendar Calendar, ledger Ledger, holdings HoldingsSource, news domain.NewsSource, cache *Cache, log zerolog.Logger) *PaperGateway {
	return &PaperGateway{
		prices:   prices,
		calendar: calendar,
		ledger:   ledger,
		holdings: holdings,
		news:     news,
		cache:    cache,
		log:      log.With().Str("component", "paper_gateway").Logger(),
	}
}

// GetQuote implements domain.MarketGateway
func (g *PaperGateway) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return fetchCached(ctx, g.cache, clientdata.TableQuotes, quoteKey(symbol), clientdata.TTLQuote,
		func(ctx context.Context) (*domain.Quote, error) {
			return g.prices.GetQuote(ctx, strings.ToUpper(symbol))
		})
}

// GetBars implements domain.MarketGateway
func (g *PaperGateway) GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error) {
	return fetchCached(ctx, g.cache, clientdata.TableBars, barsKey(symbol, r), clientdata.TTLBars,
		func(ctx context.Context) ([]domain.Bar, error) {
			return g.prices.GetBars(ctx, strings.ToUpper(symbol), r)
		})
}

// GetNews implements domain.NewsSource. Without a news source the paper desk
// trades on prices alone.
func (g *PaperGateway) GetNews(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	if g.news == nil {
		return nil, nil
	}
	return fetchCached(ctx, g.cache, clientdata.TableNews, newsKey(symbol, limit), clientdata.TTLNews,
		func(ctx context.Context) ([]domain.NewsItem, error) {
			return g.news.GetNews(ctx, strings.ToUpper(symbol), limit)
		})
}

// GetAccountSnapshot reports the local ledger: cash plus holdings at last price.
func (g *PaperGateway) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	p, err := g.ledger.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read paper ledger: %w", err)
	}
	holdings, err := g.holdings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read paper holdings: %w", err)
	}

	equity := p.CashBalance
	for _, h := range holdings {
		equity += h.MarketValue()
	}
	return &domain.AccountSnapshot{
		Cash:        p.CashBalance,
		Equity:      equity,
		BuyingPower: p.CashBalance,
	}, nil
}

// GetPositions aggregates local holdings per symbol across providers.
func (g *PaperGateway) GetPositions(ctx context.Context) ([]domain.Position, error) {
	holdings, err := g.holdings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read paper holdings: %w", err)
	}

	index := make(map[string]int)
	var out []domain.Position
	for _, h := range holdings {
		i, ok := index[h.Symbol]
		if !ok {
			index[h.Symbol] = len(out)
			out = append(out, domain.Position{Symbol: h.Symbol, CurrentPrice: h.CurrentPrice})
			i = len(out) - 1
		}
		pos := &out[i]
		cost := pos.AverageCost*pos.Quantity + h.AverageCost*h.Quantity
		pos.Quantity += h.Quantity
		if pos.Quantity > 0 {
			pos.AverageCost = cost / pos.Quantity
		}
		pos.MarketValue += h.MarketValue()
	}
	return out, nil
}

// SubmitOrder acknowledges a paper order as filled.
func (g *PaperGateway) SubmitOrder(_ context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrOrderRejected)
	}
	if side != domain.ActionBuy && side != domain.ActionSell {
		return nil, fmt.Errorf("unsupported side %s: %w", side, domain.ErrOrderRejected)
	}

	res := &domain.OrderResult{
		OrderID:     "paper-" + uuid.NewString(),
		Symbol:      strings.ToUpper(symbol),
		Side:        side,
		Quantity:    quantity,
		Status:      "filled",
		SubmittedAt: time.Now(),
	}
	g.log.Debug().Str("order_id", res.OrderID).Str("symbol", res.Symbol).Str("side", string(side)).Int("quantity", quantity).Msg("Paper order filled")
	return res, nil
}

// IsMarketOpen implements domain.MarketGateway
func (g *PaperGateway) IsMarketOpen(ctx context.Context) (bool, error) {
	return g.calendar.IsMarketOpen(ctx)
}

// MarketStatus reports the calendar's view of the session.
func (g *PaperGateway) MarketStatus(ctx context.Context) (*domain.MarketStatus, error) {
	return g.calendar.MarketStatus(ctx)
}

var (
	_ domain.MarketGateway = (*PaperGateway)(nil)
	_ domain.NewsSource    = (*PaperGateway)(nil)
)
