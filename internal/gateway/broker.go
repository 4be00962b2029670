package gateway

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/domain"
)

// BrokerAPI is the part of the Alpaca client the broker gateway uses.
type BrokerAPI interface {
	GetSnapshot(ctx context.Context, symbol string) (*domain.Quote, error)
	GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error)
	GetNews(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error)
	GetAccount(ctx context.Context) (*domain.AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	SubmitMarketOrder(ctx context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error)
	GetClock(ctx context.Context) (*domain.MarketStatus, error)
}

// BrokerGateway delegates orders to the broker. Account and positions are
// always read live; market data is cached.
type BrokerGateway struct {
	api   BrokerAPI
	cache *Cache
	log   zerolog.Logger
}

// NewBrokerGateway creates a broker gateway
func NewBrokerGateway(api BrokerAPI, cache *Cache, log zerolog.Logger) *BrokerGateway {
	return &BrokerGateway{
		api:   api,
		cache: cache,
		log:   log.With().Str("component", "broker_gateway").Logger(),
	}
}

// GetQuote implements domain.MarketGateway
func (g *BrokerGateway) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return fetchCached(ctx, g.cache, clientdata.TableQuotes, quoteKey(symbol), clientdata.TTLQuote,
		func(ctx context.Context) (*domain.Quote, error) {
			return g.api.GetSnapshot(ctx, strings.ToUpper(symbol))
		})
}

// GetBars implements domain.MarketGateway
func (g *BrokerGateway) GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error) {
	return fetchCached(ctx, g.cache, clientdata.TableBars, barsKey(symbol, r), clientdata.TTLBars,
		func(ctx context.Context) ([]domain.Bar, error) {
			return g.api.GetBars(ctx, strings.ToUpper(symbol), r)
		})
}

// GetNews implements domain.NewsSource
func (g *BrokerGateway) GetNews(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	return fetchCached(ctx, g.cache, clientdata.TableNews, newsKey(symbol, limit), clientdata.TTLNews,
		func(ctx context.Context) ([]domain.NewsItem, error) {
			return g.api.GetNews(ctx, strings.ToUpper(symbol), limit)
		})
}

// GetAccountSnapshot implements domain.MarketGateway
func (g *BrokerGateway) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	return g.api.GetAccount(ctx)
}

// GetPositions implements domain.MarketGateway
func (g *BrokerGateway) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return g.api.GetPositions(ctx)
}

// SubmitOrder places a market day order
func (g *BrokerGateway) SubmitOrder(ctx context.Context, symbol string, quantity int, side domain.TradeAction) (*domain.OrderResult, error) {
	return g.api.SubmitMarketOrder(ctx, strings.ToUpper(symbol), quantity, side)
}

// IsMarketOpen asks the broker clock
func (g *BrokerGateway) IsMarketOpen(ctx context.Context) (bool, error) {
	status, err := g.api.GetClock(ctx)
	if err != nil {
		return false, err
	}
	return status.IsOpen, nil
}

// MarketStatus returns the broker clock
func (g *BrokerGateway) MarketStatus(ctx context.Context) (*domain.MarketStatus, error) {
	return g.api.GetClock(ctx)
}

var (
	_ domain.MarketGateway = (*BrokerGateway)(nil)
	_ domain.NewsSource    = (*BrokerGateway)(nil)
)
