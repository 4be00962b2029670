package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradingdesk/internal/domain"
)

func TestGetQuote(t *testing.T) {
	c := NewClient(zerolog.Nop())
	c.getQuote = func(symbol string) (*finance.Quote, error) {
		q := &finance.Quote{}
		q.Symbol = symbol
		q.RegularMarketPrice = 101.5
		q.RegularMarketPreviousClose = 100
		q.RegularMarketChangePercent = 1.5
		q.RegularMarketVolume = 42
		return q, nil
	}

	q, err := c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 101.5, q.Price, 1e-9)
	assert.Equal(t, int64(42), q.Volume)
}

func TestGetQuote_NoPrice(t *testing.T) {
	c := NewClient(zerolog.Nop())
	c.getQuote = func(string) (*finance.Quote, error) { return &finance.Quote{}, nil }

	_, err := c.GetQuote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestGetQuote_UpstreamErrorIsTransient(t *testing.T) {
	c := NewClient(zerolog.Nop())
	c.getQuote = func(string) (*finance.Quote, error) { return nil, errors.New("remote error") }

	_, err := c.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestGetBars_UsesRange(t *testing.T) {
	c := NewClient(zerolog.Nop())
	var seen *chart.Params
	c.getChart = func(p *chart.Params) ([]domain.Bar, error) {
		seen = p
		return []domain.Bar{{Close: 1}, {Close: 2}}, nil
	}

	bars, err := c.GetBars(context.Background(), "MSFT", domain.BarRange{Lookback: 48 * time.Hour, Timeframe: domain.TimeframeHour})
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	require.NotNil(t, seen)
	assert.Equal(t, "MSFT", seen.Symbol)
}

func TestRunWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := runWithContext(ctx, func() (int, error) {
		<-block
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
