// Package yahoo provides quotes and price history from Yahoo Finance for the paper desk.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// quoteFetcher and chartFetcher isolate the finance-go package functions.
type quoteFetcher func(symbol string) (*finance.Quote, error)
type chartFetcher func(params *chart.Params) ([]domain.Bar, error)

// Client wraps finance-go. finance-go calls are not context-aware, so each call
// runs in a goroutine and the caller's context bounds the wait.
type Client struct {
	getQuote quoteFetcher
	getChart chartFetcher
	log      zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		getQuote: quote.Get,
		getChart: fetchChart,
		log:      log.With().Str("client", "yahoo").Logger(),
	}
}

// GetQuote returns the regular-market price for symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	q, err := runWithContext(ctx, func() (*finance.Quote, error) { return c.getQuote(symbol) })
	if err != nil {
		return nil, fmt.Errorf("failed to get yahoo quote for %s: %v: %w", symbol, err, domain.ErrTransient)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("no yahoo quote for %s: %w", symbol, domain.ErrGatewayUnavailable)
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
		ChangePercent: q.RegularMarketChangePercent,
		Volume:        int64(q.RegularMarketVolume),
		High52Week:    q.FiftyTwoWeekHigh,
		Low52Week:     q.FiftyTwoWeekLow,
		Timestamp:     time.Unix(int64(q.RegularMarketTime), 0),
	}, nil
}

// GetBars returns candles inside the range, oldest first
func (c *Client) GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error) {
	end := time.Now()
	start := end.Add(-r.Lookback)

	interval := datetime.OneDay
	if r.Timeframe == domain.TimeframeHour {
		interval = datetime.OneHour
	}

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	}

	bars, err := runWithContext(ctx, func() ([]domain.Bar, error) { return c.getChart(params) })
	if err != nil {
		return nil, fmt.Errorf("failed to get yahoo chart for %s: %v: %w", symbol, err, domain.ErrTransient)
	}
	return bars, nil
}

func fetchChart(params *chart.Params) ([]domain.Bar, error) {
	iter := chart.Get(params)
	var bars []domain.Bar
	for iter.Next() {
		b := iter.Bar()
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		closePrice, _ := b.Close.Float64()
		bars = append(bars, domain.Bar{
			Timestamp: time.Unix(int64(b.Timestamp), 0),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

func runWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
