package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

type barResponse struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V int64     `json:"v"`
}

type snapshotResponse struct {
	LatestTrade *struct {
		P float64   `json:"p"`
		T time.Time `json:"t"`
	} `json:"latestTrade"`
	DailyBar     *barResponse `json:"dailyBar"`
	PrevDailyBar *barResponse `json:"prevDailyBar"`
}

// GetSnapshot returns the latest trade price with daily change and volume
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*domain.Quote, error) {
	var resp snapshotResponse
	if err := c.get(ctx, c.data, "/v2/stocks/"+symbol+"/snapshot", map[string]string{"feed": "iex"}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", symbol, err)
	}

	q := &domain.Quote{Symbol: symbol}
	switch {
	case resp.LatestTrade != nil:
		q.Price = resp.LatestTrade.P
		q.Timestamp = resp.LatestTrade.T
	case resp.DailyBar != nil:
		q.Price = resp.DailyBar.C
		q.Timestamp = resp.DailyBar.T
	default:
		return nil, fmt.Errorf("no price for %s: %w", symbol, domain.ErrGatewayUnavailable)
	}
	if resp.DailyBar != nil {
		q.Volume = resp.DailyBar.V
	}
	if resp.PrevDailyBar != nil && resp.PrevDailyBar.C > 0 {
		q.PreviousClose = resp.PrevDailyBar.C
		q.ChangePercent = (q.Price - q.PreviousClose) / q.PreviousClose * 100
	}
	return q, nil
}

type barsResponse struct {
	Bars          []barResponse `json:"bars"`
	NextPageToken *string       `json:"next_page_token"`
}

// GetBars returns candles inside the range, oldest first. Follows pagination.
func (c *Client) GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error) {
	start := time.Now().Add(-r.Lookback).UTC().Format(time.RFC3339)
	query := map[string]string{
		"timeframe":  string(r.Timeframe),
		"start":      start,
		"limit":      "1000",
		"adjustment": "split",
		"feed":       "iex",
	}

	var bars []domain.Bar
	for page := 0; page < 10; page++ {
		var resp barsResponse
		if err := c.get(ctx, c.data, "/v2/stocks/"+symbol+"/bars", query, &resp); err != nil {
			return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
		}
		for _, b := range resp.Bars {
			bars = append(bars, domain.Bar{Timestamp: b.T, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		query["page_token"] = *resp.NextPageToken
	}
	return bars, nil
}

type newsResponse struct {
	News []struct {
		Headline  string    `json:"headline"`
		Summary   string    `json:"summary"`
		Source    string    `json:"source"`
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"news"`
}

// GetNews returns the most recent headlines for symbol, newest first
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		limit = 5
	}

	var resp newsResponse
	query := map[string]string{
		"symbols": symbol,
		"limit":   strconv.Itoa(limit),
		"sort":    "desc",
	}
	if err := c.get(ctx, c.data, "/v1beta1/news", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get news for %s: %w", symbol, err)
	}

	items := make([]domain.NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		items = append(items, domain.NewsItem{
			Headline:    n.Headline,
			Summary:     n.Summary,
			Source:      n.Source,
			URL:         n.URL,
			PublishedAt: n.CreatedAt,
		})
	}
	return items, nil
}
