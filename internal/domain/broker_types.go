package domain

import "time"

// Gateway-agnostic market and account types.
// These abstract away whether data comes from a live broker or the paper desk.

// Quote is a point-in-time price for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol" msgpack:"symbol"`
	Price         float64   `json:"price" msgpack:"price"`
	PreviousClose float64   `json:"previous_close" msgpack:"previous_close"`
	ChangePercent float64   `json:"change_percent" msgpack:"change_percent"`
	Volume        int64     `json:"volume" msgpack:"volume"`
	High52Week    float64   `json:"high_52_week,omitempty" msgpack:"high_52_week"`
	Low52Week     float64   `json:"low_52_week,omitempty" msgpack:"low_52_week"`
	Timestamp     time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Open      float64   `json:"open" msgpack:"open"`
	High      float64   `json:"high" msgpack:"high"`
	Low       float64   `json:"low" msgpack:"low"`
	Close     float64   `json:"close" msgpack:"close"`
	Volume    int64     `json:"volume" msgpack:"volume"`
}

// Timeframe is the candle width requested from a gateway.
type Timeframe string

const (
	TimeframeHour Timeframe = "1Hour"
	TimeframeDay  Timeframe = "1Day"
)

// BarRange describes which candles to fetch: everything inside Lookback, at Timeframe width.
type BarRange struct {
	Lookback  time.Duration
	Timeframe Timeframe
}

// DefaultBarRange is the history window the decision pipeline uses.
var DefaultBarRange = BarRange{Lookback: 30 * 24 * time.Hour, Timeframe: TimeframeDay}

// NewsItem is one headline about a symbol.
type NewsItem struct {
	Headline    string    `json:"headline" msgpack:"headline"`
	Summary     string    `json:"summary" msgpack:"summary"`
	Source      string    `json:"source" msgpack:"source"`
	URL         string    `json:"url" msgpack:"url"`
	PublishedAt time.Time `json:"published_at" msgpack:"published_at"`
}

// AccountSnapshot is the gateway's view of account balances.
type AccountSnapshot struct {
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
}

// Position is the gateway's view of one open position.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
}

// OrderResult is the gateway's acknowledgement of a submitted order.
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Side        TradeAction `json:"side"`
	Quantity    int         `json:"quantity"`
	Status      string      `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// MarketStatus is the open/closed state of the market with the next transitions.
type MarketStatus struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
	Timestamp time.Time `json:"timestamp"`
}
