package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
	"github.com/aristath/tradingdesk/pkg/formulas"
)

// MarketData is the subset of the gateway the context builder reads.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetBars(ctx context.Context, symbol string, r domain.BarRange) ([]domain.Bar, error)
}

// Trend labels the direction of the last ten closes.
type Trend string

const (
	TrendUp      Trend = "UPWARD"
	TrendDown    Trend = "DOWNWARD"
	TrendNeutral Trend = "NEUTRAL"
)

// Indicators summarises recent price action.
type Indicators struct {
	Trend        Trend                    `json:"trend"`
	RecentCloses []float64                `json:"recent_closes"`
	AvgVolume10  float64                  `json:"avg_volume_10"`
	SMA20        *float64                 `json:"sma_20,omitempty"`
	RSI14        *float64                 `json:"rsi_14,omitempty"`
	MACD         *formulas.MACD           `json:"macd,omitempty"`
	Bollinger    *formulas.BollingerBands `json:"bollinger,omitempty"`
	Volatility   float64                  `json:"volatility"`
	MaxDrawdown  float64                  `json:"max_drawdown"`
	PeriodChange float64                  `json:"period_change"`
}

// MarketContext is everything a provider sees about one symbol.
type MarketContext struct {
	Symbol         string
	Provider       domain.ProviderConfig
	Allocation     allocation.State
	Holding        *domain.Holding
	Quote          domain.Quote
	Indicators     Indicators
	News           []domain.NewsItem
	RiskTolerance  domain.RiskTolerance
	MaxPosition    float64
	PortfolioValue float64
}

// ContextInput is the per-provider state the caller already holds.
type ContextInput struct {
	Provider       domain.ProviderConfig
	Allocation     allocation.State
	Holding        *domain.Holding
	Bot            domain.BotConfig
	PortfolioValue float64
}

// ContextBuilder fetches market data and derives indicators for the prompts.
type ContextBuilder struct {
	market    MarketData
	news      domain.NewsSource
	newsLimit int
	log       zerolog.Logger
}

// NewContextBuilder creates a builder. news may be nil.
func NewContextBuilder(market MarketData, news domain.NewsSource, log zerolog.Logger) *ContextBuilder {
	return &ContextBuilder{
		market:    market,
		news:      news,
		newsLimit: 5,
		log:       log.With().Str("component", "context_builder").Logger(),
	}
}

// Build assembles the context for symbol. A missing quote is an error; missing
// history or news only thins the context.
func (b *ContextBuilder) Build(ctx context.Context, symbol string, in ContextInput) (*MarketContext, error) {
	symbol = strings.ToUpper(symbol)

	quote, err := b.market.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if quote == nil || quote.Price <= 0 {
		return nil, fmt.Errorf("no usable price for %s: %w", symbol, domain.ErrGatewayUnavailable)
	}

	mc := &MarketContext{
		Symbol:         symbol,
		Provider:       in.Provider,
		Allocation:     in.Allocation,
		Holding:        in.Holding,
		Quote:          *quote,
		RiskTolerance:  in.Bot.RiskTolerance,
		MaxPosition:    in.Bot.MaxPositionSize,
		PortfolioValue: in.PortfolioValue,
	}

	bars, err := b.market.GetBars(ctx, symbol, domain.DefaultBarRange)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Msg("No price history, continuing without indicators")
	}
	mc.Indicators = ComputeIndicators(bars)

	if b.news != nil {
		items, err := b.news.GetNews(ctx, symbol, b.newsLimit)
		if err != nil {
			b.log.Warn().Err(err).Str("symbol", symbol).Msg("No news, continuing without headlines")
		}
		mc.News = items
	}

	return mc, nil
}

// ComputeIndicators derives indicators from daily bars, oldest first.
func ComputeIndicators(bars []domain.Bar) Indicators {
	ind := Indicators{Trend: TrendNeutral}
	if len(bars) == 0 {
		return ind
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	recent := bars
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	var volume float64
	ind.RecentCloses = make([]float64, len(recent))
	for i, bar := range recent {
		ind.RecentCloses[i] = bar.Close
		volume += float64(bar.Volume)
	}
	ind.AvgVolume10 = volume / float64(len(recent))

	if first, last := ind.RecentCloses[0], ind.RecentCloses[len(ind.RecentCloses)-1]; len(recent) > 1 {
		switch {
		case last > first:
			ind.Trend = TrendUp
		case last < first:
			ind.Trend = TrendDown
		}
	}

	ind.SMA20 = formulas.CalculateSMA(closes, 20)
	ind.RSI14 = formulas.CalculateRSI(closes, 14)
	ind.MACD = formulas.CalculateMACD(closes)
	ind.Bollinger = formulas.CalculateBollingerBands(closes, 20, 2)
	ind.Volatility = formulas.AnnualizedVolatility(formulas.CalculateReturns(closes))
	ind.MaxDrawdown = formulas.MaxDrawdown(closes)
	ind.PeriodChange = formulas.PercentChange(closes[0], closes[len(closes)-1])
	return ind
}

// Render writes the context block shared by all three roles.
func (mc *MarketContext) Render() string {
	var sb strings.Builder
	q := mc.Quote
	a := mc.Allocation

	fmt.Fprintf(&sb, "SYMBOL: %s\n\n", mc.Symbol)

	sb.WriteString("YOUR CAPITAL:\n")
	fmt.Fprintf(&sb, "- Allocation ceiling: $%.2f\n", a.Ceiling)
	fmt.Fprintf(&sb, "- Currently invested: $%.2f\n", a.Invested)
	fmt.Fprintf(&sb, "- Usable cash for new buys: $%.2f\n", a.UsableCash)
	if a.Exceeded {
		fmt.Fprintf(&sb, "- ALLOCATION EXCEEDED by $%.2f. You must NOT BUY. Only SELL or HOLD.\n", a.Overage)
	}
	fmt.Fprintf(&sb, "- Desk portfolio value: $%.2f\n", mc.PortfolioValue)
	fmt.Fprintf(&sb, "- Risk tolerance: %s\n", mc.RiskTolerance)
	fmt.Fprintf(&sb, "- Max position size: %.1f%% of portfolio\n\n", mc.MaxPosition*100)

	fmt.Fprintf(&sb, "CURRENT POSITION IN %s:\n", mc.Symbol)
	if mc.Holding != nil && mc.Holding.Quantity > 0 {
		fmt.Fprintf(&sb, "- Shares owned: %g\n", mc.Holding.Quantity)
		fmt.Fprintf(&sb, "- Average cost: $%.2f\n", mc.Holding.AverageCost)
		fmt.Fprintf(&sb, "- Current value: $%.2f\n\n", mc.Holding.Quantity*q.Price)
	} else {
		sb.WriteString("- None\n\n")
	}

	sb.WriteString("MARKET DATA:\n")
	fmt.Fprintf(&sb, "- Current price: $%.2f\n", q.Price)
	fmt.Fprintf(&sb, "- Daily change: %.2f%%\n", q.ChangePercent)
	if q.Volume > 0 {
		fmt.Fprintf(&sb, "- Volume: %d\n", q.Volume)
	}
	if q.High52Week > 0 && q.Low52Week > 0 {
		fmt.Fprintf(&sb, "- 52-week range: $%.2f - $%.2f\n", q.Low52Week, q.High52Week)
	}

	ind := mc.Indicators
	fmt.Fprintf(&sb, "- Recent price trend: %s\n", ind.Trend)
	if len(ind.RecentCloses) > 0 {
		closes := make([]string, len(ind.RecentCloses))
		for i, c := range ind.RecentCloses {
			closes[i] = fmt.Sprintf("%.2f", c)
		}
		fmt.Fprintf(&sb, "- Last %d closes: %s\n", len(closes), strings.Join(closes, ", "))
		fmt.Fprintf(&sb, "- Average volume (10-day): %.0f\n", ind.AvgVolume10)
		fmt.Fprintf(&sb, "- Period change: %.2f%%\n", ind.PeriodChange*100)
		fmt.Fprintf(&sb, "- Annualized volatility: %.1f%%\n", ind.Volatility*100)
		fmt.Fprintf(&sb, "- Max drawdown: %.1f%%\n", ind.MaxDrawdown*100)
	}
	if ind.SMA20 != nil {
		fmt.Fprintf(&sb, "- SMA(20): $%.2f\n", *ind.SMA20)
	}
	if ind.RSI14 != nil {
		fmt.Fprintf(&sb, "- RSI(14): %.1f\n", *ind.RSI14)
	}
	if ind.MACD != nil {
		fmt.Fprintf(&sb, "- MACD: %.3f (signal %.3f, histogram %.3f)\n", ind.MACD.Line, ind.MACD.Signal, ind.MACD.Histogram)
	}
	if ind.Bollinger != nil {
		fmt.Fprintf(&sb, "- Bollinger bands: $%.2f / $%.2f / $%.2f\n", ind.Bollinger.Lower, ind.Bollinger.Middle, ind.Bollinger.Upper)
	}

	if len(mc.News) > 0 {
		sb.WriteString("\nRECENT NEWS:\n")
		for _, n := range mc.News {
			if n.PublishedAt.IsZero() {
				fmt.Fprintf(&sb, "- %s\n", n.Headline)
				continue
			}
			fmt.Fprintf(&sb, "- [%s] %s\n", n.PublishedAt.Format(time.DateOnly), n.Headline)
		}
	}

	return sb.String()
}
