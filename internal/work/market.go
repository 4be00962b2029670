package work

import (
	"context"
	"time"
)

// MarketChecker reports whether the market is open.
// The market_hours service and the gateways satisfy it.
type MarketChecker interface {
	IsMarketOpen(ctx context.Context) (bool, error)
}

// MarketTimingChecker checks whether work can execute based on market timing.
type MarketTimingChecker struct {
	market MarketChecker
}

// NewMarketTimingChecker creates a new market timing checker. A nil market
// treats every timing as executable.
func NewMarketTimingChecker(market MarketChecker) *MarketTimingChecker {
	return &MarketTimingChecker{
		market: market,
	}
}

// CanExecute returns true if the work can execute given the market timing constraint.
// A failing market check blocks DuringMarketOpen work.
func (c *MarketTimingChecker) CanExecute(timing MarketTiming) bool {
	switch timing {
	case AnyTime:
		return true
	case DuringMarketOpen:
		if c == nil || c.market == nil {
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		open, err := c.market.IsMarketOpen(ctx)
		return err == nil && open
	default:
		return false
	}
}
