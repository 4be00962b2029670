package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/domain"
)

// ComputeStats derives realised performance per symbol: the average sell
// price minus the average buy price, weighted by the matched quantity.
// A symbol counts once, as a win or a loss, when it has both buys and sells.
func ComputeStats(trades []Trade) Stats {
	stats := Stats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	type side struct {
		qty   decimal.Decimal
		total decimal.Decimal
	}
	buys := make(map[string]*side)
	sells := make(map[string]*side)
	var order []string

	for _, t := range trades {
		book := buys
		if t.Action == domain.ActionSell {
			book = sells
		}
		if _, seen := buys[t.Symbol]; !seen {
			if _, seen := sells[t.Symbol]; !seen {
				order = append(order, t.Symbol)
			}
		}
		s, ok := book[t.Symbol]
		if !ok {
			s = &side{}
			book[t.Symbol] = s
		}
		s.qty = s.qty.Add(decimal.NewFromInt(int64(t.Quantity)))
		s.total = s.total.Add(decimal.NewFromFloat(t.TotalAmount))
	}

	pnl := decimal.Zero
	var returns []decimal.Decimal
	for _, symbol := range order {
		b, okB := buys[symbol]
		s, okS := sells[symbol]
		if !okB || !okS {
			continue
		}

		ret := s.total.Div(s.qty).Sub(b.total.Div(b.qty))
		returns = append(returns, ret)
		if ret.IsPositive() {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
		pnl = pnl.Add(ret.Mul(decimal.Min(b.qty, s.qty)))
	}

	if closed := stats.WinningTrades + stats.LosingTrades; closed > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(closed))).
			Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	stats.TotalProfitLoss = pnl.Round(2).InexactFloat64()

	if len(returns) > 0 {
		sum := decimal.Zero
		best, worst := returns[0], returns[0]
		for _, r := range returns {
			sum = sum.Add(r)
			best = decimal.Max(best, r)
			worst = decimal.Min(worst, r)
		}
		stats.AverageTradeReturn = sum.Div(decimal.NewFromInt(int64(len(returns)))).Round(4).InexactFloat64()
		b, w := best.Round(4).InexactFloat64(), worst.Round(4).InexactFloat64()
		stats.BestTrade = &b
		stats.WorstTrade = &w
	}

	return stats
}

// Stats loads the history, optionally for one provider, and computes stats.
func (r *TradeRepository) Stats(ctx context.Context, provider domain.ProviderName) (Stats, error) {
	trades, err := r.List(ctx, TradeFilter{Provider: provider})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(trades), nil
}
