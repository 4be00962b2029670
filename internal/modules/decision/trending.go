// Package decision runs the three-role deliberation that turns market context
// into at most one trading decision per provider and symbol.
package decision

import "strings"

// TrendingSymbols is the fixed universe the desk scans every cycle.
var TrendingSymbols = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA",
	"META", "NVDA", "NFLX", "AMD", "INTC",
	"SPY", "QQQ", "IWM", "DIA", "VTI",
}

// DefaultUniverseSize is how many trending symbols a cycle analyses.
const DefaultUniverseSize = 10

// Universe returns the first n trending symbols followed by any held symbols
// not already listed. Order is stable and symbols are uppercased.
func Universe(n int, held []string) []string {
	if n > len(TrendingSymbols) {
		n = len(TrendingSymbols)
	}
	if n < 0 {
		n = 0
	}

	seen := make(map[string]bool, n+len(held))
	out := make([]string, 0, n+len(held))
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range TrendingSymbols[:n] {
		add(s)
	}
	for _, s := range held {
		add(s)
	}
	return out
}
