package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/tradingdesk/internal/domain"
)

// Sentiment asks one provider for a one-line BULLISH/BEARISH/NEUTRAL read per
// symbol. Lines for symbols that were not asked about are dropped.
func Sentiment(ctx context.Context, gen domain.TextGenerator, symbols []string) (map[string]string, error) {
	out := make(map[string]string, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	wanted := make(map[string]bool, len(symbols))
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || wanted[s] {
			continue
		}
		wanted[s] = true
		upper = append(upper, s)
	}

	prompt, err := renderPrompt("sentiment", promptData{Symbols: strings.Join(upper, ", ")})
	if err != nil {
		return nil, err
	}
	reply, err := gen.Generate(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: sentimentSystemPrompt},
		{Role: domain.RoleUser, Content: prompt},
	}, domain.GenerateOptions{MaxTokens: 300, Temperature: 0.5})
	if err != nil {
		return nil, fmt.Errorf("sentiment call failed: %w", err)
	}

	for _, line := range strings.Split(reply, "\n") {
		symbol, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		symbol = strings.ToUpper(strings.Trim(symbol, " \t-*#`"))
		if !wanted[symbol] {
			continue
		}
		out[symbol] = strings.TrimSpace(strings.Trim(rest, " *"))
	}
	return out, nil
}
