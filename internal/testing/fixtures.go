package testing

import (
	"strconv"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

// NewProviderFixtures returns an active configuration for every provider.
func NewProviderFixtures() []domain.ProviderConfig {
	now := time.Now()
	configs := make([]domain.ProviderConfig, 0, len(domain.AllProviders))
	for _, name := range domain.AllProviders {
		configs = append(configs, domain.ProviderConfig{
			Name:              name,
			APIKey:            "test-" + string(name),
			Active:            true,
			AllocationCeiling: domain.DefaultAllocationCeiling,
			Persona:           domain.PersonaBalanced,
			UpdatedAt:         now,
		})
	}
	return configs
}

// NewBarFixtures returns n daily bars ending today with a gentle uptrend from start.
func NewBarFixtures(n int, start float64) []domain.Bar {
	bars := make([]domain.Bar, 0, n)
	day := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		price = price * 1.01
		if i%4 == 3 {
			price = price * 0.985
		}
		bars = append(bars, domain.Bar{
			Timestamp: day.AddDate(0, 0, i+1),
			Open:      open,
			High:      price * 1.005,
			Low:       open * 0.995,
			Close:     price,
			Volume:    1_000_000 + int64(i)*1000,
		})
	}
	return bars
}

// ExecutiveReply renders a well-formed executive reply.
func ExecutiveReply(action string, quantity, confidence int, reasoning string) string {
	return "ACTION: " + action + "\n" +
		"QUANTITY: " + strconv.Itoa(quantity) + "\n" +
		"CONFIDENCE: " + strconv.Itoa(confidence) + "\n" +
		"REASONING: " + reasoning + "\n"
}
