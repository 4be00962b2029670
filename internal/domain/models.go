// Package domain holds the desk's shared types and the capability interfaces
// the core depends on (market/account gateway, AI text generation).
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderName identifies one of the supported AI backends.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "OPENAI"
	ProviderDeepSeek  ProviderName = "DEEPSEEK"
	ProviderAnthropic ProviderName = "ANTHROPIC"
	ProviderGemini    ProviderName = "GEMINI"
)

// AllProviders lists every provider in display order.
var AllProviders = []ProviderName{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderGemini}

// ProviderNameFromString parses a provider name case-insensitively.
func ProviderNameFromString(s string) (ProviderName, error) {
	p := ProviderName(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown provider: %q", s)
	}
	return p, nil
}

// IsValid reports whether p is a known provider.
func (p ProviderName) IsValid() bool {
	for _, known := range AllProviders {
		if p == known {
			return true
		}
	}
	return false
}

// Persona is the strategy persona a provider trades with.
type Persona string

const (
	PersonaConservative Persona = "CONSERVATIVE"
	PersonaBalanced     Persona = "BALANCED"
	PersonaAggressive   Persona = "AGGRESSIVE"
	PersonaMomentum     Persona = "MOMENTUM"
	PersonaValue        Persona = "VALUE"
)

var personaDescriptions = map[Persona]string{
	PersonaConservative: "capital preservation first; small positions in liquid large caps, exit quickly on weakness",
	PersonaBalanced:     "blend of growth and protection; moderate position sizes, diversify across names",
	PersonaAggressive:   "seek outsized returns; accept volatility and concentrate in high-conviction ideas",
	PersonaMomentum:     "follow strength; buy names trending up on rising volume, cut laggards",
	PersonaValue:        "buy quality names trading below recent ranges; be patient and avoid chasing",
}

// PersonaFromString parses a persona, defaulting empty input to BALANCED.
func PersonaFromString(s string) (Persona, error) {
	if strings.TrimSpace(s) == "" {
		return PersonaBalanced, nil
	}
	p := Persona(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := personaDescriptions[p]; !ok {
		return "", fmt.Errorf("unknown persona: %q", s)
	}
	return p, nil
}

// Description returns the prompt text describing the persona.
func (p Persona) Description() string {
	if d, ok := personaDescriptions[p]; ok {
		return d
	}
	return personaDescriptions[PersonaBalanced]
}

// RiskTolerance is the desk-wide risk appetite.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "LOW"
	RiskMedium RiskTolerance = "MEDIUM"
	RiskHigh   RiskTolerance = "HIGH"
)

// RiskToleranceFromString parses a risk tolerance, defaulting empty input to MEDIUM.
func RiskToleranceFromString(s string) (RiskTolerance, error) {
	switch RiskTolerance(strings.ToUpper(strings.TrimSpace(s))) {
	case "", RiskMedium:
		return RiskMedium, nil
	case RiskLow:
		return RiskLow, nil
	case RiskHigh:
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk tolerance: %q", s)
}

// TradeAction is the action an AI decision or trade carries.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
)

// TradeActionFromString parses BUY/SELL/HOLD case-insensitively.
func TradeActionFromString(s string) (TradeAction, error) {
	switch a := TradeAction(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell, ActionHold:
		return a, nil
	}
	return "", fmt.Errorf("invalid trade action: %q", s)
}

// ProviderConfig is the persisted configuration of one AI decision maker.
type ProviderConfig struct {
	Name              ProviderName `json:"name" yaml:"name"`
	APIKey            string       `json:"-" yaml:"api_key"`
	Model             string       `json:"model,omitempty" yaml:"model"`
	Active            bool         `json:"active" yaml:"active"`
	AllocationCeiling float64      `json:"allocation_ceiling" yaml:"allocation_ceiling"`
	Persona           Persona      `json:"persona" yaml:"persona"`
	UpdatedAt         time.Time    `json:"updated_at" yaml:"-"`
}

// DefaultAllocationCeiling is the ceiling given to providers that do not configure one.
const DefaultAllocationCeiling = 2000.0

// BotConfig holds the desk-wide trading settings.
type BotConfig struct {
	IsActive        bool          `json:"is_active"`
	MaxDailyTrades  int           `json:"max_daily_trades"`
	MaxPositionSize float64       `json:"max_position_size"`
	RiskTolerance   RiskTolerance `json:"risk_tolerance"`
	StopLoss        float64       `json:"stop_loss"`
	TakeProfit      float64       `json:"take_profit"`
	MinCashReserve  float64       `json:"min_cash_reserve"`
	IntervalMinutes int           `json:"interval_minutes"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// DefaultBotConfig returns the settings a fresh desk starts with.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		IsActive:        false,
		MaxDailyTrades:  5,
		MaxPositionSize: 0.20,
		RiskTolerance:   RiskMedium,
		StopLoss:        -0.10,
		TakeProfit:      0.15,
		MinCashReserve:  5.00,
		IntervalMinutes: 5,
	}
}

// Validate checks the bot config for values the scheduler cannot run with.
func (c BotConfig) Validate() error {
	if c.MaxDailyTrades < 0 {
		return fmt.Errorf("max_daily_trades must be non-negative, got %d", c.MaxDailyTrades)
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size must be in (0, 1], got %.2f", c.MaxPositionSize)
	}
	if _, err := RiskToleranceFromString(string(c.RiskTolerance)); err != nil {
		return err
	}
	if c.IntervalMinutes < 1 || c.IntervalMinutes > 60 {
		return fmt.Errorf("interval_minutes must be in 1..60, got %d", c.IntervalMinutes)
	}
	return nil
}

// Holding is a provider's position in one symbol.
// Quantity is always positive; a fully sold holding is deleted.
type Holding struct {
	Provider     ProviderName `json:"provider"`
	Symbol       string       `json:"symbol"`
	Quantity     float64      `json:"quantity"`
	AverageCost  float64      `json:"average_cost"`
	CurrentPrice float64      `json:"current_price"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MarketValue is quantity times last known price.
func (h Holding) MarketValue() float64 {
	return h.Quantity * h.CurrentPrice
}

// TradingDecision is a parsed, actionable AI proposal. HOLD never becomes one.
type TradingDecision struct {
	Provider       ProviderName `json:"provider"`
	Symbol         string       `json:"symbol"`
	Action         TradeAction  `json:"action"`
	Quantity       int          `json:"quantity"`
	Confidence     int          `json:"confidence"`
	Reasoning      string       `json:"reasoning"`
	ReferencePrice float64      `json:"reference_price"`
}

// Notional is quantity times reference price.
func (d TradingDecision) Notional() float64 {
	return float64(d.Quantity) * d.ReferencePrice
}

// String renders the decision for logs and activity entries.
func (d TradingDecision) String() string {
	return fmt.Sprintf("%s %s %d %s @ $%.2f (confidence %d/10)",
		d.Provider, d.Action, d.Quantity, d.Symbol, d.ReferencePrice, d.Confidence)
}
