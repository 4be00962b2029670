package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/domain"
)

// Validator checks a decision against the provider's capital and holdings.
// It holds no state; Validate is pure and idempotent.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() Validator {
	return Validator{}
}

// Validate returns nil when the decision may execute, or a wrapped
// ErrAllocationExceeded, ErrInsufficientCash, ErrInsufficientShares or
// ErrInvalidDecision.
func (Validator) Validate(d domain.TradingDecision, usableCash float64, providerHoldings []domain.Holding, allocationExceeded bool) error {
	if d.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidDecision, d.Quantity)
	}
	if d.ReferencePrice <= 0 {
		return fmt.Errorf("%w: reference price %.4f", ErrInvalidDecision, d.ReferencePrice)
	}

	switch d.Action {
	case domain.ActionBuy:
		if allocationExceeded {
			return fmt.Errorf("%w: %s is over its ceiling", ErrAllocationExceeded, d.Provider)
		}
		cost := decimal.NewFromInt(int64(d.Quantity)).Mul(decimal.NewFromFloat(d.ReferencePrice))
		if cost.GreaterThan(decimal.NewFromFloat(usableCash)) {
			return fmt.Errorf("%w: need $%s, usable $%.2f", ErrInsufficientCash, cost.StringFixed(2), usableCash)
		}
		return nil

	case domain.ActionSell:
		held := 0.0
		for _, h := range providerHoldings {
			if h.Provider == d.Provider && h.Symbol == d.Symbol {
				held += h.Quantity
			}
		}
		if float64(d.Quantity) > held {
			return fmt.Errorf("%w: selling %d %s, holding %v", ErrInsufficientShares, d.Quantity, d.Symbol, held)
		}
		return nil
	}

	return fmt.Errorf("%w: action %q", ErrInvalidDecision, d.Action)
}

// IsValid reports whether Validate passes
func (v Validator) IsValid(d domain.TradingDecision, usableCash float64, providerHoldings []domain.Holding, allocationExceeded bool) bool {
	return v.Validate(d, usableCash, providerHoldings, allocationExceeded) == nil
}
