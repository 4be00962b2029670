package decision

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/domain"
)

// DefaultConfidence applies when the executive omits CONFIDENCE on a BUY or SELL.
const DefaultConfidence = 8

// ErrMalformedResponse marks an executive reply without a usable ACTION or QUANTITY.
var ErrMalformedResponse = errors.New("malformed executive response")

var (
	actionPattern     = regexp.MustCompile(`(?i)\bACTION\W*?:\W*([A-Z]+)`)
	quantityPattern   = regexp.MustCompile(`(?i)\bQUANTITY\W*?:\W*?(-?\d+)`)
	confidencePattern = regexp.MustCompile(`(?i)\bCONFIDENCE\W*?:\W*?(-?\d+)`)
	reasoningPattern  = regexp.MustCompile(`(?is)\bREASONING\W*?:[\s*]*(.+)`)
)

// ParseInput carries what the parser needs besides the reply.
type ParseInput struct {
	Provider    domain.ProviderName
	Symbol      string
	Price       float64
	UsableCash  float64
	TraderPitch string
}

// ParseExecutive turns the executive reply into a decision.
//
// HOLD and non-positive quantities yield (nil, nil). A reply without a
// recognisable action or quantity yields ErrMalformedResponse. A BUY costing
// more than the usable cash is reduced to what the cash covers and discarded
// when that is zero shares.
func ParseExecutive(reply string, in ParseInput) (*domain.TradingDecision, error) {
	m := actionPattern.FindStringSubmatch(reply)
	if m == nil {
		return nil, fmt.Errorf("%w: no ACTION", ErrMalformedResponse)
	}
	action, err := domain.TradeActionFromString(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if action == domain.ActionHold {
		return nil, nil
	}

	m = quantityPattern.FindStringSubmatch(reply)
	if m == nil {
		return nil, fmt.Errorf("%w: no QUANTITY", ErrMalformedResponse)
	}
	quantity, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad QUANTITY %q", ErrMalformedResponse, m[1])
	}
	if quantity <= 0 {
		return nil, nil
	}

	confidence := DefaultConfidence
	if m = confidencePattern.FindStringSubmatch(reply); m != nil {
		if c, err := strconv.Atoi(m[1]); err == nil {
			confidence = c
		}
	}
	confidence = max(1, min(10, confidence))

	reasoning := ""
	if m = reasoningPattern.FindStringSubmatch(reply); m != nil {
		reasoning = strings.TrimSpace(m[1])
	}
	if reasoning == "" {
		reasoning = strings.TrimSpace(in.TraderPitch)
	}

	if action == domain.ActionBuy {
		if in.Price <= 0 {
			return nil, nil
		}
		price := decimal.NewFromFloat(in.Price)
		cost := price.Mul(decimal.NewFromInt(int64(quantity)))
		usable := decimal.NewFromFloat(max(0, in.UsableCash))
		if cost.GreaterThan(usable) {
			affordable := int(usable.Div(price).Floor().IntPart())
			if affordable <= 0 {
				return nil, nil
			}
			reasoning += fmt.Sprintf(" (quantity reduced from %d to %d shares to fit usable cash of $%.2f)",
				quantity, affordable, in.UsableCash)
			quantity = affordable
		}
	}

	return &domain.TradingDecision{
		Provider:       in.Provider,
		Symbol:         strings.ToUpper(in.Symbol),
		Action:         action,
		Quantity:       quantity,
		Confidence:     confidence,
		Reasoning:      reasoning,
		ReferencePrice: in.Price,
	}, nil
}
