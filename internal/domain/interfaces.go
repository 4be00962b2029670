package domain

import (
	"context"
	"errors"
)

// Sentinel errors shared by gateway and provider implementations.
var (
	// ErrGatewayUnavailable marks a market/account gateway that could not serve a request.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrOrderRejected marks an order the gateway refused.
	ErrOrderRejected = errors.New("order rejected")
	// ErrRateLimited marks a request refused for rate limiting. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks a transport-level or server-side failure. Retryable.
	ErrTransient = errors.New("transient failure")
	// ErrNotConfigured marks a provider or client missing its credentials.
	ErrNotConfigured = errors.New("not configured")
)

// MarketGateway defines the market data and account operations the desk needs.
// Two implementations exist: the broker gateway (orders delegated to the broker,
// state reconciled from it) and the paper gateway (orders filled on the local ledger).
type MarketGateway interface {
	// Market data
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetBars(ctx context.Context, symbol string, r BarRange) ([]Bar, error)

	// Account
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]Position, error)

	// Trading
	SubmitOrder(ctx context.Context, symbol string, quantity int, side TradeAction) (*OrderResult, error)

	// Market status
	IsMarketOpen(ctx context.Context) (bool, error)
}

// NewsSource supplies recent headlines for a symbol.
type NewsSource interface {
	GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error)
}

// Role is the speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation sent to an AI backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerateOptions tunes a single generation request.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// TextGenerator generates text from a structured conversation.
// Implementations exist per backend; failures that are worth retrying wrap
// ErrRateLimited or ErrTransient.
type TextGenerator interface {
	Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (string, error)
	Provider() ProviderName
}
