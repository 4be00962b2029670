// Package ai implements the desk's AI backends behind domain.TextGenerator.
// OpenAI and DeepSeek go through eino chat models; Anthropic and Gemini are
// called over REST.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/reliability"
)

// DefaultModels is used when a provider has no model override.
var DefaultModels = map[domain.ProviderName]string{
	domain.ProviderOpenAI:    "gpt-4o-mini",
	domain.ProviderDeepSeek:  "deepseek-chat",
	domain.ProviderAnthropic: "claude-3-5-haiku-latest",
	domain.ProviderGemini:    "gemini-2.0-flash",
}

// Factory builds generators for configured providers.
type Factory struct {
	cfg config.AIConfig
	log zerolog.Logger

	// Base URLs, overridable in tests.
	anthropicURL string
	geminiURL    string
	openaiURL    string
	deepseekURL  string
}

// NewFactory creates a generator factory
func NewFactory(cfg config.AIConfig, log zerolog.Logger) *Factory {
	return &Factory{
		cfg:          cfg,
		log:          log.With().Str("component", "ai").Logger(),
		anthropicURL: "https://api.anthropic.com",
		geminiURL:    "https://generativelanguage.googleapis.com",
	}
}

// New returns a retrying, rate-limited generator for provider. The provider's own
// key wins over the environment key.
func (f *Factory) New(ctx context.Context, provider domain.ProviderConfig) (domain.TextGenerator, error) {
	apiKey := provider.APIKey
	if apiKey == "" {
		apiKey = f.cfg.Keys[provider.Name]
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s has no api key: %w", provider.Name, domain.ErrNotConfigured)
	}

	model := provider.Model
	if model == "" {
		model = DefaultModels[provider.Name]
	}

	var (
		gen domain.TextGenerator
		err error
	)
	switch provider.Name {
	case domain.ProviderOpenAI:
		gen, err = newOpenAI(ctx, apiKey, model, f.openaiURL, f.cfg.RequestTimeout)
	case domain.ProviderDeepSeek:
		gen, err = newDeepSeek(ctx, apiKey, model, f.deepseekURL, f.cfg.RequestTimeout)
	case domain.ProviderAnthropic:
		gen = newAnthropic(apiKey, model, f.anthropicURL, f.cfg.RequestTimeout)
	case domain.ProviderGemini:
		gen = newGemini(apiKey, model, f.geminiURL, f.cfg.RequestTimeout)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s generator: %w", provider.Name, err)
	}

	return NewReliableGenerator(gen, f.retryPolicy(), f.cfg.RequestsPerMinute, f.cfg.RequestTimeout, f.log), nil
}

func (f *Factory) retryPolicy() reliability.RetryPolicy {
	p := reliability.DefaultRetryPolicy
	p.MaxRetries = f.cfg.MaxRetries
	if f.cfg.BaseDelay > 0 {
		p.BaseDelay = f.cfg.BaseDelay
	}
	if f.cfg.MaxDelay > 0 {
		p.MaxDelay = f.cfg.MaxDelay
	}
	return p
}

// ReliableGenerator wraps a backend with a rate limiter, a per-attempt timeout
// and the bounded retry policy.
type ReliableGenerator struct {
	inner   domain.TextGenerator
	policy  reliability.RetryPolicy
	limiter *rate.Limiter
	timeout time.Duration
	log     zerolog.Logger
}

// NewReliableGenerator wraps inner. requestsPerMinute <= 0 disables limiting.
func NewReliableGenerator(inner domain.TextGenerator, policy reliability.RetryPolicy, requestsPerMinute int, timeout time.Duration, log zerolog.Logger) *ReliableGenerator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return &ReliableGenerator{
		inner:   inner,
		policy:  policy,
		limiter: limiter,
		timeout: timeout,
		log:     log.With().Str("provider", string(inner.Provider())).Logger(),
	}
}

// Generate implements domain.TextGenerator
func (g *ReliableGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, opts domain.GenerateOptions) (string, error) {
	return reliability.Do(ctx, g.policy, g.log, "generate", func(ctx context.Context) (string, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		text, err := g.inner.Generate(ctx, messages, opts)
		if err != nil {
			return "", classifyError(ctx, err)
		}
		return text, nil
	})
}

// Provider implements domain.TextGenerator
func (g *ReliableGenerator) Provider() domain.ProviderName {
	return g.inner.Provider()
}

// classifyError maps backend errors onto the retryable sentinels. Errors that
// already wrap a sentinel pass through.
func classifyError(ctx context.Context, err error) error {
	if reliability.IsTransient(err) {
		return err
	}
	// A per-attempt timeout is transient; the caller's own cancellation is not.
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%v: %w", err, domain.ErrTransient)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return fmt.Errorf("%v: %w", err, domain.ErrRateLimited)
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"),
		strings.Contains(msg, "504"), strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "eof"), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%v: %w", err, domain.ErrTransient)
	}
	return err
}

// splitSystem separates system turns from the conversation for APIs that take
// the system prompt out of band.
func splitSystem(messages []domain.ChatMessage) (string, []domain.ChatMessage) {
	var system []string
	rest := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
