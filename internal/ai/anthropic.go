package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aristath/tradingdesk/internal/domain"
)

const anthropicVersion = "2023-06-01"

type anthropicGenerator struct {
	client *resty.Client
	model  string
}

func newAnthropic(apiKey, modelName, baseURL string, timeout time.Duration) *anthropicGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &anthropicGenerator{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("x-api-key", apiKey).
			SetHeader("anthropic-version", anthropicVersion).
			SetHeader("Content-Type", "application/json"),
		model: modelName,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *anthropicGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, opts domain.GenerateOptions) (string, error) {
	system, turns := splitSystem(messages)

	req := anthropicRequest{
		Model:       g.model,
		MaxTokens:   opts.MaxTokens,
		System:      system,
		Temperature: opts.Temperature,
		Messages:    make([]anthropicMessage, 0, len(turns)),
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	for _, m := range turns {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: role, Content: m.Content})
	}

	var out anthropicResponse
	var apiErr anthropicError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/messages")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("anthropic request failed: %v: %w", err, domain.ErrTransient)
	}
	if resp.IsError() {
		return "", httpStatusError("anthropic", resp.StatusCode(), apiErr.Error.Message)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text: %w", domain.ErrTransient)
	}
	return text.String(), nil
}

func (g *anthropicGenerator) Provider() domain.ProviderName {
	return domain.ProviderAnthropic
}

// httpStatusError maps a REST failure onto the retry sentinels.
func httpStatusError(backend string, status int, message string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %s: %w", backend, message, domain.ErrRateLimited)
	case status >= 500 || status == 529:
		return fmt.Errorf("%s: status %d %s: %w", backend, status, message, domain.ErrTransient)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: status %d %s: %w", backend, status, message, domain.ErrNotConfigured)
	default:
		return fmt.Errorf("%s: status %d: %s", backend, status, message)
	}
}
