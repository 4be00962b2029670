package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/aristath/tradingdesk/internal/domain"
)

// chatModel is the part of eino's BaseChatModel the desk uses.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// einoGenerator adapts an eino chat model to domain.TextGenerator.
type einoGenerator struct {
	provider domain.ProviderName
	model    chatModel
}

func newOpenAI(ctx context.Context, apiKey, modelName, baseURL string, timeout time.Duration) (*einoGenerator, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &einoGenerator{provider: domain.ProviderOpenAI, model: cm}, nil
}

func newDeepSeek(ctx context.Context, apiKey, modelName, baseURL string, timeout time.Duration) (*einoGenerator, error) {
	cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &einoGenerator{provider: domain.ProviderDeepSeek, model: cm}, nil
}

func (g *einoGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, opts domain.GenerateOptions) (string, error) {
	input := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		input = append(input, toSchemaMessage(m))
	}

	var modelOpts []model.Option
	if opts.MaxTokens > 0 {
		modelOpts = append(modelOpts, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		modelOpts = append(modelOpts, model.WithTemperature(opts.Temperature))
	}

	out, err := g.model.Generate(ctx, input, modelOpts...)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", g.provider, err)
	}
	if out == nil || out.Content == "" {
		return "", fmt.Errorf("%s returned an empty message: %w", g.provider, domain.ErrTransient)
	}
	return out.Content, nil
}

func (g *einoGenerator) Provider() domain.ProviderName {
	return g.provider
}

func toSchemaMessage(m domain.ChatMessage) *schema.Message {
	switch m.Role {
	case domain.RoleSystem:
		return schema.SystemMessage(m.Content)
	case domain.RoleAssistant:
		return &schema.Message{Role: schema.Assistant, Content: m.Content}
	default:
		return schema.UserMessage(m.Content)
	}
}
