package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// Generation settings per role.
var roleOptions = map[Role]domain.GenerateOptions{
	RoleTrader:      {MaxTokens: 600, Temperature: 0.7},
	RoleRiskManager: {MaxTokens: 500, Temperature: 0.4},
	RoleExecutive:   {MaxTokens: 300, Temperature: 0.2},
}

// Transcript records the three turns of one deliberation.
type Transcript struct {
	Pitch    string
	Critique string
	Verdict  string
}

// Outcome is the result of one deliberation. Decision is nil for HOLD,
// non-positive or unaffordable quantities, and malformed replies.
type Outcome struct {
	Decision   *domain.TradingDecision
	Transcript Transcript
	Malformed  bool
	Duration   time.Duration
}

// Pipeline runs trader, risk manager and executive in sequence. Retries and
// backoff live in the generator the caller passes in.
type Pipeline struct {
	log zerolog.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{log: log.With().Str("service", "decision_pipeline").Logger()}
}

// Decide runs the deliberation for one symbol. An error means a role call
// failed after the generator's retries; the caller drops this symbol for this
// provider only.
func (p *Pipeline) Decide(ctx context.Context, gen domain.TextGenerator, mc *MarketContext) (*Outcome, error) {
	start := time.Now()
	log := p.log.With().
		Str("provider", string(mc.Provider.Name)).
		Str("symbol", mc.Symbol).
		Logger()

	data := promptData{
		Provider:           string(mc.Provider.Name),
		Persona:            string(mc.Provider.Persona),
		PersonaDescription: mc.Provider.Persona.Description(),
		Symbol:             mc.Symbol,
		Context:            mc.Render(),
	}
	out := &Outcome{}

	pitch, err := p.ask(ctx, gen, RoleTrader, data)
	if err != nil {
		return nil, err
	}
	out.Transcript.Pitch = pitch
	data.Pitch = pitch

	critique, err := p.ask(ctx, gen, RoleRiskManager, data)
	if err != nil {
		return nil, err
	}
	out.Transcript.Critique = critique
	data.Critique = critique

	verdict, err := p.ask(ctx, gen, RoleExecutive, data)
	if err != nil {
		return nil, err
	}
	out.Transcript.Verdict = verdict

	decision, err := ParseExecutive(verdict, ParseInput{
		Provider:    mc.Provider.Name,
		Symbol:      mc.Symbol,
		Price:       mc.Quote.Price,
		UsableCash:  mc.Allocation.UsableCash,
		TraderPitch: pitch,
	})
	out.Duration = time.Since(start)
	if errors.Is(err, ErrMalformedResponse) {
		out.Malformed = true
		log.Warn().Err(err).Str("reply", truncate(verdict, 500)).Msg("Could not parse executive reply")
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	out.Decision = decision
	if decision == nil {
		log.Debug().Dur("duration", out.Duration).Msg("No actionable decision")
	} else {
		log.Info().
			Str("action", string(decision.Action)).
			Int("quantity", decision.Quantity).
			Int("confidence", decision.Confidence).
			Dur("duration", out.Duration).
			Msg("Decision reached")
	}
	return out, nil
}

func (p *Pipeline) ask(ctx context.Context, gen domain.TextGenerator, role Role, data promptData) (string, error) {
	prompt, err := renderPrompt(string(role), data)
	if err != nil {
		return "", err
	}
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemPrompts[role]},
		{Role: domain.RoleUser, Content: prompt},
	}
	reply, err := gen.Generate(ctx, messages, roleOptions[role])
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", role, err)
	}
	return strings.TrimSpace(reply), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
