package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/events"
)

// Service applies validated partial updates and announces them on the event bus.
type Service struct {
	providers *ProviderRepository
	bot       *BotConfigRepository
	events    *events.Manager
	log       zerolog.Logger
}

// NewService creates a settings service. eventManager may be nil.
func NewService(providers *ProviderRepository, bot *BotConfigRepository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		providers: providers,
		bot:       bot,
		events:    eventManager,
		log:       log.With().Str("service", "settings").Logger(),
	}
}

// Providers returns the provider repository
func (s *Service) Providers() *ProviderRepository {
	return s.providers
}

// BotConfig returns the bot config repository
func (s *Service) BotConfig() *BotConfigRepository {
	return s.bot
}

// UpdateProvider applies u to the stored provider and returns the result.
func (s *Service) UpdateProvider(ctx context.Context, name domain.ProviderName, u ProviderUpdate) (*domain.ProviderConfig, error) {
	p, err := s.providers.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if u.APIKey != nil {
		p.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.Model != nil {
		p.Model = strings.TrimSpace(*u.Model)
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
	if u.AllocationCeiling != nil {
		if *u.AllocationCeiling < 0 {
			return nil, fmt.Errorf("allocation_ceiling must not be negative")
		}
		p.AllocationCeiling = *u.AllocationCeiling
	}
	if u.Persona != nil {
		persona, err := domain.PersonaFromString(*u.Persona)
		if err != nil {
			return nil, err
		}
		p.Persona = persona
	}

	if err := s.providers.Upsert(ctx, *p); err != nil {
		return nil, err
	}

	s.emit("provider", map[string]interface{}{
		"provider":           string(p.Name),
		"active":             p.Active,
		"allocation_ceiling": p.AllocationCeiling,
		"persona":            string(p.Persona),
	})
	return s.providers.Get(ctx, name)
}

// UpdateBotConfig applies u to the stored bot configuration.
func (s *Service) UpdateBotConfig(ctx context.Context, u BotConfigUpdate) (domain.BotConfig, error) {
	c, err := s.bot.Get(ctx)
	if err != nil {
		return domain.BotConfig{}, err
	}

	if u.MaxDailyTrades != nil {
		c.MaxDailyTrades = *u.MaxDailyTrades
	}
	if u.MaxPositionSize != nil {
		c.MaxPositionSize = *u.MaxPositionSize
	}
	if u.RiskTolerance != nil {
		risk, err := domain.RiskToleranceFromString(*u.RiskTolerance)
		if err != nil {
			return domain.BotConfig{}, err
		}
		c.RiskTolerance = risk
	}
	if u.StopLoss != nil {
		c.StopLoss = *u.StopLoss
	}
	if u.TakeProfit != nil {
		c.TakeProfit = *u.TakeProfit
	}
	if u.MinCashReserve != nil {
		c.MinCashReserve = *u.MinCashReserve
	}
	if u.IntervalMinutes != nil {
		c.IntervalMinutes = *u.IntervalMinutes
	}

	if err := s.bot.Save(ctx, c); err != nil {
		return domain.BotConfig{}, err
	}

	s.emit("bot_config", map[string]interface{}{
		"max_daily_trades": c.MaxDailyTrades,
		"risk_tolerance":   string(c.RiskTolerance),
		"interval_minutes": c.IntervalMinutes,
	})
	return s.bot.Get(ctx)
}

func (s *Service) emit(scope string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	data["scope"] = scope
	s.events.Emit(events.SettingsChanged, "settings", data)
}
