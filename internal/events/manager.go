package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Manager emits events on the bus, logs them, and persists activity actions.
type Manager struct {
	bus   *Bus
	store *ActivityRepository
	log   zerolog.Logger
}

// NewManager creates a new event manager. store may be nil (nothing persisted).
func NewManager(bus *Bus, store *ActivityRepository, log zerolog.Logger) *Manager {
	return &Manager{
		bus:   bus,
		store: store,
		log:   log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes a transient event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.bus.Publish(event)
}

// Record writes an activity entry and publishes it. Persistence failures are
// logged and do not propagate; the activity log never blocks trading.
func (m *Manager) Record(ctx context.Context, action EventType, provider, symbol, format string, args ...interface{}) {
	details := fmt.Sprintf(format, args...)
	now := time.Now()

	if m.store != nil && action.IsActivity() {
		if _, err := m.store.Insert(ctx, Activity{
			Action:    action,
			Details:   details,
			Provider:  provider,
			Symbol:    symbol,
			CreatedAt: now,
		}); err != nil {
			m.log.Error().Err(err).Str("action", string(action)).Msg("Failed to persist activity")
		}
	}

	m.log.Info().
		Str("action", string(action)).
		Str("provider", provider).
		Str("symbol", symbol).
		Msg(details)

	m.bus.Publish(&Event{
		Type:      action,
		Timestamp: now,
		Module:    "activity",
		Provider:  provider,
		Symbol:    symbol,
		Message:   details,
	})
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.Emit(ErrorOccurred, module, map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	})
}

// Recent returns persisted activities newest first
func (m *Manager) Recent(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.Recent(ctx, f)
}
