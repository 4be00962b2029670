package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/events"
)

// StatusMonitor polls the market session and emits MARKET_STATUS_CHANGED when
// it opens or closes.
type StatusMonitor struct {
	market       MarketStatusSource
	eventManager *events.Manager
	log          zerolog.Logger

	mu       sync.Mutex
	known    bool
	lastOpen bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(market MarketStatusSource, eventManager *events.Manager, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		market:       market,
		eventManager: eventManager,
		log:          log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitor(ctx, interval, m.done)
}

// Stop ends monitoring and waits for the loop to exit
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check emits on every transition, including the first observation.
func (m *StatusMonitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status, err := m.market.MarketStatus(checkCtx)
	if err != nil {
		m.log.Debug().Err(err).Msg("Market status check failed")
		return
	}

	m.mu.Lock()
	changed := !m.known || status.IsOpen != m.lastOpen
	m.known = true
	m.lastOpen = status.IsOpen
	m.mu.Unlock()

	if !changed || m.eventManager == nil {
		return
	}
	m.eventManager.Emit(events.MarketStatusChanged, "status_monitor", map[string]interface{}{
		"is_open":    status.IsOpen,
		"next_open":  status.NextOpen.Format(time.RFC3339),
		"next_close": status.NextClose.Format(time.RFC3339),
	})
}
