// Package events provides the desk's event bus and the persisted activity log.
package events

import "time"

// EventType represents different event types
type EventType string

// Activity actions. These are persisted to the activity log.
const (
	BotStarted            EventType = "BOT_STARTED"
	BotStopped            EventType = "BOT_STOPPED"
	AutoTrade             EventType = "AUTO_TRADE"
	LowConfidenceDecision EventType = "LOW_CONFIDENCE_DECISION"
	AnalysisTimeout       EventType = "ANALYSIS_TIMEOUT"
	AnalysisError         EventType = "ANALYSIS_ERROR"
	TradeRejected         EventType = "TRADE_REJECTED"
	ExecutionFailed       EventType = "EXECUTION_FAILED"
	Reconciled            EventType = "RECONCILED"
	PortfolioReset        EventType = "PORTFOLIO_RESET"
)

// Transient events. Published on the bus only.
const (
	CycleStarted        EventType = "CYCLE_STARTED"
	CycleCompleted      EventType = "CYCLE_COMPLETED"
	MarketClosed        EventType = "MARKET_CLOSED"
	MarketStatusChanged EventType = "MARKET_STATUS_CHANGED"
	DailyLimitHit       EventType = "DAILY_LIMIT_REACHED"
	SettingsChanged     EventType = "SETTINGS_CHANGED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// persisted lists the event types written to the activity log.
var persisted = map[EventType]bool{
	BotStarted:            true,
	BotStopped:            true,
	AutoTrade:             true,
	LowConfidenceDecision: true,
	AnalysisTimeout:       true,
	AnalysisError:         true,
	TradeRejected:         true,
	ExecutionFailed:       true,
	Reconciled:            true,
	PortfolioReset:        true,
}

// IsActivity reports whether t is recorded in the activity log.
func (t EventType) IsActivity() bool {
	return persisted[t]
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Provider  string                 `json:"provider,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Activity is one row of the activity log
type Activity struct {
	ID        int64     `json:"id"`
	Action    EventType `json:"action"`
	Details   string    `json:"details"`
	Provider  string    `json:"provider,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
