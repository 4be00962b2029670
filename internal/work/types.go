package work

import (
	"context"
	"errors"
	"time"
)

// WorkTimeout is the default maximum duration a work item can run before being cancelled.
const WorkTimeout = 5 * time.Minute

var (
	// ErrUnknownWorkType is returned when submitting an unregistered type.
	ErrUnknownWorkType = errors.New("unknown work type")
	// ErrAlreadyQueued is returned when the same item is already queued or running.
	ErrAlreadyQueued = errors.New("work already queued")
	// ErrMarketClosed completes DuringMarketOpen work picked up while the market is closed.
	ErrMarketClosed = errors.New("market closed")
	// ErrProcessorStopped is returned by Submit after Stop.
	ErrProcessorStopped = errors.New("processor stopped")
)

// MarketTiming defines when work can be executed based on market state.
type MarketTiming int

const (
	// AnyTime means work can run regardless of market state.
	AnyTime MarketTiming = iota
	// DuringMarketOpen means work runs only while the market is open.
	DuringMarketOpen
)

// String returns a human-readable name for the market timing.
func (mt MarketTiming) String() string {
	switch mt {
	case AnyTime:
		return "AnyTime"
	case DuringMarketOpen:
		return "DuringMarketOpen"
	default:
		return "Unknown"
	}
}

// Priority defines the execution priority of work types.
type Priority int

const (
	// PriorityLow is for non-urgent work (snapshots, cache warmup).
	PriorityLow Priority = iota
	// PriorityMedium is for regular background work (sentiment, reconciliation).
	PriorityMedium
	// PriorityHigh is for important work.
	PriorityHigh
	// PriorityCritical is for trading cycles.
	PriorityCritical
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// WorkType defines a type of work that can be executed.
type WorkType struct {
	// ID is the unique identifier for this work type (e.g., "trading:cycle").
	ID string

	// MarketTiming defines when this work can be executed.
	MarketTiming MarketTiming

	// Priority determines execution order when several items are queued.
	Priority Priority

	// MaxRetries is how many times a failed item is re-queued.
	MaxRetries int

	// Timeout overrides the processor timeout when non-zero.
	Timeout time.Duration

	// Execute performs the work for a given subject.
	// Subject is empty for global work.
	Execute func(ctx context.Context, subject string) error
}

// Result is delivered once per submitted item.
type Result struct {
	ItemID   string
	Err      error
	Attempts int
	Duration time.Duration
}

// WorkItem represents a specific unit of work to be executed.
type WorkItem struct {
	// ID is the full work ID including subject (e.g., "trading:cycle:OPENAI").
	ID string

	// TypeID is the work type ID.
	TypeID string

	// Subject is empty for global work.
	Subject string

	// Retries is the number of times this item has been retried.
	Retries int

	// CreatedAt is when this work item was created.
	CreatedAt time.Time

	ctx    context.Context
	result chan Result
}

// NewWorkItem creates a new work item from a work type and subject.
func NewWorkItem(workType *WorkType, subject string) *WorkItem {
	id := workType.ID
	if subject != "" {
		id = workType.ID + ":" + subject
	}

	return &WorkItem{
		ID:        id,
		TypeID:    workType.ID,
		Subject:   subject,
		CreatedAt: time.Now(),
		ctx:       context.Background(),
		result:    make(chan Result, 1),
	}
}
