package work

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Processor is the main work processor that executes work items.
// It processes one work item at a time, highest priority first.
type Processor struct {
	registry   *Registry
	completion *CompletionTracker
	market     *MarketTimingChecker
	timeout    time.Duration
	log        zerolog.Logger

	trigger chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	queue    []*WorkItem
	inFlight *WorkItem
	closed   bool
}

// NewProcessor creates a new work processor.
func NewProcessor(registry *Registry, completion *CompletionTracker, market *MarketTimingChecker, log zerolog.Logger) *Processor {
	return NewProcessorWithTimeout(registry, completion, market, WorkTimeout, log)
}

// NewProcessorWithTimeout creates a new work processor with a custom timeout.
func NewProcessorWithTimeout(registry *Registry, completion *CompletionTracker, market *MarketTimingChecker, timeout time.Duration, log zerolog.Logger) *Processor {
	return &Processor{
		registry:   registry,
		completion: completion,
		market:     market,
		timeout:    timeout,
		log:        log.With().Str("component", "work_processor").Logger(),
		trigger:    make(chan struct{}, 1),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run starts the processor loop. This blocks until Stop() is called.
func (p *Processor) Run() {
	defer close(p.stopped)

	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case <-p.trigger:
			for p.processOne() {
				select {
				case <-p.stop:
					p.drain()
					return
				default:
				}
			}
		}
	}
}

// Stop stops the processor. Queued items complete with ErrProcessorStopped;
// Stop waits for the in-flight item to return.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.stopped
}

// Trigger wakes up the processor to check for work.
// This is non-blocking and can be called from any goroutine.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
		// Trigger already pending
	}
}

// Submit queues an item and returns a channel that yields its Result once.
// ctx scopes the execution: cancelling it cancels the running item.
func (p *Processor) Submit(ctx context.Context, workTypeID, subject string) (<-chan Result, error) {
	wt := p.registry.Get(workTypeID)
	if wt == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkType, workTypeID)
	}

	item := NewWorkItem(wt, subject)
	item.ctx = ctx

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProcessorStopped
	}
	if p.inFlight != nil && p.inFlight.ID == item.ID {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyQueued, item.ID)
	}
	for _, queued := range p.queue {
		if queued.ID == item.ID {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyQueued, item.ID)
		}
	}
	p.queue = append(p.queue, item)
	p.mu.Unlock()

	p.Trigger()
	return item.result, nil
}

// ExecuteNow runs a work type synchronously on the caller's goroutine,
// bypassing the queue and timing checks. Used for manual triggers.
func (p *Processor) ExecuteNow(ctx context.Context, workTypeID, subject string) error {
	wt := p.registry.Get(workTypeID)
	if wt == nil {
		return fmt.Errorf("%w: %s", ErrUnknownWorkType, workTypeID)
	}

	item := NewWorkItem(wt, subject)
	item.ctx = ctx
	res := p.execute(item, wt)
	p.completion.Record(item, res)
	return res.Err
}

// Busy reports whether an item is currently executing.
func (p *Processor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight != nil
}

// QueueLength returns the number of items waiting to run.
func (p *Processor) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// processOne executes the highest-priority queued item. Returns false when
// the queue is empty.
func (p *Processor) processOne() bool {
	item, wt := p.next()
	if item == nil {
		return false
	}

	defer func() {
		p.mu.Lock()
		p.inFlight = nil
		p.mu.Unlock()
	}()

	if !p.market.CanExecute(wt.MarketTiming) {
		p.finish(item, Result{ItemID: item.ID, Err: ErrMarketClosed, Attempts: item.Retries})
		return true
	}

	res := p.execute(item, wt)
	if res.Err == nil {
		p.finish(item, res)
		return true
	}

	if errors.Is(res.Err, context.DeadlineExceeded) {
		p.log.Error().Str("work", item.ID).Msg("work timed out")
	} else {
		p.log.Error().Err(res.Err).Str("work", item.ID).Msg("work failed")
	}

	item.Retries++
	if item.Retries <= wt.MaxRetries && item.ctx.Err() == nil {
		p.mu.Lock()
		if !p.closed {
			p.queue = append(p.queue, item)
			p.mu.Unlock()
			return true
		}
		p.mu.Unlock()
	} else if wt.MaxRetries > 0 {
		p.log.Warn().Str("work", item.ID).Int("retries", item.Retries).Msg("max retries reached, skipping")
	}

	p.finish(item, res)
	return true
}

// next pops the highest-priority item and marks it in flight.
// Within a priority, items run in submission order.
func (p *Processor) next() (*WorkItem, *WorkType) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 {
		sort.SliceStable(p.queue, func(i, j int) bool {
			return p.priorityOf(p.queue[i]) > p.priorityOf(p.queue[j])
		})
		item := p.queue[0]
		p.queue = p.queue[1:]

		wt := p.registry.Get(item.TypeID)
		if wt == nil {
			item.result <- Result{ItemID: item.ID, Err: fmt.Errorf("%w: %s", ErrUnknownWorkType, item.TypeID)}
			close(item.result)
			continue
		}
		p.inFlight = item
		return item, wt
	}
	return nil, nil
}

func (p *Processor) priorityOf(item *WorkItem) Priority {
	if wt := p.registry.Get(item.TypeID); wt != nil {
		return wt.Priority
	}
	return PriorityLow
}

func (p *Processor) execute(item *WorkItem, wt *WorkType) Result {
	timeout := p.timeout
	if wt.Timeout > 0 {
		timeout = wt.Timeout
	}

	ctx, cancel := context.WithTimeout(item.ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.safeExecute(ctx, wt, item.Subject)
	return Result{
		ItemID:   item.ID,
		Err:      err,
		Attempts: item.Retries + 1,
		Duration: time.Since(start),
	}
}

func (p *Processor) safeExecute(ctx context.Context, wt *WorkType, subject string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in work %s: %v", wt.ID, r)
		}
	}()
	return wt.Execute(ctx, subject)
}

func (p *Processor) finish(item *WorkItem, res Result) {
	p.completion.Record(item, res)
	item.result <- res
	close(item.result)
}

// drain completes every queued item with ErrProcessorStopped.
func (p *Processor) drain() {
	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, item := range queued {
		item.result <- Result{ItemID: item.ID, Err: ErrProcessorStopped}
		close(item.result)
	}
}
