package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/events"
	"github.com/aristath/tradingdesk/internal/modules/settings"
	"github.com/aristath/tradingdesk/internal/work"
)

// Options tunes the scheduler's waits. Zero values take the defaults.
type Options struct {
	// MarketClosedBackoff is the wait while the market is closed.
	MarketClosedBackoff time.Duration
	// DailyLimitBackoff is the wait once the daily trade limit is reached.
	DailyLimitBackoff time.Duration
	// ErrorBackoff is the wait after a failed cycle.
	ErrorBackoff time.Duration
	// MinInterval floors the interval between cycles.
	MinInterval time.Duration
	// IntervalUnit is what one interval minute means. Tests shrink it.
	IntervalUnit time.Duration
	// CycleTimeout bounds a whole cycle.
	CycleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MarketClosedBackoff <= 0 {
		o.MarketClosedBackoff = time.Minute
	}
	if o.DailyLimitBackoff <= 0 {
		o.DailyLimitBackoff = time.Hour
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = time.Minute
	}
	if o.MinInterval <= 0 {
		o.MinInterval = time.Minute
	}
	if o.IntervalUnit <= 0 {
		o.IntervalUnit = time.Minute
	}
	if o.CycleTimeout <= 0 {
		o.CycleTimeout = 30 * time.Minute
	}
	return o
}

// SchedulerDeps are the collaborators of a Scheduler.
type SchedulerDeps struct {
	Config    BotConfigStore
	Providers ProviderSource
	Market    MarketClock
	Day       DayClock
	Trades    TradeLog
	Cycle     *Cycle
	Registry  *work.Registry
	Processor *work.Processor
	Events    *events.Manager
}

// Scheduler drives trading cycles while the bot is running. Start, Stop,
// SetInterval and Status never wait on a cycle in progress.
type Scheduler struct {
	deps SchedulerDeps
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	interval  int
	lastTrade *time.Time
	lastCycle *Report

	// wake interrupts a wait when the interval changes.
	wake chan struct{}
}

// NewScheduler creates a stopped scheduler and registers the cycle work type.
func NewScheduler(deps SchedulerDeps, opts Options, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		deps:     deps,
		opts:     opts.withDefaults(),
		log:      log.With().Str("component", "bot_scheduler").Logger(),
		interval: 5,
		wake:     make(chan struct{}, 1),
	}

	deps.Registry.Register(&work.WorkType{
		ID:           CycleWorkType,
		MarketTiming: work.AnyTime,
		Priority:     work.PriorityCritical,
		MaxRetries:   0,
		Timeout:      s.opts.CycleTimeout,
		Execute: func(ctx context.Context, _ string) error {
			return s.runCycle(ctx)
		},
	})

	return s
}

// ResumeIfActive starts the loop when the persisted config says the bot was
// running when the process last stopped.
func (s *Scheduler) ResumeIfActive(ctx context.Context) error {
	cfg, err := s.deps.Config.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bot config: %w", err)
	}
	if !cfg.IsActive {
		return nil
	}
	s.log.Info().Msg("Resuming trading bot from persisted state")
	return s.Start(ctx)
}

// Start transitions Stopped -> Running. Starting a running bot is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	providers, err := s.deps.Providers.ActiveProviders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active providers: %w", err)
	}
	if len(providers) == 0 {
		return ErrNoActiveProviders
	}

	cfg, err := s.deps.Config.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bot config: %w", err)
	}
	if err := s.deps.Config.SetActive(ctx, true); err != nil {
		return fmt.Errorf("failed to persist bot state: %w", err)
	}
	last, err := s.deps.Trades.LastTradeTime(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load last trade time")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	if cfg.IntervalMinutes > 0 {
		s.interval = cfg.IntervalMinutes
	}
	if last != nil {
		s.lastTrade = last
	}

	go s.loop(loopCtx, done)

	s.deps.Events.Record(ctx, events.BotStarted, "", "",
		"Trading bot started with %d active providers, interval %d minutes", len(providers), s.interval)
	return nil
}

// Stop transitions Running -> Stopped. The in-flight cycle sees its context
// cancelled; Stop does not wait for it.
func (s *Scheduler) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.deps.Config.SetActive(ctx, false)
	if err != nil {
		err = fmt.Errorf("failed to persist bot state: %w", err)
	}

	s.mu.Lock()
	wasRunning := s.running
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if wasRunning {
		s.deps.Events.Record(ctx, events.BotStopped, "", "", "Trading bot stopped")
	}
	return err
}

// Shutdown cancels the loop for process exit. The persisted state is left
// alone so ResumeIfActive picks the bot up again on the next start.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.cancel = nil
}

// Wait blocks until the current loop goroutine has exited or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetInterval changes the wait between cycles and persists it. A waiting
// loop picks up the new interval immediately.
func (s *Scheduler) SetInterval(minutes int) error {
	if minutes < 1 || minutes > 60 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, minutes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Config.SetInterval(ctx, minutes); err != nil {
		return fmt.Errorf("failed to persist interval: %w", err)
	}

	s.mu.Lock()
	s.interval = minutes
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.log.Info().Int("interval_minutes", minutes).Msg("Trading interval updated")
	return nil
}

// Status reports the control-surface view.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		IsRunning:       s.running,
		IntervalMinutes: s.interval,
		LastTradeTime:   s.lastTrade,
		LastCycle:       s.lastCycle,
	}
	if s.deps.Cycle != nil {
		st.IsAnalyzing = s.deps.Cycle.Analyzing()
		st.IsFetching = s.deps.Cycle.Fetching()
	}
	return st
}

// RunOnce dispatches one cycle outside the loop's gating. Returns
// work.ErrAlreadyQueued when a cycle is already queued or running.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.dispatch(ctx)
}

// intervalDuration is max(MinInterval, interval minutes).
func (s *Scheduler) intervalDuration() time.Duration {
	s.mu.Lock()
	d := time.Duration(s.interval) * s.opts.IntervalUnit
	s.mu.Unlock()
	if d < s.opts.MinInterval {
		d = s.opts.MinInterval
	}
	return d
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		// A newer Start may already own the scheduler.
		if s.done == done {
			s.running = false
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	s.log.Info().Msg("Trading loop started")
	for {
		if ctx.Err() != nil {
			s.log.Info().Msg("Trading loop stopped")
			return
		}

		wait, stop := s.step(ctx)
		if stop {
			return
		}
		if !s.sleep(ctx, wait) {
			s.log.Info().Msg("Trading loop stopped")
			return
		}
	}
}

// step runs one gate-and-dispatch pass and returns how long to wait before
// the next one. stop ends the loop.
func (s *Scheduler) step(ctx context.Context) (wait time.Duration, stop bool) {
	cfg, err := s.deps.Config.Get(ctx)
	if errors.Is(err, settings.ErrBotConfigMissing) {
		s.log.Error().Err(err).Msg("Bot config missing, leaving trading loop")
		return 0, true
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load bot config")
		return s.opts.ErrorBackoff, false
	}
	if !cfg.IsActive {
		s.log.Info().Msg("Bot deactivated in config, leaving trading loop")
		return 0, true
	}

	open, err := s.deps.Market.IsMarketOpen(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Market status check failed, treating market as closed")
		open = false
	}
	if !open {
		s.deps.Events.Emit(events.MarketClosed, "bot_scheduler", nil)
		return s.opts.MarketClosedBackoff, false
	}

	count, err := s.tradesToday(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count today's trades")
		return s.opts.ErrorBackoff, false
	}
	if count >= cfg.MaxDailyTrades {
		s.deps.Events.Emit(events.DailyLimitHit, "bot_scheduler", map[string]interface{}{
			"trades_today": count,
			"max":          cfg.MaxDailyTrades,
		})
		return s.opts.DailyLimitBackoff, false
	}

	err = s.dispatch(ctx)
	switch {
	case err == nil:
		return s.intervalDuration(), false
	case errors.Is(err, ErrNoActiveProviders):
		s.log.Error().Msg("No active providers, stopping trading bot")
		s.deactivate()
		return 0, true
	case ctx.Err() != nil:
		return 0, true
	case errors.Is(err, work.ErrAlreadyQueued):
		s.log.Debug().Msg("Cycle already in progress")
		return s.intervalDuration(), false
	default:
		s.log.Error().Err(err).Msg("Trading cycle failed")
		s.deps.Events.EmitError("bot_scheduler", err, nil)
		return s.opts.ErrorBackoff, false
	}
}

// deactivate persists the stopped state after a fatal loop error.
func (s *Scheduler) deactivate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Config.SetActive(ctx, false); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist bot state")
	}
	s.deps.Events.Record(ctx, events.BotStopped, "", "", "Trading bot stopped: %v", ErrNoActiveProviders)
}

// dispatch submits a cycle to the processor and waits for its result.
func (s *Scheduler) dispatch(ctx context.Context) error {
	ch, err := s.deps.Processor.Submit(ctx, CycleWorkType, "")
	if err != nil {
		return err
	}
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runCycle is the work type body.
func (s *Scheduler) runCycle(ctx context.Context) error {
	cfg, err := s.deps.Config.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bot config: %w", err)
	}
	count, err := s.tradesToday(ctx)
	if err != nil {
		return fmt.Errorf("failed to count today's trades: %w", err)
	}
	remaining := cfg.MaxDailyTrades - count

	s.deps.Events.Emit(events.CycleStarted, "bot_scheduler", map[string]interface{}{
		"remaining_trades": remaining,
	})

	report, err := s.deps.Cycle.Run(ctx, remaining)

	s.mu.Lock()
	if report != nil {
		s.lastCycle = report
		if report.LastTradeAt != nil {
			s.lastTrade = report.LastTradeAt
		}
	}
	s.mu.Unlock()

	if report != nil {
		s.deps.Events.Emit(events.CycleCompleted, "bot_scheduler", map[string]interface{}{
			"providers": report.Providers,
			"analyzed":  report.Analyzed,
			"decisions": report.Decisions,
			"executed":  report.Executed,
			"rejected":  report.Rejected,
			"failed":    report.Failed,
			"duration":  report.Duration.String(),
		})
	}
	return err
}

func (s *Scheduler) tradesToday(ctx context.Context) (int, error) {
	return s.deps.Trades.CountSince(ctx, s.deps.Day.TradingDayStart(time.Now()))
}

// sleep waits for d, ctx cancellation or an interval change. Returns false
// when ctx is done.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.wake:
		return true
	}
}
