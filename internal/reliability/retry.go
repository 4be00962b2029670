// Package reliability provides retry policies, off-site backups and database maintenance.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// RetryPolicy is an exponential backoff policy for transient failures.
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Upper bound for any single delay
	Jitter     bool
}

// DefaultRetryPolicy is used for AI and market-data calls: 3 retries, 1s doubling to 8s.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   8 * time.Second,
	Jitter:     true,
}

// IsTransient reports whether err is worth retrying.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrTransient)
}

// Delay returns the backoff before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		// +/- 20%
		spread := int64(d) / 5
		if spread > 0 {
			d += time.Duration(rand.Int63n(2*spread) - spread)
		}
	}
	return d
}

// Do runs fn until it succeeds, returns a non-transient error, retries are
// exhausted, or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p RetryPolicy, log zerolog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			log.Warn().
				Err(lastErr).
				Str("operation", op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying after transient failure")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d retries: %w", op, p.MaxRetries, lastErr)
}
