// Package work runs heavy background units of work off the caller's goroutine.
//
// Work types are registered once with a Registry. Callers submit work items by
// type ID and receive a channel that yields the item's Result. The Processor
// executes one item at a time, in priority order, and refuses a second
// submission of an item that is already queued or running.
//
// # Market Timing
//
// A work type with DuringMarketOpen is skipped (completed with ErrMarketClosed)
// when the MarketChecker reports the market closed at the time the item is
// picked up. AnyTime work always runs.
//
// # Retries
//
// A failed item is re-queued until its type's MaxRetries is exhausted. Trading
// cycles use MaxRetries 0: a failed cycle is reported, never replayed.
package work
