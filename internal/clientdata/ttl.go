package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLQuote = 55 * time.Second // just under one trading-loop minute
	TTLBars  = 10 * time.Minute
	TTLNews  = 15 * time.Minute
)
