// Package ratelimit tracks request-unit throttling reported by the document
// service. A 429 response carries x-ms-retry-after-ms; the resulting throttle
// window is shared across client instances via Redis so that every worker
// backs off together instead of hammering the collection.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyRetryUntil = "docdb:throttle:retry_until"
	RedisKeyLastCharge = "docdb:throttle:last_charge"
	RedisKeyLastUpdate = "docdb:throttle:last_update"
)

const (
	// DefaultRetryAfter is assumed when a 429 arrives without x-ms-retry-after-ms.
	DefaultRetryAfter = 1 * time.Second

	// MaxRetryAfter caps a single throttle window.
	MaxRetryAfter = 30 * time.Second
)

// ThrottleState is the current throttle window and the last observed request charge.
type ThrottleState struct {
	// RetryUntil is the instant before which no request should be sent.
	RetryUntil time.Time `json:"retry_until"`

	// LastCharge is the request-unit charge of the most recent response.
	LastCharge float64 `json:"last_charge"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsThrottled reports whether the throttle window is still open.
func (s *ThrottleState) IsThrottled() bool {
	return s.TimeUntilRetry() > 0
}

// TimeUntilRetry returns how long to wait before the next request.
// Returns 0 once the window has passed.
func (s *ThrottleState) TimeUntilRetry() time.Duration {
	d := time.Until(s.RetryUntil)
	if d < 0 {
		return 0
	}
	return d
}
