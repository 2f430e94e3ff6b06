package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Response headers carrying throttling information.
const (
	HeaderRetryAfterMs  = "x-ms-retry-after-ms"
	HeaderRequestCharge = "x-ms-request-charge"
)

// ParseRetryAfter reads x-ms-retry-after-ms. The second return value is false
// when the header is absent or invalid. The delay is capped at MaxRetryAfter.
func ParseRetryAfter(headers http.Header) (time.Duration, bool) {
	raw := headers.Get(HeaderRetryAfterMs)
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil || ms < 0 {
		return 0, false
	}
	d := time.Duration(ms * float64(time.Millisecond))
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d, true
}

// ParseRequestCharge reads x-ms-request-charge, returning 0 when absent or invalid.
func ParseRequestCharge(headers http.Header) float64 {
	raw := headers.Get(HeaderRequestCharge)
	if raw == "" {
		return 0
	}
	charge, err := strconv.ParseFloat(raw, 64)
	if err != nil || charge < 0 {
		return 0
	}
	return charge
}
