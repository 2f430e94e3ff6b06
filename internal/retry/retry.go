// Package retry executes operations with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Common errors returned by Do.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_retries_total",
		Help: "Total number of retry attempts by client and error class",
	}, []string{"client", "error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_retry_backoff_seconds",
		Help:    "Backoff duration for retries by client and error class",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"client", "error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by client and error class",
	}, []string{"client", "error_class"})
)

// Policy holds the configuration for retry logic.
type Policy struct {
	// Name labels metrics and log lines (e.g. "docdb").
	Name string

	// MaxAttempts is the maximum number of attempts (including the initial one).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:              name,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Verdict classifies a failed attempt.
type Verdict struct {
	// Class labels the failure (e.g. "server", "throttled").
	Class string

	// Retry reports whether another attempt may succeed.
	Retry bool

	// After, when positive, replaces the computed backoff. It carries
	// server-supplied retry-after hints and is not jittered.
	After time.Duration
}

// Classifier inspects the error of a failed attempt.
type Classifier func(err error) Verdict

// Do runs fn until it succeeds, classify rejects the error, attempts run out
// or ctx is cancelled.
func Do(ctx context.Context, p Policy, classify Classifier, fn func() error) error {
	p = p.normalized()

	var (
		lastErr error
		verdict Verdict
	)
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("client", p.Name).
					Str("error_class", verdict.Class).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		verdict = classify(err)
		if !verdict.Retry {
			return lastErr
		}

		if attempt >= p.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(p.Name, verdict.Class).Inc()

		wait := verdict.After
		if wait <= 0 {
			// ±20% jitter
			wait = time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		}
		retryBackoffSeconds.WithLabelValues(p.Name, verdict.Class).Observe(wait.Seconds())

		log.Debug().
			Str("client", p.Name).
			Str("error_class", verdict.Class).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("client", p.Name).
				Str("error_class", verdict.Class).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * p.BackoffMultiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(p.Name, verdict.Class).Inc()
	log.Warn().
		Str("client", p.Name).
		Str("error_class", verdict.Class).
		Int("max_attempts", p.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.MaxAttempts, lastErr)
}

func (p Policy) normalized() Policy {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	return p
}
