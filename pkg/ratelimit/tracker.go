package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	docdbLastRequestCharge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docdb_last_request_charge",
		Help: "Request units charged for the most recent response",
	})

	docdbThrottledResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docdb_throttled_responses_total",
		Help: "Total number of 429 responses recorded",
	})

	docdbThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docdb_throttle_wait_seconds",
		Help:    "Time spent waiting for a throttle window to pass",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Tracker records throttle windows and gates requests until they pass.
// With a Redis client the window is shared by every tracker using the same
// Redis; without one it is local to the process.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local ThrottleState
}

// NewTracker creates a new throttle tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState returns the current throttle state.
// Returns an open (unthrottled) state if nothing has been recorded.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	vals, err := t.redis.MGet(ctx, RedisKeyRetryUntil, RedisKeyLastCharge, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}

	state := &ThrottleState{}
	if ms, ok, err := parseRedisNumber(vals[0]); err != nil {
		return nil, fmt.Errorf("parse retry until: %w", err)
	} else if ok {
		state.RetryUntil = time.UnixMilli(int64(ms))
	}
	if charge, ok, err := parseRedisNumber(vals[1]); err != nil {
		return nil, fmt.Errorf("parse last charge: %w", err)
	} else if ok {
		state.LastCharge = charge
	}
	if ms, ok, err := parseRedisNumber(vals[2]); err != nil {
		return nil, fmt.Errorf("parse last update: %w", err)
	} else if ok {
		state.LastUpdate = time.UnixMilli(int64(ms))
	}

	return state, nil
}

// UpdateFromHeaders records the request charge of a response and, for a 429,
// opens a throttle window of x-ms-retry-after-ms (DefaultRetryAfter if absent).
func (t *Tracker) UpdateFromHeaders(ctx context.Context, statusCode int, headers http.Header) error {
	charge := ParseRequestCharge(headers)
	docdbLastRequestCharge.Set(charge)

	now := time.Now()
	var retryAfter time.Duration
	if statusCode == http.StatusTooManyRequests {
		docdbThrottledResponsesTotal.Inc()
		d, ok := ParseRetryAfter(headers)
		if !ok {
			d = DefaultRetryAfter
		}
		retryAfter = d
	}

	if t.redis == nil {
		t.mu.Lock()
		t.local.LastCharge = charge
		t.local.LastUpdate = now
		if retryAfter > 0 {
			if until := now.Add(retryAfter); until.After(t.local.RetryUntil) {
				t.local.RetryUntil = until
			}
		}
		t.mu.Unlock()
	} else {
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyLastCharge, strconv.FormatFloat(charge, 'f', -1, 64), 0)
		pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
		if retryAfter > 0 {
			// The key expires with the window it describes.
			pipe.Set(ctx, RedisKeyRetryUntil, now.Add(retryAfter).UnixMilli(), retryAfter)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store throttle state in redis: %w", err)
		}
	}

	if retryAfter > 0 {
		t.logger.Warn().
			Dur("retry_after", retryAfter).
			Float64("request_charge", charge).
			Msg("Request rate too large - throttling")
	}

	return nil
}

// Wait blocks until the current throttle window has passed or ctx is done.
// A failure to read the shared state is logged and does not block.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Throttle state unavailable - not waiting")
		return ctx.Err()
	}

	wait := state.TimeUntilRetry()
	if wait <= 0 {
		return ctx.Err()
	}

	t.logger.Debug().Dur("wait", wait).Msg("Waiting for throttle window")
	start := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		docdbThrottleWaitSeconds.Observe(time.Since(start).Seconds())
		return ctx.Err()
	case <-timer.C:
		docdbThrottleWaitSeconds.Observe(wait.Seconds())
		return nil
	}
}

func parseRedisNumber(v interface{}) (float64, bool, error) {
	if v == nil {
		return 0, false, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, false, errors.New("unexpected redis value type")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}
