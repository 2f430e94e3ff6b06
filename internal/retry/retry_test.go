package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastPolicy() Policy {
	return Policy{
		Name:              "test",
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func alwaysRetry(error) Verdict { return Verdict{Class: "server", Retry: true} }

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("error = %v, should wrap the last attempt error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NonRetriable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(error) Verdict {
		return Verdict{Class: "client"}
	}, func() error {
		calls++
		return errTransient
	})
	if err != errTransient {
		t.Fatalf("error = %v, want the original error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetryAfterHint(t *testing.T) {
	p := fastPolicy()
	p.InitialBackoff = time.Hour
	p.MaxBackoff = time.Hour

	calls := 0
	start := time.Now()
	err := Do(context.Background(), p, func(error) Verdict {
		return Verdict{Class: "throttled", Retry: true, After: 2 * time.Millisecond}
	}, func() error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retry-after hint ignored, waited %v", elapsed)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := fastPolicy()
	p.InitialBackoff = time.Hour
	p.MaxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Do(ctx, p, alwaysRetry, func() error { return errTransient })
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("error = %v, want ErrContextCancelled", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, should wrap ctx.Err()", err)
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{}.normalized()

	if p.Name != "default" {
		t.Errorf("Name = %q, want default", p.Name)
	}
	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.MaxBackoff < p.InitialBackoff {
		t.Errorf("MaxBackoff %v < InitialBackoff %v", p.MaxBackoff, p.InitialBackoff)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy("docdb")
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", p.BackoffMultiplier)
	}
}
