package review

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("flaky upstream: %w", ErrTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("still down: %w", ErrTransient)
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonTransientFailsImmediately(t *testing.T) {
	calls := 0
	err := fastRetry(5).Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("bad credentials: %w", ErrAuth)
	})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-transient errors)", calls)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}
	err := policy.Do(ctx, func() error {
		return fmt.Errorf("down: %w", ErrTransient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRetryDelayBackoffCapped(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	if d := policy.delay(0); d != time.Second {
		t.Errorf("delay(0) = %v, want 1s", d)
	}
	if d := policy.delay(1); d != 2*time.Second {
		t.Errorf("delay(1) = %v, want 2s", d)
	}
	if d := policy.delay(5); d != 4*time.Second {
		t.Errorf("delay(5) = %v, want cap of 4s", d)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", ErrNotFound), "not_found"},
		{fmt.Errorf("wrap: %w", ErrRateLimited), "rate_limited"},
		{fmt.Errorf("wrap: %w", ErrAuth), "auth_error"},
		{fmt.Errorf("wrap: %w", ErrTransient), "transient_error"},
		{errors.New("anything else"), "internal_error"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
