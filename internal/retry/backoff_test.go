package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got %d", policy.MaxAttempts)
	}

	if policy.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay=1s, got %v", policy.BaseDelay)
	}

	if policy.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier=2.0, got %f", policy.Multiplier)
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	result := Do(context.Background(), testPolicy(), zerolog.Nop(), func() error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("Expected success")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	result := Do(context.Background(), testPolicy(), zerolog.Nop(), func() error {
		calls++
		if calls < 3 {
			return errors.New("rate limit exceeded")
		}
		return nil
	})

	if !result.Success {
		t.Error("Expected success after retries")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if len(result.FailReasons) != 2 {
		t.Errorf("Expected exactly 2 recorded failures, got %d", len(result.FailReasons))
	}
}

func TestDo_Exhausted(t *testing.T) {
	wantErr := errors.New("503 service unavailable")
	result := Do(context.Background(), testPolicy(), zerolog.Nop(), func() error {
		return wantErr
	})

	if result.Success {
		t.Error("Expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("Expected last error %v, got %v", wantErr, result.LastError)
	}
}

func TestDo_PermanentErrorFailsFast(t *testing.T) {
	wantErr := errors.New("invalid api key")

	calls := 0
	result := Do(context.Background(), testPolicy(), zerolog.Nop(), func() error {
		calls++
		return wantErr
	})

	if result.Success {
		t.Error("Expected failure")
	}
	if calls != 1 {
		t.Errorf("Expected a permanent error to stop after 1 call, got %d", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("Expected last error %v, got %v", wantErr, result.LastError)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := Do(ctx, testPolicy(), zerolog.Nop(), func() error {
		calls++
		cancel()
		return errors.New("request timeout")
	})

	if result.Success {
		t.Error("Expected failure after cancellation")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation stopped retries, got %d", calls)
	}
}

func TestBackoffDelay_Doubles(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0}

	first := backoffDelay(policy, 0)
	second := backoffDelay(policy, 1)

	if first != time.Second {
		t.Errorf("Expected 1s first delay, got %v", first)
	}
	if second != 2*time.Second {
		t.Errorf("Expected 2s second delay, got %v", second)
	}
}

func TestBackoffDelay_Capped(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2.0}

	if got := backoffDelay(policy, 5); got != 3*time.Second {
		t.Errorf("Expected capped delay 3s, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("Rate Limit exceeded"), true},
		{errors.New("invalid api key"), false},
		{errors.New("context deadline exceeded"), true},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
