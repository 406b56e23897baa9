package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Policy configures retry behavior with exponential backoff.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"` // Total attempts including the first (default: 3)
	BaseDelay   time.Duration `json:"base_delay"`   // Delay before the first retry (default: 1s)
	MaxDelay    time.Duration `json:"max_delay"`    // Upper bound on any single delay (default: 30s)
	Multiplier  float64       `json:"multiplier"`   // Exponential backoff multiplier (default: 2.0)
	Jitter      bool          `json:"jitter"`       // Add up to ±10% random jitter
}

// Result describes how a retried operation went.
type Result struct {
	Attempts      int           `json:"attempts"`       // Attempts actually made
	TotalDuration time.Duration `json:"total_duration"` // Wall time across all attempts
	LastError     error         `json:"-"`              // Last error encountered
	Success       bool          `json:"success"`        // Whether the operation eventually succeeded
	FailReasons   []string      `json:"fail_reasons"`   // One reason per failed attempt
}

// DefaultPolicy returns the retry policy used around generative-service calls:
// three attempts, one second base delay, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Do executes op with exponential backoff until it succeeds, the policy is
// exhausted, or the context is cancelled. Only transient errors are retried;
// a permanent error fails after its first attempt.
func Do(ctx context.Context, policy Policy, logger zerolog.Logger, op func() error) Result {
	start := time.Now()

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	result := Result{}

	for attempt := 0; attempt < attempts; attempt++ {
		result.Attempts = attempt + 1

		err := op()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(start)
			if attempt > 0 {
				logger.Debug().
					Int("attempt", attempt+1).
					Dur("total", result.TotalDuration).
					Msg("operation succeeded after retries")
			}
			return result
		}

		result.LastError = err
		result.FailReasons = append(result.FailReasons, err.Error())

		if !IsRetryable(err) {
			logger.Debug().
				Int("attempt", attempt+1).
				Err(err).
				Msg("permanent error, not retrying")
			break
		}

		if attempt >= attempts-1 {
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := backoffDelay(policy, attempt)
		logger.Debug().
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Err(err).
			Msg("operation failed, backing off")

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

// backoffDelay computes the delay before the next attempt: base * multiplier^attempt,
// capped at MaxDelay, with optional ±10% jitter.
func backoffDelay(policy Policy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt))

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(policy.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// IsRetryable reports whether an error looks like a transient provider failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	retryable := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"no such host",
		"network unreachable",
		"broken pipe",
		"context deadline exceeded",
	}

	for _, needle := range retryable {
		if strings.Contains(msg, needle) {
			return true
		}
	}

	return false
}
