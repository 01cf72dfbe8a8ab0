package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Policy configures retry behavior with exponential backoff
type Policy struct {
	MaxRetries int           `koanf:"maxretries"` // Maximum number of retry attempts (default: 5)
	BaseDelay  time.Duration `koanf:"basedelay"`  // Delay before the first retry (default: 500ms)
	MaxDelay   time.Duration `koanf:"maxdelay"`   // Upper bound for a single delay (default: 10s)
	Multiplier float64       `koanf:"multiplier"` // Exponential backoff multiplier (default: 2.0)
	Jitter     bool          `koanf:"jitter"`     // Spread retries of several instances starting together
}

// Result describes how a retried operation went
type Result struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
	Success       bool
}

// ConnectPolicy is used while waiting for the database at startup
func ConnectPolicy() Policy {
	return Policy{
		MaxRetries: 5,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do runs operation until it succeeds, the policy is exhausted, or ctx ends.
// Errors rejected by IsRetryable stop the loop immediately. logger may be nil.
func Do(ctx context.Context, policy Policy, operation func(ctx context.Context) error, logger *zerolog.Logger) Result {
	start := time.Now()
	result := Result{}

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation(ctx)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(start)
			if logger != nil && attempt > 0 {
				logger.Info().Int("attempts", result.Attempts).Dur("elapsed", result.TotalDuration).Msg("Operation succeeded after retries")
			}
			return result
		}
		result.LastError = err

		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			break
		}
		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(policy, attempt)
		if logger != nil {
			logger.Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", policy.MaxRetries+1).
				Dur("backoff", delay).
				Msg("Operation failed, retrying")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		case <-timer.C:
		}
	}

	result.TotalDuration = time.Since(start)
	if logger != nil {
		logger.Error().Err(result.LastError).Int("attempts", result.Attempts).Msg("Operation failed")
	}
	return result
}

// calculateDelay returns baseDelay * multiplier^attempt, capped and optionally jittered by ±10%
func calculateDelay(policy Policy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
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

// IsRetryable reports whether err looks like a transient infrastructure failure
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"the database system is starting up",
		"too many connections",
		"no such host",
		"network unreachable",
		"broken pipe",
		"context deadline exceeded",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}
