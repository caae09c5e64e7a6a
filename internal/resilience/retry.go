// Package resilience retries outbound deliveries that fail transiently, such
// as webhook posts and rollup fetches over flaky networks.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first. 1 disables
	// retries.
	Attempts int
	// BaseDelay is the backoff before the first retry; it doubles per attempt
	// up to MaxDelay, with ±25% jitter.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy suits short outbound HTTP calls.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Do runs fn, retrying transient failures per the policy. Permanent errors
// and context cancellation return immediately. op names the operation in
// retry logs.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !Transient(lastErr) || attempt == p.Attempts-1 {
			return lastErr
		}

		delay := p.backoff(attempt)
		zap.L().Debug("retrying after transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	// ±25% jitter so synchronized callers spread out.
	delay *= 0.75 + rand.Float64()*0.5
	return time.Duration(delay)
}

// StatusError marks an HTTP response status as retryable or not.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Transient reports whether err is worth retrying: an explicitly retryable
// HTTP status, a network timeout, or a dropped connection.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case 408, 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
