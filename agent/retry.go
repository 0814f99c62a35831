package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds how long an agent call may be retried
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration // overall budget including waits
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     time.Minute,
		Timeout:        5 * time.Minute,
	}
}

type retryAgent struct {
	inner Agent
	cfg   RetryConfig
}

// WithRetry wraps an agent so that quota and availability errors are retried
// with exponential backoff. Delays suggested by the provider are honoured up to MaxBackoff.
func WithRetry(a Agent, cfg RetryConfig) Agent {
	return &retryAgent{inner: a, cfg: cfg}
}

func (r *retryAgent) Name() string {
	return r.inner.Name()
}

func (r *retryAgent) Process(ctx context.Context, content string) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialBackoff
	bo.MaxInterval = r.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", r.interrupted(ctx, lastErr)
		}

		out, err := r.inner.Process(ctx, content)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", r.interrupted(ctx, lastErr)
		}

		if !isRetryable(err) {
			return "", fmt.Errorf("agent %s failed with non-retryable error: %w", r.inner.Name(), err)
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		wait := bo.NextBackOff()
		if hint := extractRetryDelay(err); hint > wait {
			wait = hint
		}
		if r.cfg.MaxBackoff > 0 && wait > r.cfg.MaxBackoff {
			wait = r.cfg.MaxBackoff
		}
		slog.Warn("agent call failed, retrying", "agent", r.inner.Name(), "attempt", attempt+1, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", r.interrupted(ctx, lastErr)
		case <-timer.C:
		}
	}

	return "", fmt.Errorf("agent %s exceeded max retries (%d): %w", r.inner.Name(), r.cfg.MaxRetries, lastErr)
}

func (r *retryAgent) interrupted(ctx context.Context, lastErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("agent %s timed out after %v: %w", r.inner.Name(), r.cfg.Timeout, errors.Join(ctx.Err(), lastErr))
	}
	return fmt.Errorf("agent %s cancelled: %w", r.inner.Name(), errors.Join(ctx.Err(), lastErr))
}

var retryableMarkers = []string{
	"resource_exhausted",
	"quota",
	"429",
	"503",
	"rate limit",
	"unavailable",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`retry in ([0-9]+(?:\.[0-9]+)?)s`),
	regexp.MustCompile(`retryDelay:\s*"?([0-9]+(?:\.[0-9]+)?)s`),
}

// extractRetryDelay reads the delay Gemini suggests in quota errors
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	msg := err.Error()
	for _, re := range retryDelayPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		d, perr := time.ParseDuration(m[1] + "s")
		if perr == nil {
			return d
		}
	}
	return 0
}
