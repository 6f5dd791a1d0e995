// Package retry classifies failures into a closed error taxonomy and
// applies a fixed per-type retry strategy with exponential backoff.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrorType is the closed classification of a failure.
type ErrorType string

const (
	ErrorRateLimit  ErrorType = "rate_limit"
	ErrorTimeout    ErrorType = "timeout"
	ErrorNetwork    ErrorType = "network"
	ErrorAPI        ErrorType = "api_error"
	ErrorTokenLimit ErrorType = "token_limit"
	ErrorUnknown    ErrorType = "unknown"
)

// DefaultMaxDelay caps backoff growth.
const DefaultMaxDelay = 5 * time.Minute

// Strategy is the fixed retry behavior for one error type.
type Strategy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	ShouldRetry bool
}

// strategies is a lookup table, not per-instance state. token_limit is
// never retried: a larger input will not fit any better on the next try.
var strategies = map[ErrorType]Strategy{
	ErrorRateLimit:  {MaxAttempts: 5, BaseDelay: 5 * time.Second, ShouldRetry: true},
	ErrorTimeout:    {MaxAttempts: 3, BaseDelay: 2 * time.Second, ShouldRetry: true},
	ErrorNetwork:    {MaxAttempts: 3, BaseDelay: 2 * time.Second, ShouldRetry: true},
	ErrorTokenLimit: {MaxAttempts: 0, BaseDelay: 0, ShouldRetry: false},
	ErrorAPI:        {MaxAttempts: 2, BaseDelay: time.Second, ShouldRetry: true},
	ErrorUnknown:    {MaxAttempts: 2, BaseDelay: time.Second, ShouldRetry: true},
}

// StrategyFor returns the strategy for an error type. Unlisted types fall
// back to the unknown strategy.
func StrategyFor(t ErrorType) Strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return strategies[ErrorUnknown]
}

// classifierRules are checked in priority order; the first matching
// substring wins.
var classifierRules = []struct {
	errType ErrorType
	needles []string
}{
	{ErrorRateLimit, []string{"rate limit", "429"}},
	{ErrorTimeout, []string{"timeout", "timed out"}},
	{ErrorNetwork, []string{"network", "econnreset", "enotfound", "econnrefused"}},
	{ErrorAPI, []string{"api error", "bad request", "invalid"}},
}

// Classify maps a raw error message onto the closed taxonomy using
// case-insensitive substring matching.
func Classify(raw string) ErrorType {
	lowered := strings.ToLower(raw)
	for _, rule := range classifierRules {
		for _, needle := range rule.needles {
			if strings.Contains(lowered, needle) {
				return rule.errType
			}
		}
	}
	return ErrorUnknown
}

// Classified is implemented by errors that already know their type, such
// as HTTP client errors built from a status code. A pinned type beats
// substring matching.
type Classified interface {
	ErrorType() ErrorType
}

// ClassifyErr returns an error's pinned type when it carries one, falling
// back to Classify over its message. A nil error classifies as unknown;
// callers should not classify success.
func ClassifyErr(err error) ErrorType {
	if err == nil {
		return ErrorUnknown
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorType()
	}
	return Classify(err.Error())
}

// Config carries run-level overrides for attempt budgets.
type Config struct {
	MaxAttempts        int
	PerTypeMaxAttempts map[ErrorType]int
}

// DefaultConfig uses the strategy table's per-type attempt budgets.
func DefaultConfig() Config {
	perType := make(map[ErrorType]int, len(strategies))
	for t, s := range strategies {
		perType[t] = s.MaxAttempts
	}
	return Config{MaxAttempts: 2, PerTypeMaxAttempts: perType}
}

// CalculateBackoffDelay returns min(base * 2^attempt, max). Negative
// attempts are treated as attempt zero; a zero base always yields zero.
func CalculateBackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// ShouldRetry reports whether another attempt is allowed for the error
// type. attempt is the number of attempts already made.
func ShouldRetry(attempt int, t ErrorType, cfg Config) bool {
	if !StrategyFor(t).ShouldRetry {
		return false
	}

	max := cfg.MaxAttempts
	if perType, ok := cfg.PerTypeMaxAttempts[t]; ok {
		max = perType
	}
	return attempt < max
}

// Operation is a unit of work that can be retried.
type Operation func(ctx context.Context) error

// Do runs an operation, retrying per the strategy table until the error
// type's attempt budget is exhausted. The last error is returned.
func Do(ctx context.Context, cfg Config, op Operation) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyErr(err)
		if !ShouldRetry(attempt+1, errType, cfg) {
			return lastErr
		}

		delay := CalculateBackoffDelay(attempt, StrategyFor(errType).BaseDelay, DefaultMaxDelay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
