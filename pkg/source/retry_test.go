package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RateLimitBackoff:  10 * time.Millisecond,
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		attempts++
		if attempts < 3 {
			return &Error{ErrorClass: ErrorClassServer, StatusCode: 503}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
		attempts++
		return &Error{ErrorClass: ErrorClassNetwork, Message: "connection reset"}
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}
	var srcErr *Error
	if !errors.As(err, &srcErr) || srcErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("expected the last *Error to stay in the chain, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"parse error", &Error{ErrorClass: ErrorClassParse}},
		{"request error", &Error{ErrorClass: ErrorClassRequest}},
		{"plain error", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func() error {
				attempts++
				return tt.err
			})

			if err != tt.err {
				t.Errorf("expected original error, got %v", err)
			}
			if attempts != 1 {
				t.Errorf("expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := fastRetryConfig()
	config.InitialBackoff = time.Second
	config.MaxBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	err := retryWithBackoff(ctx, config, zerolog.Nop(), func() error {
		attempts++
		return &Error{ErrorClass: ErrorClassServer, StatusCode: 500}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("expected ErrContextCancelled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancellation should interrupt backoff, took %v", elapsed)
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        15 * time.Millisecond,
		BackoffMultiplier: 10.0,
	}

	start := time.Now()
	_ = retryWithBackoff(context.Background(), config, zerolog.Nop(), func() error {
		return &Error{ErrorClass: ErrorClassServer}
	})
	elapsed := time.Since(start)

	// Three waits: ~10ms, then capped at ~15ms twice, each +20% jitter at most.
	if elapsed > 250*time.Millisecond {
		t.Errorf("backoff should be capped at MaxBackoff, took %v", elapsed)
	}
}

func TestRetryConfig_WithDefaults(t *testing.T) {
	got := RetryConfig{}.withDefaults()
	if got != DefaultRetryConfig() {
		t.Errorf("withDefaults() = %+v, want %+v", got, DefaultRetryConfig())
	}

	custom := fastRetryConfig().withDefaults()
	if custom != fastRetryConfig() {
		t.Errorf("withDefaults() should keep explicit values, got %+v", custom)
	}
}

func TestRetryWithBackoff_RateLimitBackoff(t *testing.T) {
	config := fastRetryConfig()
	config.MaxAttempts = 2
	config.RateLimitBackoff = 100 * time.Millisecond

	tests := []struct {
		name     string
		class    ErrorClass
		minDelay time.Duration
	}{
		{name: "rate limit waits at least RateLimitBackoff", class: ErrorClassRateLimit, minDelay: 80 * time.Millisecond},
		{name: "server error keeps initial backoff", class: ErrorClassServer, minDelay: 4 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			start := time.Now()
			err := retryWithBackoff(context.Background(), config, zerolog.Nop(), func() error {
				attempts++
				return &Error{ErrorClass: tt.class}
			})
			elapsed := time.Since(start)

			if !errors.Is(err, ErrRetryExhausted) {
				t.Fatalf("expected ErrRetryExhausted, got %v", err)
			}
			if attempts != 2 {
				t.Errorf("attempts = %d, want 2", attempts)
			}
			if elapsed < tt.minDelay {
				t.Errorf("elapsed %v, want at least %v", elapsed, tt.minDelay)
			}
		})
	}
}

func TestDefaultRetryConfig_RateLimitBackoff(t *testing.T) {
	def := DefaultRetryConfig()
	if def.RateLimitBackoff <= def.InitialBackoff {
		t.Errorf("RateLimitBackoff = %v, want longer than InitialBackoff %v", def.RateLimitBackoff, def.InitialBackoff)
	}
}
