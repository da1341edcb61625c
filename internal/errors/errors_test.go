package errors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Network, "network"},
		{Timeout, "timeout"},
		{RateLimit, "rate_limit"},
		{NotFound, "not_found"},
		{ServerError, "server_error"},
		{ClientError, "client_error"},
		{Parse, "parse"},
		{Browser, "browser"},
		{Cancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorType_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{Network, true},
		{Timeout, true},
		{RateLimit, true},
		{ServerError, true},
		{NotFound, false},
		{ClientError, false},
		{Parse, false},
		{Cancelled, false},
		{Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			if got := tt.errType.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// =============================================================================
// ScanError Tests
// =============================================================================

func TestScanError_Error(t *testing.T) {
	err := NewScanError(Network, "https://example.com/app.js", "download", "connection failed", nil)

	errStr := err.Error()
	if errStr == "" {
		t.Error("Error() should not return empty string")
	}
	for _, want := range []string{"network", "download", "https://example.com/app.js", "connection failed"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("Error() = %s, should contain %q", errStr, want)
		}
	}
}

func TestScanError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewScanError(Network, "https://example.com", "download", "connection failed", cause)

	if !strings.Contains(err.Error(), "underlying error") {
		t.Errorf("Error() = %s, should contain cause", err.Error())
	}
}

func TestScanError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewScanError(Network, "https://example.com", "download", "failed", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestScanError_Is(t *testing.T) {
	err1 := NewScanError(Network, "https://example.com", "download", "failed", nil)
	err2 := NewScanError(Network, "https://other.com", "render", "timeout", nil)
	err3 := NewScanError(Timeout, "https://example.com", "download", "timeout", nil)

	if !errors.Is(err1, err2) {
		t.Error("Errors with same type should match")
	}
	if errors.Is(err1, err3) {
		t.Error("Errors with different types should not match")
	}
}

// =============================================================================
// Error Constructor Tests
// =============================================================================

func TestNewNetworkError(t *testing.T) {
	err := NewNetworkError("https://example.com", "connect", nil)

	if err.Type != Network {
		t.Errorf("Type = %v, want Network", err.Type)
	}
	if !err.Retryable {
		t.Error("Network errors should be retryable")
	}
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("https://example.com", 60)

	if err.Type != RateLimit {
		t.Errorf("Type = %v, want RateLimit", err.Type)
	}
	if err.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", err.StatusCode)
	}
	if !err.Retryable {
		t.Error("Rate limit errors should be retryable")
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("https://example.com/missing.js")

	if err.Type != NotFound {
		t.Errorf("Type = %v, want NotFound", err.Type)
	}
	if err.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", err.StatusCode)
	}
	if err.Retryable {
		t.Error("NotFound errors should not be retryable")
	}
}

func TestNewServerError(t *testing.T) {
	err := NewServerError("https://example.com", 503, "service unavailable")

	if err.Type != ServerError {
		t.Errorf("Type = %v, want ServerError", err.Type)
	}
	if !err.Retryable {
		t.Error("Server errors should be retryable")
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError("https://example.com", "html_parse", nil)

	if err.Type != Parse {
		t.Errorf("Type = %v, want Parse", err.Type)
	}
	if err.Retryable {
		t.Error("Parse errors should not be retryable")
	}
}

func TestNewBrowserError(t *testing.T) {
	err := NewBrowserError("https://example.com", "navigate", nil)

	if err.Type != Browser {
		t.Errorf("Type = %v, want Browser", err.Type)
	}
}

func TestNewCancelledError(t *testing.T) {
	err := NewCancelledError("https://example.com", "download")

	if err.Type != Cancelled {
		t.Errorf("Type = %v, want Cancelled", err.Type)
	}
	if err.Retryable {
		t.Error("Cancelled errors should not be retryable")
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

func TestCategorize_ScanError(t *testing.T) {
	original := NewNetworkError("https://example.com", "download", nil)
	categorized := Categorize(original, "https://example.com")

	if categorized != original {
		t.Error("Should return same ScanError")
	}
}

func TestCategorize_Nil(t *testing.T) {
	if categorized := Categorize(nil, "https://example.com"); categorized != nil {
		t.Error("Should return nil for nil error")
	}
}

func TestCategorize_ContextCanceled(t *testing.T) {
	err := errors.New("context canceled")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Cancelled {
		t.Errorf("Type = %v, want Cancelled", categorized.Type)
	}
}

func TestCategorize_Unknown(t *testing.T) {
	err := errors.New("some random error")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Unknown {
		t.Errorf("Type = %v, want Unknown", categorized.Type)
	}
}

// =============================================================================
// CategorizeHTTPStatus Tests
// =============================================================================

func TestCategorizeHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantType ErrorType
		wantNil  bool
	}{
		{200, Unknown, true},
		{201, Unknown, true},
		{301, Unknown, true},
		{404, NotFound, false},
		{429, RateLimit, false},
		{400, ClientError, false},
		{403, ClientError, false},
		{500, ServerError, false},
		{502, ServerError, false},
		{503, ServerError, false},
	}

	for _, tt := range tests {
		err := CategorizeHTTPStatus(tt.status, "https://example.com")
		if tt.wantNil {
			if err != nil {
				t.Errorf("CategorizeHTTPStatus(%d) should return nil", tt.status)
			}
			continue
		}
		if err == nil {
			t.Errorf("CategorizeHTTPStatus(%d) should not return nil", tt.status)
			continue
		}
		if err.Type != tt.wantType {
			t.Errorf("CategorizeHTTPStatus(%d).Type = %v, want %v", tt.status, err.Type, tt.wantType)
		}
	}
}

// =============================================================================
// Helper Function Tests
// =============================================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"network error", NewNetworkError("url", "op", nil), true},
		{"timeout error", NewTimeoutError("url", "op", nil), true},
		{"not found", NewNotFoundError("url"), false},
		{"parse error", NewParseError("url", "op", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	rateLimitErr := NewRateLimitError("url", 60)
	networkErr := NewNetworkError("url", "op", nil)

	if !IsRateLimitError(rateLimitErr) {
		t.Error("Should identify rate limit error")
	}
	if IsRateLimitError(networkErr) {
		t.Error("Should not identify network error as rate limit error")
	}
}

func TestGetStatusCode(t *testing.T) {
	err := NewServerError("url", 503, "unavailable")

	if code := GetStatusCode(err); code != 503 {
		t.Errorf("GetStatusCode() = %d, want 503", code)
	}
	if code := GetStatusCode(nil); code != 0 {
		t.Errorf("GetStatusCode(nil) = %d, want 0", code)
	}
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestRetrier_Do_Success(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("Should succeed")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if calls != 1 {
		t.Errorf("Function called %d times, want 1", calls)
	}
}

func TestRetrier_Do_RetryOnError(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     2,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Network},
	})

	calls := 0
	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewNetworkError("url", "op", nil)
		}
		return nil
	})

	if !result.Success {
		t.Error("Should succeed after retries")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_MaxRetriesExceeded(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     2,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Network},
	})

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		return NewNetworkError("url", "op", nil)
	})

	if result.Success {
		t.Error("Should fail after max retries")
	}
	if result.Attempts != 3 { // 1 initial + 2 retries
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestRetrier_Do_NoRetryForNonRetryable(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		return NewNotFoundError("url")
	})

	if result.Success {
		t.Error("Should fail")
	}
	if calls != 1 {
		t.Errorf("Function called %d times, want 1 (no retry)", calls)
	}
}

func TestRetrier_Do_ContextCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Network},
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, "test", "url", func(ctx context.Context) error {
		return NewNetworkError("url", "op", nil)
	})

	if result.Success {
		t.Error("Should fail on cancellation")
	}
	if result.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt    int
		initial    time.Duration
		max        time.Duration
		multiplier float64
		want       time.Duration
	}{
		{0, time.Second, 10 * time.Second, 2.0, time.Second},
		{1, time.Second, 10 * time.Second, 2.0, time.Second},
		{2, time.Second, 10 * time.Second, 2.0, 2 * time.Second},
		{3, time.Second, 10 * time.Second, 2.0, 4 * time.Second},
		{4, time.Second, 10 * time.Second, 2.0, 8 * time.Second},
		{5, time.Second, 10 * time.Second, 2.0, 10 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		got := BackoffDuration(tt.attempt, tt.initial, tt.max, tt.multiplier)
		if got != tt.want {
			t.Errorf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// =============================================================================
// Circuit Breaker Tests
// =============================================================================

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	if cb.State() != Closed {
		t.Errorf("Initial state = %v, want Closed", cb.State())
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          time.Second,
	})

	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.RecordFailure()
	}

	if cb.State() != Open {
		t.Errorf("State after 3 failures = %v, want Open", cb.State())
	}
}

func TestCircuitBreaker_BlockWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Hour,
	})

	cb.Allow()
	cb.RecordFailure()

	if cb.Allow() {
		t.Error("Should not allow requests when open")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	cb.Allow()
	cb.RecordFailure()

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Error("Should allow request after timeout")
	}
	if cb.State() != HalfOpen {
		t.Errorf("State after timeout = %v, want HalfOpen", cb.State())
	}
}

func TestCircuitBreaker_CloseAfterSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          1 * time.Millisecond,
	})

	cb.Allow()
	cb.RecordFailure()

	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		cb.Allow()
		cb.RecordSuccess()
	}

	if cb.State() != Closed {
		t.Errorf("State after successes = %v, want Closed", cb.State())
	}
}

func TestCircuitBreaker_ReopenOnFailureInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          1 * time.Millisecond,
	})

	cb.Allow()
	cb.RecordFailure()

	time.Sleep(5 * time.Millisecond)

	cb.Allow()
	cb.RecordFailure()

	if cb.State() != Open {
		t.Errorf("State after failure in half-open = %v, want Open", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Hour,
	})

	cb.Allow()
	cb.RecordFailure()

	cb.Reset()

	if cb.State() != Closed {
		t.Errorf("State after reset = %v, want Closed", cb.State())
	}
}

func TestHostCircuitBreakers(t *testing.T) {
	hcb := NewHostCircuitBreakers(DefaultCircuitBreakerConfig())

	cb1 := hcb.Get("cdn.example.com")
	cb2 := hcb.Get("static.example.com")
	cb1Again := hcb.Get("cdn.example.com")

	if cb1 == cb2 {
		t.Error("Different hosts should have different breakers")
	}
	if cb1 != cb1Again {
		t.Error("Same host should return same breaker")
	}
}
