package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnRateLimits(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(errors.New("plain failure"))
	cb.OnError(RateLimitError{Provider: "clova"})
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after one rate limit")
	}
	cb.OnError(RateLimitError{Provider: "clova"})
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}

	now = now.Add(2 * time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected breaker to close after cooldown")
	}
}

func TestCircuitBreakerSuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	cb.OnError(RateLimitError{Provider: "clova"})
	cb.OnSuccess()
	cb.OnError(RateLimitError{Provider: "clova"})
	if cb.Open() {
		t.Fatalf("expected success to reset failure count")
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := RateLimitError{Provider: "clova", Message: "slow down"}
	if err.Error() != "clova: slow down" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsRateLimit(err) {
		t.Fatalf("expected IsRateLimit")
	}
}
