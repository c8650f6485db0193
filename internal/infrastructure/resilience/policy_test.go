package resilience

import (
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: time.Millisecond}.normalize()
	if got.RetryMaxAttempts != 3 {
		t.Fatalf("expected default attempts, got %d", got.RetryMaxAttempts)
	}
	if got.RetryMaxBackoff != time.Second {
		t.Fatalf("max backoff must not be below initial, got %s", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != 0.5 || got.BreakerHalfOpenMaxCalls != 2 {
		t.Fatalf("unexpected breaker defaults %+v", got)
	}
}

func TestForRendererIsMoreConservative(t *testing.T) {
	got := DefaultConfig().ForRenderer()
	if got.RetryMaxAttempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", got.RetryMaxAttempts)
	}
	if got.RetryInitialBackoff != 500*time.Millisecond || got.RetryMaxBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected backoff %s..%s", got.RetryInitialBackoff, got.RetryMaxBackoff)
	}
	if got.BreakerOpenTimeout != time.Minute {
		t.Fatalf("unexpected open timeout %s", got.BreakerOpenTimeout)
	}

	custom := Config{RetryMaxAttempts: 1, RetryInitialBackoff: 2 * time.Second, BreakerOpenTimeout: 5 * time.Minute}.ForRenderer()
	if custom.RetryMaxAttempts != 1 || custom.RetryInitialBackoff != 2*time.Second || custom.BreakerOpenTimeout != 5*time.Minute {
		t.Fatalf("stricter settings must be kept, got %+v", custom)
	}
}
