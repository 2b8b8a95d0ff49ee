package worker

import (
	"testing"
	"time"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // clamped by MaxDelay
		{0, time.Second},      // attempt below 1 is treated as 1
	}
	for _, c := range cases {
		if got := policy.NextDelay(c.attempt); got != c.want {
			t.Fatalf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy
	if got := policy.NextDelay(3); got <= 0 {
		t.Fatalf("expected positive delay, got %v", got)
	}
}
