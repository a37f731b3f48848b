package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinRate(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("caller-a") {
			t.Fatalf("request %d rejected within the rate", i+1)
		}
	}
	if limiter.Allow("caller-a") {
		t.Error("request over the rate was allowed")
	}

	// Other callers are tracked independently
	if !limiter.Allow("caller-b") {
		t.Error("unrelated caller throttled")
	}
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	limiter := NewRateLimiter(1, 20*time.Millisecond)

	if !limiter.Allow("caller") {
		t.Fatal("first request rejected")
	}
	if limiter.Allow("caller") {
		t.Fatal("second request inside the window allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !limiter.Allow("caller") {
		t.Error("request after the window expired was rejected")
	}
}
