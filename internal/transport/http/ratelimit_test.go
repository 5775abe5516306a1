package http

import "testing"

func TestRateLimiterCapsFrames(t *testing.T) {
	limiter := newRateLimiter(3)
	defer limiter.stop()

	for i := 0; i < 3; i++ {
		if !limiter.allow() {
			t.Fatalf("frame %d should be allowed", i)
		}
	}
	if limiter.allow() {
		t.Fatal("frame over the limit should be rejected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := newRateLimiter(0)
	defer limiter.stop()

	for i := 0; i < 1000; i++ {
		if !limiter.allow() {
			t.Fatal("disabled limiter must always allow")
		}
	}
}
