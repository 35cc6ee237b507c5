package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMin, burst int) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newLimiter(perMin, burst, clk.now), clk
}

func TestLimiter_Allow(t *testing.T) {
	// One token per second, burst of 5.
	l, clk := newTestLimiter(60, 5)
	for i := range 5 {
		res := l.Allow("k")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Limit != 60 {
			t.Errorf("Limit = %d, want 60", res.Limit)
		}
		if res.Remaining != 4-i {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, 4-i)
		}
		if res.RetryAfter != 0 {
			t.Errorf("RetryAfter = %v on allowed request", res.RetryAfter)
		}
	}
	res := l.Allow("k")
	if res.Allowed {
		t.Fatal("6th request should be rate limited")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}
	if want := clk.t.Add(5 * time.Second); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}

	clk.advance(time.Second)
	if !l.Allow("k").Allowed {
		t.Error("request after refill should be allowed")
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l, _ := newTestLimiter(5, 5)
	for range 5 {
		l.Allow("key1")
	}
	if l.Allow("key1").Allowed {
		t.Error("key1 should be rate limited")
	}
	for range 5 {
		if !l.Allow("key2").Allowed {
			t.Error("key2 should not be rate limited")
		}
	}
}

func TestLimiter_MinimumBurst(t *testing.T) {
	l, _ := newTestLimiter(1, 0)
	if !l.Allow("k").Allowed {
		t.Error("first request should be allowed with a zero burst")
	}
	res := l.Allow("k")
	if res.Allowed {
		t.Error("second request should be limited")
	}
	if res.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", res.RetryAfter)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clk := newTestLimiter(60, 5)
	l.Allow("idle")
	l.cleanup()
	if n := l.size(); n != 1 {
		t.Fatalf("fresh bucket removed, size = %d", n)
	}
	clk.advance(staleAfter + time.Second)
	l.Allow("active")
	l.cleanup()
	if n := l.size(); n != 1 {
		t.Errorf("size = %d after cleanup, want 1", n)
	}
}

func TestNewLimiter_Close(t *testing.T) {
	l := NewLimiter(60, 10)
	if !l.Allow("k").Allowed {
		t.Error("first request should be allowed")
	}
	l.Close()
}
