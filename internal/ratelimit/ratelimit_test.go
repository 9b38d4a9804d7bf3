package ratelimit

import (
	"testing"
	"time"
)

// fakeClock drives the limiter's view of time from tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiter(max, window, WithClock(clock.now)), clock
}

func TestCheckAndAdmitExhaustsWindow(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if d := l.CheckAndAdmit("user1"); !d.Admitted {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	d := l.CheckAndAdmit("user1")
	if d.Admitted {
		t.Fatal("6th request in the same window should be rejected")
	}
	if d.RetryAfterSeconds <= 0 {
		t.Errorf("expected positive retry-after, got %d", d.RetryAfterSeconds)
	}
}

func TestRetryAfterReflectsRemainingWindow(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	l.CheckAndAdmit("user1")
	clock.advance(45 * time.Second)
	d := l.CheckAndAdmit("user1")
	if d.Admitted {
		t.Fatal("second request within window should be rejected")
	}
	if d.RetryAfterSeconds != 15 {
		t.Errorf("expected retry-after 15s, got %d", d.RetryAfterSeconds)
	}
}

func TestWindowResetsAfterDeadline(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.CheckAndAdmit("user1")
	l.CheckAndAdmit("user1")
	if d := l.CheckAndAdmit("user1"); d.Admitted {
		t.Fatal("window should be exhausted")
	}

	clock.advance(61 * time.Second)
	if d := l.CheckAndAdmit("user1"); !d.Admitted {
		t.Fatal("request after window reset should be admitted")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if d := l.CheckAndAdmit("user1"); !d.Admitted {
		t.Fatal("first key should be admitted")
	}
	if d := l.CheckAndAdmit("user2"); !d.Admitted {
		t.Fatal("second key has its own window and should be admitted")
	}
	if d := l.CheckAndAdmit("user1"); d.Admitted {
		t.Fatal("first key should now be limited")
	}
}

func TestSweepRemovesOnlyLongExpiredWindows(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.CheckAndAdmit("stale")
	clock.advance(30 * time.Second)
	l.CheckAndAdmit("fresh")

	// "stale" expired 30s ago but is within the one-window grace period.
	clock.advance(time.Minute)
	if cleaned := l.Sweep(); cleaned != 0 {
		t.Errorf("expected no windows swept inside grace period, got %d", cleaned)
	}

	// Now "stale" is a full window past expiry; "fresh" is not.
	clock.advance(31 * time.Second)
	if cleaned := l.Sweep(); cleaned != 1 {
		t.Errorf("expected exactly the stale window swept, got %d", cleaned)
	}

	// A swept key starts over with an empty window.
	if d := l.CheckAndAdmit("stale"); !d.Admitted {
		t.Error("swept key should be admitted again")
	}
}

func TestDefaultsApplied(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.Max() != DefaultMaxRequests {
		t.Errorf("expected default max %d, got %d", DefaultMaxRequests, l.Max())
	}
}
